package ledger

import (
	"time"

	id "certflow/pkg/domain"

	"github.com/google/uuid"
)

// StatusType names which lifecycle a ledger entry records.
type StatusType string

const (
	TypeApplication StatusType = "application"
	TypePayment     StatusType = "payment"
	TypeCertificate StatusType = "certificate"
)

// Entry is one immutable audit record of an accepted transition. Entries are
// never updated or deleted; replaying a request's entries in CreatedAt order
// reconstructs its current state.
type Entry struct {
	ID        uuid.UUID
	RequestID id.RequestID
	Type      StatusType
	OldStatus *string
	NewStatus string
	// ChangedBy is nil for system-initiated transitions.
	ChangedBy *id.UserID
	Notes     string
	CreatedAt time.Time
}
