package reminder

import (
	"time"

	id "certflow/pkg/domain"
)

// Status is a reminder's delivery state. Terminal states are never
// re-selected by a sweep; cancelled marks a reminder suppressed before it
// fired.
type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Type names the business meaning of a reminder.
type Type string

const (
	TypePaymentDue         Type = "payment_due"
	TypeCollectCertificate Type = "collect_certificate"
)

// Reminder is a deferred notification owned by a user and tied to a request,
// payment, or certificate through a tagged reference.
type Reminder struct {
	ID          id.ReminderID
	UserID      id.UserID
	Type        Type
	Related     id.RelatedRef
	ScheduledAt time.Time
	SentAt      *time.Time
	Status      Status
	Message     string
	Metadata    map[string]string
	CreatedAt   time.Time
}
