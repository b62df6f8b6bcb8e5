package certificate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	id "certflow/pkg/domain"
)

// Status is the delivery state of an issued certificate. Strictly forward:
// a generated certificate cannot be un-generated.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusSent      Status = "sent"
	StatusCollected Status = "collected"
)

// Certificate is the land-use certificate issued once a request's payment
// has been verified. At most one active certificate exists per request.
type Certificate struct {
	ID        id.CertificateID
	RequestID id.RequestID
	Number    string
	Status    Status
	IssuedBy  *id.UserID
	IssuedAt  time.Time
	UpdatedAt time.Time
}

// NewNumber generates a certificate number of the form LUC-<year>-<8 hex>.
// Uniqueness is enforced by the store; a collision on the random suffix
// surfaces as a conflict the caller retries.
func NewNumber(issuedAt time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate certificate number: %w", err)
	}
	return fmt.Sprintf("LUC-%d-%s", issuedAt.Year(), hex.EncodeToString(suffix)), nil
}
