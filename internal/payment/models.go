package payment

import (
	"time"

	id "certflow/pkg/domain"
)

// Status is the lifecycle state of one payment record. verified and rejected
// are terminal; a rejected payment is answered by a new record, never by
// reopening the old one.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Terminal reports whether s permits no further events.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// Payment is a fee payment submitted against an approved request.
type Payment struct {
	ID              id.PaymentID
	RequestID       id.RequestID
	AmountCents     int64
	Method          string
	ReceiptRef      string
	Status          Status
	VerifiedBy      *id.UserID
	VerifiedAt      *time.Time
	RejectionReason string
	SubmittedAt     time.Time
	UpdatedAt       time.Time
}
