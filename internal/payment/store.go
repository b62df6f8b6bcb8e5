package payment

import (
	"context"
	"time"

	id "certflow/pkg/domain"
)

// StatusUpdate carries the mutable verification columns written when a
// payment leaves pending.
type StatusUpdate struct {
	Status          Status
	VerifiedBy      *id.UserID
	VerifiedAt      *time.Time
	RejectionReason string
	UpdatedAt       time.Time
}

// Store persists payments. Multiple records may exist per request because a
// rejection is answered by resubmission.
type Store interface {
	Create(ctx context.Context, p Payment) error
	GetByID(ctx context.Context, paymentID id.PaymentID) (Payment, error)
	// ListByRequestID returns the request's payments newest-first.
	ListByRequestID(ctx context.Context, requestID id.RequestID) ([]Payment, error)
	UpdateStatus(ctx context.Context, paymentID id.PaymentID, update StatusUpdate) error
}
