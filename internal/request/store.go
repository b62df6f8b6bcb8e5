package request

import (
	"context"
	"time"

	id "certflow/pkg/domain"
)

// Store persists requests. Applicant fields are write-once; only the status
// column is mutable, via UpdateStatus.
type Store interface {
	Create(ctx context.Context, req Request) error
	GetByID(ctx context.Context, requestID id.RequestID) (Request, error)
	UpdateStatus(ctx context.Context, requestID id.RequestID, status Status, updatedAt time.Time) error
}
