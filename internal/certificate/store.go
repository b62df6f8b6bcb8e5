package certificate

import (
	"context"
	"time"

	id "certflow/pkg/domain"
)

// Store persists certificates. Create fails with a conflict when the request
// already has an active certificate or the number is taken.
type Store interface {
	Create(ctx context.Context, cert Certificate) error
	GetByID(ctx context.Context, certID id.CertificateID) (Certificate, error)
	GetActiveByRequestID(ctx context.Context, requestID id.RequestID) (Certificate, error)
	UpdateStatus(ctx context.Context, certID id.CertificateID, status Status, updatedAt time.Time) error
}
