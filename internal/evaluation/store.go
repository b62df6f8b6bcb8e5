package evaluation

import (
	"context"
	"time"

	id "certflow/pkg/domain"
)

// Store persists evaluation reports, one per request.
type Store interface {
	Create(ctx context.Context, report Report) error
	GetByRequestID(ctx context.Context, requestID id.RequestID) (Report, error)
	// UpdateStatus writes both the verdict and the workflow position in one
	// statement so the two columns cannot drift apart mid-transition.
	UpdateStatus(ctx context.Context, reportID id.ReportID, evaluation Outcome, workflowStatus WorkflowStatus, updatedAt time.Time) error
}
