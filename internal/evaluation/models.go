package evaluation

import (
	"time"

	id "certflow/pkg/domain"
)

// Outcome is the coarse evaluation verdict.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// WorkflowStatus is the fine-grained lifecycle position of a report. It only
// moves forward along the chain below; a rejection freezes it in place.
type WorkflowStatus string

const (
	StatusPendingApproval        WorkflowStatus = "pending_approval"
	StatusApprovedPendingPayment WorkflowStatus = "approved_pending_payment"
	StatusPaymentSubmitted       WorkflowStatus = "payment_submitted"
	StatusPaymentVerified        WorkflowStatus = "payment_verified"
	StatusCertificateIssued      WorkflowStatus = "certificate_issued"
)

var statusRanks = map[WorkflowStatus]int{
	StatusPendingApproval:        0,
	StatusApprovedPendingPayment: 1,
	StatusPaymentSubmitted:       2,
	StatusPaymentVerified:        3,
	StatusCertificateIssued:      4,
}

// Rank returns the position of s in the workflow chain, or -1 for an unknown
// status. Used for monotonicity checks and cross-entity gating.
func (s WorkflowStatus) Rank() int {
	rank, ok := statusRanks[s]
	if !ok {
		return -1
	}
	return rank
}

// AtLeast reports whether s has reached the given position in the chain.
func (s WorkflowStatus) AtLeast(other WorkflowStatus) bool {
	return s.Rank() >= other.Rank() && s.Rank() >= 0
}

// Report tracks one request's evaluation verdict and workflow position.
// There is exactly one report per request, created at submission.
type Report struct {
	ID             id.ReportID
	RequestID      id.RequestID
	Evaluation     Outcome
	WorkflowStatus WorkflowStatus
	EvaluatedBy    *id.UserID
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
