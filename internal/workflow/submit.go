package workflow

import (
	"context"
	"fmt"

	"certflow/internal/evaluation"
	"certflow/internal/ledger"
	"certflow/internal/payment"
	"certflow/internal/reminder"
	"certflow/internal/request"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"

	"github.com/google/uuid"
)

// SubmitRequestInput carries the applicant fields captured at submission.
// They are immutable afterwards.
type SubmitRequestInput struct {
	ApplicantName    string
	ApplicantAddress string
	ProjectName      string
	ProjectLocation  string
	ProjectPurpose   string
	OwnerID          *id.UserID
}

// SubmitRequest creates a request and its evaluation report, both at the
// start of their lifecycles, with one ledger entry marking the submission.
func (e *Engine) SubmitRequest(ctx context.Context, in SubmitRequestInput) (request.Request, error) {
	if in.ApplicantName == "" {
		return request.Request{}, dErrors.New(dErrors.CodeBadRequest, "applicant name is required")
	}
	if in.ApplicantAddress == "" {
		return request.Request{}, dErrors.New(dErrors.CodeBadRequest, "applicant address is required")
	}

	now := e.now()
	req := request.Request{
		ID:               id.NewRequestID(),
		ApplicantName:    in.ApplicantName,
		ApplicantAddress: in.ApplicantAddress,
		ProjectName:      in.ProjectName,
		ProjectLocation:  in.ProjectLocation,
		ProjectPurpose:   in.ProjectPurpose,
		Status:           request.StatusPending,
		OwnerID:          in.OwnerID,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}
	report := evaluation.Report{
		ID:             id.NewReportID(),
		RequestID:      req.ID,
		Evaluation:     evaluation.OutcomePending,
		WorkflowStatus: evaluation.StatusPendingApproval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	entry := ledger.Entry{
		ID:        uuid.New(),
		RequestID: req.ID,
		Type:      ledger.TypeApplication,
		NewStatus: string(request.StatusPending),
		ChangedBy: in.OwnerID,
		Notes:     "request submitted",
		CreatedAt: now,
	}

	err := e.withRequestLock(req.ID, func() error {
		return e.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := e.requests.Create(ctx, req); err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "create request")
			}
			if err := e.reports.Create(ctx, report); err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "create report")
			}
			if _, err := e.ledger.Append(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "append ledger entry")
			}
			return nil
		})
	})
	if err != nil {
		return request.Request{}, err
	}

	if e.metrics != nil {
		e.metrics.RequestsSubmitted.Inc()
		e.metrics.LedgerAppends.Inc()
	}
	e.logger.InfoContext(ctx, "request submitted",
		"request_id", req.ID,
		"applicant", in.ApplicantName,
	)
	e.ledger.Dispatch(ctx, entry)
	return req, nil
}

// SubmitPaymentInput carries one payment submission.
type SubmitPaymentInput struct {
	AmountCents int64
	Method      string
	ReceiptRef  string
}

// SubmitPayment records a pending payment for an approved request and moves
// the report to payment_submitted. A pending payment-due reminder for the
// request is cancelled; the payment arrived before it fired. Resubmission
// after a rejection creates a fresh record and leaves the report where the
// first submission put it.
func (e *Engine) SubmitPayment(ctx context.Context, requestID id.RequestID, in SubmitPaymentInput, actor *id.UserID) (payment.Payment, error) {
	if in.AmountCents <= 0 {
		return payment.Payment{}, dErrors.New(dErrors.CodeBadRequest, "payment amount must be positive")
	}
	if in.Method == "" {
		return payment.Payment{}, dErrors.New(dErrors.CodeBadRequest, "payment method is required")
	}

	now := e.now()
	p := payment.Payment{
		ID:          id.NewPaymentID(),
		RequestID:   requestID,
		AmountCents: in.AmountCents,
		Method:      in.Method,
		ReceiptRef:  in.ReceiptRef,
		Status:      payment.StatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	entry := ledger.Entry{
		ID:        uuid.New(),
		RequestID: requestID,
		Type:      ledger.TypePayment,
		NewStatus: string(payment.StatusPending),
		ChangedBy: actor,
		Notes:     fmt.Sprintf("payment submitted via %s", in.Method),
		CreatedAt: now,
	}

	err := e.withRequestLock(requestID, func() error {
		return e.tx.RunInTx(ctx, func(ctx context.Context) error {
			report, err := e.reports.GetByRequestID(ctx, requestID)
			if err != nil {
				return storeErr(err, "evaluation report")
			}
			if !report.WorkflowStatus.AtLeast(evaluation.StatusApprovedPendingPayment) {
				return dErrors.Newf(dErrors.CodePreconditionFailed,
					"payment submission requires an approved evaluation, report is %q", report.WorkflowStatus)
			}
			if report.Evaluation == evaluation.OutcomeRejected {
				return dErrors.New(dErrors.CodePreconditionFailed, "evaluation has been rejected")
			}

			if err := e.payments.Create(ctx, p); err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "create payment")
			}

			if report.WorkflowStatus == evaluation.StatusApprovedPendingPayment {
				newWs, err := Validate(KindReport, string(report.WorkflowStatus), EventSubmitPayment)
				if err != nil {
					return err
				}
				if err := e.reports.UpdateStatus(ctx, report.ID, report.Evaluation, evaluation.WorkflowStatus(newWs), now); err != nil {
					return dErrors.Wrap(err, dErrors.CodePersistence, "update report")
				}
			}

			if _, err := e.ledger.Append(ctx, entry); err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "append ledger entry")
			}
			return nil
		})
	})
	if err != nil {
		return payment.Payment{}, err
	}

	if _, err := e.sched.Cancel(ctx, id.RefRequest(requestID), reminder.TypePaymentDue); err != nil {
		e.logger.WarnContext(ctx, "cancel payment-due reminder failed",
			"request_id", requestID, "error", err)
	}

	if e.metrics != nil {
		e.metrics.TransitionsTotal.WithLabelValues(string(KindPayment)).Inc()
		e.metrics.LedgerAppends.Inc()
	}
	e.ledger.Dispatch(ctx, entry)
	return p, nil
}
