// Package workflow is the orchestrator behind every lifecycle change. The
// engine serializes work per request, validates each event against the
// transition tables, applies the entity mutation and the ledger append as
// one transaction, and hands committed entries to the notification layer
// only after the request lock has been released.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"certflow/internal/certificate"
	"certflow/internal/evaluation"
	"certflow/internal/ledger"
	"certflow/internal/payment"
	"certflow/internal/platform/metrics"
	"certflow/internal/reminder"
	"certflow/internal/request"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/sentinel"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("certflow/workflow")

const (
	lockShards                  = 128
	defaultPaymentDueDelay      = 72 * time.Hour
	defaultCollectReminderDelay = 24 * time.Hour
)

// Engine coordinates the four entity lifecycles.
type Engine struct {
	requests request.Store
	reports  evaluation.Store
	payments payment.Store
	certs    certificate.Store
	ledger   *ledger.Ledger
	sched    *reminder.Scheduler
	tx       TxRunner

	locks [lockShards]sync.Mutex

	logger               *slog.Logger
	metrics              *metrics.Metrics
	now                  func() time.Time
	paymentDueDelay      time.Duration
	collectReminderDelay time.Duration
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithPaymentDueDelay overrides how far ahead the payment-due reminder is
// scheduled when a request is approved.
func WithPaymentDueDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.paymentDueDelay = d
	}
}

// WithCollectReminderDelay overrides how far ahead the collection reminder is
// scheduled when a certificate is sent.
func WithCollectReminderDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.collectReminderDelay = d
	}
}

func NewEngine(
	requests request.Store,
	reports evaluation.Store,
	payments payment.Store,
	certs certificate.Store,
	ldg *ledger.Ledger,
	sched *reminder.Scheduler,
	tx TxRunner,
	logger *slog.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		requests:             requests,
		reports:              reports,
		payments:             payments,
		certs:                certs,
		ledger:               ldg,
		sched:                sched,
		tx:                   tx,
		logger:               logger,
		now:                  time.Now,
		paymentDueDelay:      defaultPaymentDueDelay,
		collectReminderDelay: defaultCollectReminderDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// result accumulates what a transition produced inside the lock so the
// entries can be dispatched after it is released.
type result struct {
	newState string
	entries  []ledger.Entry
}

// Transition applies one event to one entity. Actor is nil for
// system-initiated transitions. The returned string is the entity's new
// state. For certificate creation the entityID is the request ID, since the
// certificate row does not exist yet.
func (e *Engine) Transition(ctx context.Context, kind EntityKind, entityID uuid.UUID, event Event, actor *id.UserID, notes string) (string, error) {
	ctx, span := tracer.Start(ctx, "workflow.Transition", trace.WithAttributes(
		attribute.String("entity.kind", string(kind)),
		attribute.String("entity.id", entityID.String()),
		attribute.String("event", string(event)),
	))
	defer span.End()

	requestID, err := e.resolveRequestID(ctx, kind, entityID, event)
	if err != nil {
		return "", err
	}

	var res result
	err = e.withRequestLock(requestID, func() error {
		return e.tx.RunInTx(ctx, func(ctx context.Context) error {
			r, err := e.apply(ctx, kind, entityID, requestID, event, actor, notes)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.TransitionsFailed.WithLabelValues(string(kind)).Inc()
		}
		return "", err
	}

	if e.metrics != nil {
		e.metrics.TransitionsTotal.WithLabelValues(string(kind)).Inc()
		e.metrics.LedgerAppends.Add(float64(len(res.entries)))
	}
	e.logger.InfoContext(ctx, "transition applied",
		"entity_kind", string(kind),
		"entity_id", entityID,
		"event", string(event),
		"new_state", res.newState,
		"request_id", requestID,
	)

	// The lock is already released; a slow mail provider cannot stall other
	// transitions on this request.
	e.ledger.Dispatch(ctx, res.entries...)
	return res.newState, nil
}

// ListHistory returns the request's audit trail oldest-first.
func (e *Engine) ListHistory(ctx context.Context, requestID id.RequestID) ([]ledger.Entry, error) {
	entries, err := e.ledger.ListForRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "list history")
	}
	return entries, nil
}

func (e *Engine) withRequestLock(requestID id.RequestID, fn func() error) error {
	mu := &e.locks[shardFor(requestID)]
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

func shardFor(requestID id.RequestID) int {
	h := fnv.New32a()
	raw := uuid.UUID(requestID)
	h.Write(raw[:])
	return int(h.Sum32() % lockShards)
}

// resolveRequestID finds the owning request before the lock is taken. The
// entity is re-read inside the lock; this read only picks the lock shard.
func (e *Engine) resolveRequestID(ctx context.Context, kind EntityKind, entityID uuid.UUID, event Event) (id.RequestID, error) {
	switch kind {
	case KindRequest, KindReport:
		return id.RequestID(entityID), nil
	case KindPayment:
		p, err := e.payments.GetByID(ctx, id.PaymentID(entityID))
		if err != nil {
			return id.RequestID{}, storeErr(err, "payment")
		}
		return p.RequestID, nil
	case KindCertificate:
		if event == EventCreate {
			return id.RequestID(entityID), nil
		}
		c, err := e.certs.GetByID(ctx, id.CertificateID(entityID))
		if err != nil {
			return id.RequestID{}, storeErr(err, "certificate")
		}
		return c.RequestID, nil
	default:
		return id.RequestID{}, dErrors.Newf(dErrors.CodeBadRequest, "unknown entity kind %q", kind)
	}
}

// apply runs steps validate, mutate, append for one event. Called inside
// both the request lock and the transaction.
func (e *Engine) apply(ctx context.Context, kind EntityKind, entityID uuid.UUID, requestID id.RequestID, event Event, actor *id.UserID, notes string) (result, error) {
	switch kind {
	case KindRequest:
		return e.applyRequest(ctx, requestID, event, actor, notes)
	case KindReport:
		return e.applyReport(ctx, requestID, event, actor, notes)
	case KindPayment:
		return e.applyPayment(ctx, id.PaymentID(entityID), event, actor, notes)
	case KindCertificate:
		if event == EventCreate {
			return e.applyCertificateCreate(ctx, requestID, actor, notes)
		}
		return e.applyCertificate(ctx, id.CertificateID(entityID), event, actor, notes)
	default:
		return result{}, dErrors.Newf(dErrors.CodeBadRequest, "unknown entity kind %q", kind)
	}
}

func (e *Engine) applyRequest(ctx context.Context, requestID id.RequestID, event Event, actor *id.UserID, notes string) (result, error) {
	req, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return result{}, storeErr(err, "request")
	}

	newState, err := Validate(KindRequest, string(req.Status), event)
	if err != nil {
		return result{}, err
	}

	report, err := e.reports.GetByRequestID(ctx, requestID)
	if err != nil {
		return result{}, storeErr(err, "evaluation report")
	}

	now := e.now()
	if err := e.requests.UpdateStatus(ctx, requestID, request.Status(newState), now); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update request")
	}

	switch event {
	case EventApprove:
		newWs, err := Validate(KindReport, string(report.WorkflowStatus), EventApprove)
		if err != nil {
			return result{}, err
		}
		if err := e.reports.UpdateStatus(ctx, report.ID, evaluation.OutcomeApproved, evaluation.WorkflowStatus(newWs), now); err != nil {
			return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update report")
		}
	case EventReject:
		if err := e.reports.UpdateStatus(ctx, report.ID, evaluation.OutcomeRejected, report.WorkflowStatus, now); err != nil {
			return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update report")
		}
	}

	old := string(req.Status)
	entry := ledger.Entry{
		ID:        uuid.New(),
		RequestID: requestID,
		Type:      ledger.TypeApplication,
		OldStatus: &old,
		NewStatus: newState,
		ChangedBy: actor,
		Notes:     notes,
		CreatedAt: now,
	}
	if _, err := e.ledger.Append(ctx, entry); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "append ledger entry")
	}

	if event == EventApprove && req.OwnerID != nil {
		_, err := e.sched.Schedule(ctx, *req.OwnerID, reminder.TypePaymentDue, id.RefRequest(requestID),
			e.paymentDueDelay,
			fmt.Sprintf("Payment for certification request %s is due.", requestID),
			map[string]string{"request_id": requestID.String()},
		)
		if err != nil {
			return result{}, err
		}
	}

	return result{newState: newState, entries: []ledger.Entry{entry}}, nil
}

// applyReport handles the one report event callers may request directly:
// rejecting the evaluation from any non-terminal workflow position. The
// entityID is the request ID since reports are one-to-one with requests.
func (e *Engine) applyReport(ctx context.Context, requestID id.RequestID, event Event, actor *id.UserID, notes string) (result, error) {
	if event != EventReject {
		return result{}, dErrors.Newf(dErrors.CodeBadRequest,
			"report transitions are driven through request, payment, and certificate events")
	}

	report, err := e.reports.GetByRequestID(ctx, requestID)
	if err != nil {
		return result{}, storeErr(err, "evaluation report")
	}
	if report.Evaluation == evaluation.OutcomeRejected {
		return result{}, dErrors.New(dErrors.CodeInvalidTransition, "evaluation already rejected")
	}

	// Keeps the workflow position; only the verdict changes.
	if _, err := Validate(KindReport, string(report.WorkflowStatus), EventReject); err != nil {
		return result{}, err
	}

	now := e.now()
	if err := e.reports.UpdateStatus(ctx, report.ID, evaluation.OutcomeRejected, report.WorkflowStatus, now); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update report")
	}

	old := string(report.Evaluation)
	entry := ledger.Entry{
		ID:        uuid.New(),
		RequestID: requestID,
		Type:      ledger.TypeApplication,
		OldStatus: &old,
		NewStatus: string(evaluation.OutcomeRejected),
		ChangedBy: actor,
		Notes:     notes,
		CreatedAt: now,
	}
	if _, err := e.ledger.Append(ctx, entry); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "append ledger entry")
	}

	return result{newState: string(evaluation.OutcomeRejected), entries: []ledger.Entry{entry}}, nil
}

func (e *Engine) applyPayment(ctx context.Context, paymentID id.PaymentID, event Event, actor *id.UserID, notes string) (result, error) {
	p, err := e.payments.GetByID(ctx, paymentID)
	if err != nil {
		return result{}, storeErr(err, "payment")
	}

	report, err := e.reports.GetByRequestID(ctx, p.RequestID)
	if err != nil {
		return result{}, storeErr(err, "evaluation report")
	}
	if !report.WorkflowStatus.AtLeast(evaluation.StatusApprovedPendingPayment) {
		return result{}, dErrors.Newf(dErrors.CodePreconditionFailed,
			"payment transitions require an approved evaluation, report is %q", report.WorkflowStatus)
	}
	if report.Evaluation == evaluation.OutcomeRejected {
		return result{}, dErrors.New(dErrors.CodePreconditionFailed, "evaluation has been rejected")
	}

	newState, err := Validate(KindPayment, string(p.Status), event)
	if err != nil {
		return result{}, err
	}

	now := e.now()
	update := payment.StatusUpdate{
		Status:    payment.Status(newState),
		UpdatedAt: now,
	}
	switch event {
	case EventVerify:
		update.VerifiedBy = actor
		update.VerifiedAt = &now
	case EventReject:
		update.RejectionReason = notes
	}
	if err := e.payments.UpdateStatus(ctx, paymentID, update); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update payment")
	}

	if event == EventVerify {
		newWs, err := Validate(KindReport, string(report.WorkflowStatus), EventVerifyPayment)
		if err != nil {
			return result{}, err
		}
		if err := e.reports.UpdateStatus(ctx, report.ID, report.Evaluation, evaluation.WorkflowStatus(newWs), now); err != nil {
			return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update report")
		}
	}

	old := string(p.Status)
	entry := ledger.Entry{
		ID:        uuid.New(),
		RequestID: p.RequestID,
		Type:      ledger.TypePayment,
		OldStatus: &old,
		NewStatus: newState,
		ChangedBy: actor,
		Notes:     notes,
		CreatedAt: now,
	}
	if _, err := e.ledger.Append(ctx, entry); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "append ledger entry")
	}

	return result{newState: newState, entries: []ledger.Entry{entry}}, nil
}

func (e *Engine) applyCertificateCreate(ctx context.Context, requestID id.RequestID, actor *id.UserID, notes string) (result, error) {
	report, err := e.reports.GetByRequestID(ctx, requestID)
	if err != nil {
		return result{}, storeErr(err, "evaluation report")
	}
	if report.Evaluation == evaluation.OutcomeRejected {
		return result{}, dErrors.New(dErrors.CodePreconditionFailed, "evaluation has been rejected")
	}

	verified, err := e.verifiedPayment(ctx, requestID)
	if err != nil {
		return result{}, err
	}
	if verified == nil {
		return result{}, dErrors.New(dErrors.CodePreconditionFailed,
			"certificate creation requires a verified payment")
	}

	newWs, err := Validate(KindReport, string(report.WorkflowStatus), EventIssueCertificate)
	if err != nil {
		return result{}, err
	}

	now := e.now()
	number, err := certificate.NewNumber(now)
	if err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate certificate number")
	}

	cert := certificate.Certificate{
		ID:        id.NewCertificateID(),
		RequestID: requestID,
		Number:    number,
		Status:    certificate.StatusGenerated,
		IssuedBy:  actor,
		IssuedAt:  now,
		UpdatedAt: now,
	}
	if err := e.certs.Create(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return result{}, dErrors.Wrap(err, dErrors.CodeConflict, "request already has an active certificate")
		}
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "create certificate")
	}

	if err := e.reports.UpdateStatus(ctx, report.ID, report.Evaluation, evaluation.WorkflowStatus(newWs), now); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update report")
	}

	entry := ledger.Entry{
		ID:        uuid.New(),
		RequestID: requestID,
		Type:      ledger.TypeCertificate,
		OldStatus: nil,
		NewStatus: string(certificate.StatusGenerated),
		ChangedBy: actor,
		Notes:     notes,
		CreatedAt: now,
	}
	if _, err := e.ledger.Append(ctx, entry); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "append ledger entry")
	}

	return result{newState: string(certificate.StatusGenerated), entries: []ledger.Entry{entry}}, nil
}

func (e *Engine) applyCertificate(ctx context.Context, certID id.CertificateID, event Event, actor *id.UserID, notes string) (result, error) {
	cert, err := e.certs.GetByID(ctx, certID)
	if err != nil {
		return result{}, storeErr(err, "certificate")
	}

	newState, err := Validate(KindCertificate, string(cert.Status), event)
	if err != nil {
		return result{}, err
	}

	now := e.now()
	if err := e.certs.UpdateStatus(ctx, certID, certificate.Status(newState), now); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "update certificate")
	}

	old := string(cert.Status)
	entry := ledger.Entry{
		ID:        uuid.New(),
		RequestID: cert.RequestID,
		Type:      ledger.TypeCertificate,
		OldStatus: &old,
		NewStatus: newState,
		ChangedBy: actor,
		Notes:     notes,
		CreatedAt: now,
	}
	if _, err := e.ledger.Append(ctx, entry); err != nil {
		return result{}, dErrors.Wrap(err, dErrors.CodePersistence, "append ledger entry")
	}

	switch event {
	case EventSend:
		req, err := e.requests.GetByID(ctx, cert.RequestID)
		if err != nil {
			return result{}, storeErr(err, "request")
		}
		if req.OwnerID != nil {
			_, err := e.sched.Schedule(ctx, *req.OwnerID, reminder.TypeCollectCertificate, id.RefCertificate(certID),
				e.collectReminderDelay,
				fmt.Sprintf("Certificate %s is ready for collection.", cert.Number),
				map[string]string{"request_id": cert.RequestID.String(), "certificate_id": certID.String()},
			)
			if err != nil {
				return result{}, err
			}
		}
	case EventCollect:
		if _, err := e.sched.Cancel(ctx, id.RefCertificate(certID), reminder.TypeCollectCertificate); err != nil {
			e.logger.WarnContext(ctx, "cancel collection reminder failed",
				"certificate_id", certID, "error", err)
		}
	}

	return result{newState: newState, entries: []ledger.Entry{entry}}, nil
}

func (e *Engine) verifiedPayment(ctx context.Context, requestID id.RequestID) (*payment.Payment, error) {
	payments, err := e.payments.ListByRequestID(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "list payments")
	}
	for i := range payments {
		if payments[i].Status == payment.StatusVerified {
			return &payments[i], nil
		}
	}
	return nil, nil
}

func storeErr(err error, noun string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, noun+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, "load "+noun)
}
