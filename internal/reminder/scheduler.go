// Package reminder defers notifications and delivers them exactly once. A
// reminder is created pending, claimed by the sweep that will dispatch it,
// and finalized sent or failed; terminal reminders are never re-selected.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"certflow/internal/notification"
	"certflow/internal/user"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
	"certflow/pkg/platform/sentinel"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("certflow/reminder")

// Scheduler creates reminders and sweeps due ones.
type Scheduler struct {
	store   Store
	users   user.Store
	mailer  notification.Mailer
	locker  SweepLocker
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

func NewScheduler(store Store, users user.Store, mailer notification.Mailer, locker SweepLocker, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:  store,
		users:  users,
		mailer: mailer,
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule creates a pending reminder firing at now + delay.
func (s *Scheduler) Schedule(ctx context.Context, userID id.UserID, rtype Type, related id.RelatedRef, delay time.Duration, message string, metadata map[string]string) (Reminder, error) {
	if delay < 0 {
		return Reminder{}, dErrors.New(dErrors.CodeBadRequest, "reminder delay must be non-negative")
	}
	if message == "" {
		return Reminder{}, dErrors.New(dErrors.CodeBadRequest, "reminder message must not be empty")
	}
	if related.IsZero() {
		return Reminder{}, dErrors.New(dErrors.CodeBadRequest, "reminder requires a related entity")
	}

	now := s.now()
	r := Reminder{
		ID:          id.NewReminderID(),
		UserID:      userID,
		Type:        rtype,
		Related:     related,
		ScheduledAt: now.Add(delay),
		Status:      StatusPending,
		Message:     message,
		Metadata:    metadata,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return Reminder{}, dErrors.Wrap(err, dErrors.CodePersistence, "create reminder")
	}

	if s.metrics != nil {
		s.metrics.Scheduled.Inc()
	}
	s.logger.InfoContext(ctx, "reminder scheduled",
		"reminder_id", r.ID,
		"type", string(rtype),
		"related", related.String(),
		"scheduled_at", r.ScheduledAt,
	)
	return r, nil
}

// Cancel suppresses pending reminders of the given type for a related
// entity, e.g. a payment_due reminder once the payment arrives early.
func (s *Scheduler) Cancel(ctx context.Context, related id.RelatedRef, rtype Type) (int, error) {
	count, err := s.store.CancelPendingFor(ctx, related, rtype)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistence, "cancel reminders")
	}
	if count > 0 {
		if s.metrics != nil {
			s.metrics.Cancelled.Add(float64(count))
		}
		s.logger.InfoContext(ctx, "reminders cancelled",
			"type", string(rtype),
			"related", related.String(),
			"count", count,
		)
	}
	return count, nil
}

// Sweep processes every reminder due at now. Returns how many reminders were
// finalized (sent plus failed). Overlapping sweeps are excluded by the
// locker; per-reminder failures never abort the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "reminder.Sweep", trace.WithAttributes(
		attribute.String("sweep.at", now.Format(time.RFC3339)),
	))
	defer span.End()

	release, acquired, err := s.locker.TryAcquire(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistence, "acquire sweep lease")
	}
	if !acquired {
		if s.metrics != nil {
			s.metrics.SweepSkipped.Inc()
		}
		s.logger.InfoContext(ctx, "sweep skipped, lease held elsewhere")
		return 0, nil
	}
	defer release()

	due, err := s.store.DueBefore(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodePersistence, "select due reminders")
	}

	processed := 0
	for _, r := range due {
		if err := s.store.Claim(ctx, r.ID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyClaimed) {
				continue
			}
			s.logger.ErrorContext(ctx, "reminder claim failed", "reminder_id", r.ID, "error", err)
			continue
		}

		if err := s.dispatch(ctx, r); err != nil {
			s.logger.WarnContext(ctx, "reminder dispatch failed",
				"reminder_id", r.ID,
				"type", string(r.Type),
				"error", err,
			)
			if err := s.store.MarkFailed(ctx, r.ID); err != nil {
				s.logger.ErrorContext(ctx, "mark reminder failed", "reminder_id", r.ID, "error", err)
				continue
			}
			if s.metrics != nil {
				s.metrics.Failed.Inc()
			}
			processed++
			continue
		}

		if err := s.store.MarkSent(ctx, r.ID, s.now()); err != nil {
			s.logger.ErrorContext(ctx, "mark reminder sent", "reminder_id", r.ID, "error", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.Sent.Inc()
		}
		processed++
	}

	span.SetAttributes(attribute.Int("sweep.processed", processed))
	if processed > 0 {
		s.logger.InfoContext(ctx, "sweep complete", "processed", processed, "due", len(due))
	}
	return processed, nil
}

func (s *Scheduler) dispatch(ctx context.Context, r Reminder) error {
	owner, err := s.users.FindByID(ctx, r.UserID)
	if err != nil {
		return fmt.Errorf("resolve reminder recipient: %w", err)
	}

	msg := notification.Message{
		To:      owner.Email,
		Subject: subjectFor(r.Type),
		Body:    r.Message,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

func subjectFor(rtype Type) string {
	switch rtype {
	case TypePaymentDue:
		return "Payment due for your certification request"
	case TypeCollectCertificate:
		return "Your certificate is ready for collection"
	default:
		return "Certification reminder"
	}
}
