// Package notification turns committed ledger entries into outbound email.
// Dispatch is best-effort: a transport failure is logged and counted, never
// propagated back into the transition that produced the entry.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"certflow/internal/ledger"
	"certflow/internal/request"
	"certflow/internal/user"
	"certflow/pkg/platform/sentinel"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher implements ledger.Dispatcher. It resolves the recipient from
// the request's owning user, renders the template for the status pair, and
// submits to the mailer under a bounded timeout.
type Dispatcher struct {
	requests    request.Store
	users       user.Store
	mailer      Mailer
	logger      *slog.Logger
	metrics     *Metrics
	sendTimeout time.Duration
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithSendTimeout bounds how long one mailer call may take.
func WithSendTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.sendTimeout = d
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(disp *Dispatcher) {
		disp.metrics = m
	}
}

func NewDispatcher(requests request.Store, users user.Store, mailer Mailer, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		requests:    requests,
		users:       users,
		mailer:      mailer,
		logger:      logger,
		sendTimeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnAppend handles one committed ledger entry. A request without an owning
// user is a documented no-op; only mailer errors are returned, and the
// caller logs rather than propagates them.
func (d *Dispatcher) OnAppend(ctx context.Context, entry ledger.Entry) error {
	msg, ok := resolveTemplate(entry)
	if !ok {
		d.skip()
		return nil
	}

	req, err := d.requests.GetByID(ctx, entry.RequestID)
	if err != nil {
		d.fail()
		return fmt.Errorf("resolve request for entry %s: %w", entry.ID, err)
	}
	if req.OwnerID == nil {
		d.skip()
		d.logger.InfoContext(ctx, "no owner for request, notification skipped",
			"request_id", entry.RequestID,
			"status_type", string(entry.Type),
			"new_status", entry.NewStatus,
		)
		return nil
	}

	owner, err := d.users.FindByID(ctx, *req.OwnerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			d.skip()
			d.logger.WarnContext(ctx, "owner not found, notification skipped",
				"request_id", entry.RequestID,
				"user_id", req.OwnerID,
			)
			return nil
		}
		d.fail()
		return fmt.Errorf("resolve owner for entry %s: %w", entry.ID, err)
	}

	msg.To = owner.Email

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.mailer.Send(sendCtx, msg); err != nil {
		d.fail()
		return fmt.Errorf("send notification for entry %s: %w", entry.ID, err)
	}

	if d.metrics != nil {
		d.metrics.Dispatched.Inc()
	}
	d.logger.InfoContext(ctx, "notification dispatched",
		"request_id", entry.RequestID,
		"status_type", string(entry.Type),
		"new_status", entry.NewStatus,
		"recipient", owner.Email,
	)
	return nil
}

func (d *Dispatcher) skip() {
	if d.metrics != nil {
		d.metrics.Skipped.Inc()
	}
}

func (d *Dispatcher) fail() {
	if d.metrics != nil {
		d.metrics.Failed.Inc()
	}
}
