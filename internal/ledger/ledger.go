// Package ledger is the append-only record of every accepted transition and
// the trigger point for notification side effects. An entry that fails to
// write fails the whole transition; an entry that commits is dispatched to
// the notification layer exactly once, best-effort.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	id "certflow/pkg/domain"

	"github.com/google/uuid"
)

// Dispatcher receives committed ledger entries. Implementations must contain
// their own failures; Dispatch errors are logged here and never propagated.
type Dispatcher interface {
	OnAppend(ctx context.Context, entry Entry) error
}

// Ledger wraps the store with the dispatch relationship. Holding the
// Dispatcher as an explicit field keeps the observer visible and swappable
// in tests.
type Ledger struct {
	store      Store
	dispatcher Dispatcher
	logger     *slog.Logger
}

func New(store Store, dispatcher Dispatcher, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, dispatcher: dispatcher, logger: logger}
}

// Append durably writes one entry. Failure here must fail the caller's whole
// transition; the engine runs Append inside the transition's transaction.
func (l *Ledger) Append(ctx context.Context, entry Entry) (uuid.UUID, error) {
	entryID, err := l.store.Append(ctx, entry)
	if err != nil {
		return uuid.Nil, fmt.Errorf("append ledger entry: %w", err)
	}
	return entryID, nil
}

// ListForRequest returns the request's audit trail oldest-first.
func (l *Ledger) ListForRequest(ctx context.Context, requestID id.RequestID) ([]Entry, error) {
	entries, err := l.store.ListForRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// Dispatch hands committed entries to the dispatcher, one attempt each.
// Called by the engine after the transaction has committed and the entity
// lock has been released, so a slow mail provider cannot stall transitions.
// Failures are logged and swallowed: the state change already happened.
func (l *Ledger) Dispatch(ctx context.Context, entries ...Entry) {
	if l.dispatcher == nil {
		return
	}
	for _, entry := range entries {
		if err := l.dispatcher.OnAppend(ctx, entry); err != nil {
			l.logger.ErrorContext(ctx, "notification dispatch failed",
				"entry_id", entry.ID,
				"request_id", entry.RequestID,
				"status_type", string(entry.Type),
				"new_status", entry.NewStatus,
				"error", err,
			)
		}
	}
}
