package reminder

import (
	"context"
	"time"

	id "certflow/pkg/domain"
)

// Store persists reminders. Claim is the exactly-once gate: it succeeds for
// at most one caller per pending reminder, so two overlapping sweeps can
// never both dispatch the same one.
type Store interface {
	Create(ctx context.Context, r Reminder) error
	GetByID(ctx context.Context, reminderID id.ReminderID) (Reminder, error)
	// DueBefore returns pending reminders with scheduled_at <= now, ascending
	// by scheduled_at so an interrupted sweep has processed the earliest-due
	// ones first.
	DueBefore(ctx context.Context, now time.Time) ([]Reminder, error)
	// Claim moves a pending reminder to claimed. Returns
	// sentinel.ErrAlreadyClaimed when the reminder is no longer pending.
	Claim(ctx context.Context, reminderID id.ReminderID) error
	MarkSent(ctx context.Context, reminderID id.ReminderID, sentAt time.Time) error
	MarkFailed(ctx context.Context, reminderID id.ReminderID) error
	// Cancel suppresses a pending reminder; terminal reminders are left alone.
	Cancel(ctx context.Context, reminderID id.ReminderID) error
	// CancelPendingFor suppresses all pending reminders of the given type for
	// a related entity, returning how many were cancelled.
	CancelPendingFor(ctx context.Context, related id.RelatedRef, rtype Type) (int, error)
}
