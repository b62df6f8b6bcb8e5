package reminder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	txcontext "certflow/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists reminders. Claim relies on a conditional UPDATE so
// concurrent sweepers race on the status column, not on application state.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, r Reminder) error {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal reminder metadata: %w", err)
	}

	query := `
		INSERT INTO reminders (
			id, user_id, type, related_type, related_id,
			scheduled_at, sent_at, status, message, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		uuid.UUID(r.UserID),
		string(r.Type),
		string(r.Related.Kind()),
		r.Related.ID(),
		r.ScheduledAt,
		r.SentAt,
		string(r.Status),
		r.Message,
		metadata,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, reminderID id.ReminderID) (Reminder, error) {
	query := selectReminder + ` WHERE id = $1`

	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(reminderID))
	r, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reminder{}, fmt.Errorf("get reminder %s: %w", reminderID, sentinel.ErrNotFound)
		}
		return Reminder{}, fmt.Errorf("query reminder: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) DueBefore(ctx context.Context, now time.Time) ([]Reminder, error) {
	query := selectReminder + `
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`

	rows, err := s.execer(ctx).QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var due []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		due = append(due, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return due, nil
}

func (s *PostgresStore) Claim(ctx context.Context, reminderID id.ReminderID) error {
	query := `UPDATE reminders SET status = 'claimed' WHERE id = $1 AND status = 'pending'`

	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(reminderID))
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("claim reminder %s: %w", reminderID, sentinel.ErrAlreadyClaimed)
	}
	return nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, reminderID id.ReminderID, sentAt time.Time) error {
	query := `UPDATE reminders SET status = 'sent', sent_at = $2 WHERE id = $1 AND status = 'claimed'`

	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(reminderID), sentAt)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return requireAffected(res, reminderID)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, reminderID id.ReminderID) error {
	query := `UPDATE reminders SET status = 'failed' WHERE id = $1 AND status = 'claimed'`

	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(reminderID))
	if err != nil {
		return fmt.Errorf("mark reminder failed: %w", err)
	}
	return requireAffected(res, reminderID)
}

func (s *PostgresStore) Cancel(ctx context.Context, reminderID id.ReminderID) error {
	query := `UPDATE reminders SET status = 'cancelled' WHERE id = $1 AND status = 'pending'`

	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(reminderID))
	if err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cancel reminder %s: %w", reminderID, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) CancelPendingFor(ctx context.Context, related id.RelatedRef, rtype Type) (int, error) {
	query := `
		UPDATE reminders SET status = 'cancelled'
		WHERE status = 'pending' AND type = $1 AND related_type = $2 AND related_id = $3
	`

	res, err := s.execer(ctx).ExecContext(ctx, query,
		string(rtype), string(related.Kind()), related.ID())
	if err != nil {
		return 0, fmt.Errorf("cancel pending reminders: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel pending reminders: %w", err)
	}
	return int(affected), nil
}

func requireAffected(res sql.Result, reminderID id.ReminderID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize reminder: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finalize reminder %s: %w", reminderID, sentinel.ErrInvalidState)
	}
	return nil
}

const selectReminder = `
	SELECT id, user_id, type, related_type, related_id,
		   scheduled_at, sent_at, status, message, metadata, created_at
	FROM reminders
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (Reminder, error) {
	var (
		r           Reminder
		rawID       uuid.UUID
		rawUserID   uuid.UUID
		rtype       string
		relatedType string
		relatedID   uuid.UUID
		status      string
		metadata    []byte
	)
	err := row.Scan(
		&rawID,
		&rawUserID,
		&rtype,
		&relatedType,
		&relatedID,
		&r.ScheduledAt,
		&r.SentAt,
		&status,
		&r.Message,
		&metadata,
		&r.CreatedAt,
	)
	if err != nil {
		return Reminder{}, err
	}

	r.ID = id.ReminderID(rawID)
	r.UserID = id.UserID(rawUserID)
	r.Type = Type(rtype)
	r.Status = Status(status)
	related, err := id.ParseRelatedRef(relatedType, relatedID)
	if err != nil {
		return Reminder{}, fmt.Errorf("parse related reference: %w", err)
	}
	r.Related = related
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return Reminder{}, fmt.Errorf("unmarshal reminder metadata: %w", err)
		}
	}
	return r, nil
}
