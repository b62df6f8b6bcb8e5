package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	id "certflow/pkg/domain"
	txcontext "certflow/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists ledger entries. Each append also writes an outbox
// row in the same transaction; the outbox worker publishes those rows to
// Kafka for downstream audit consumers. The status_history table itself is
// the source of truth for replay.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID        string  `json:"id"`
	RequestID string  `json:"request_id"`
	Type      string  `json:"status_type"`
	OldStatus *string `json:"old_status,omitempty"`
	NewStatus string  `json:"new_status"`
	ChangedBy string  `json:"changed_by,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	exec := s.execer(ctx)

	var changedBy *uuid.UUID
	if entry.ChangedBy != nil {
		uid := uuid.UUID(*entry.ChangedBy)
		changedBy = &uid
	}

	historyQuery := `
		INSERT INTO status_history (
			id, request_id, status_type, old_status, new_status,
			changed_by, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := exec.ExecContext(ctx, historyQuery,
		entry.ID,
		uuid.UUID(entry.RequestID),
		string(entry.Type),
		entry.OldStatus,
		entry.NewStatus,
		changedBy,
		entry.Notes,
		entry.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert status history: %w", err)
	}

	payload := outboxPayload{
		ID:        entry.ID.String(),
		RequestID: entry.RequestID.String(),
		Type:      string(entry.Type),
		OldStatus: entry.OldStatus,
		NewStatus: entry.NewStatus,
		Notes:     entry.Notes,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339Nano),
	}
	if entry.ChangedBy != nil {
		payload.ChangedBy = entry.ChangedBy.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	outboxQuery := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = exec.ExecContext(ctx, outboxQuery,
		uuid.New(),
		"request",
		entry.RequestID.String(),
		"status_changed",
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox entry: %w", err)
	}

	return entry.ID, nil
}

func (s *PostgresStore) ListForRequest(ctx context.Context, requestID id.RequestID) ([]Entry, error) {
	query := `
		SELECT id, request_id, status_type, old_status, new_status,
			   changed_by, notes, created_at
		FROM status_history
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			rawReqID  uuid.UUID
			entryType string
			changedBy *uuid.UUID
		)
		err := rows.Scan(
			&entry.ID,
			&rawReqID,
			&entryType,
			&entry.OldStatus,
			&entry.NewStatus,
			&changedBy,
			&entry.Notes,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		entry.RequestID = id.RequestID(rawReqID)
		entry.Type = StatusType(entryType)
		if changedBy != nil {
			uid := id.UserID(*changedBy)
			entry.ChangedBy = &uid
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return entries, nil
}
