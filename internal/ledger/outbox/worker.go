// Package outbox publishes committed ledger entries to Kafka. The ledger
// store writes an outbox row in the same transaction as each status_history
// row; this worker drains unpublished rows so downstream audit consumers see
// every transition without the write path ever talking to Kafka directly.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const defaultBatchSize = 100

// Row is one unpublished outbox record.
type Row struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Worker polls the outbox table and publishes each row to the audit topic.
// Rows are marked published only after the produce is acknowledged, so a
// crash between produce and mark can re-publish a row; consumers must treat
// the entry ID as the dedup key.
type Worker struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(db *sql.DB, client *kgo.Client, topic string, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{db: db, client: client, topic: topic, interval: interval, logger: logger}
}

// EnsureTopic creates the audit topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, res.Err)
		}
	}
	return nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// drain publishes one batch of unpublished rows.
func (w *Worker) drain(ctx context.Context) error {
	rows, err := w.fetchUnpublished(ctx, defaultBatchSize)
	if err != nil {
		return err
	}

	for _, row := range rows {
		record := &kgo.Record{
			Topic: w.topic,
			Key:   []byte(row.AggregateID),
			Value: row.Payload,
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce outbox row %s: %w", row.ID, err)
		}
		if err := w.markPublished(ctx, row.ID); err != nil {
			return err
		}
	}

	if len(rows) > 0 {
		w.logger.InfoContext(ctx, "outbox rows published", "count", len(rows))
	}
	return nil
}

func (w *Worker) fetchUnpublished(ctx context.Context, limit int) ([]Row, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := w.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.AggregateType, &r.AggregateID, &r.EventType, &r.Payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return result, nil
}

func (w *Worker) markPublished(ctx context.Context, rowID uuid.UUID) error {
	_, err := w.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $2 WHERE id = $1`, rowID, time.Now())
	if err != nil {
		return fmt.Errorf("mark outbox row published: %w", err)
	}
	return nil
}
