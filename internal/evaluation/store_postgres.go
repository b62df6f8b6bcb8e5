package evaluation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	txcontext "certflow/pkg/platform/tx"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore persists evaluation reports. The evaluation_reports table
// carries a unique index on request_id so a request can never grow a second
// report.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, report Report) error {
	query := `
		INSERT INTO evaluation_reports (
			id, request_id, evaluation, workflow_status,
			evaluated_by, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var evaluatedBy *uuid.UUID
	if report.EvaluatedBy != nil {
		uid := uuid.UUID(*report.EvaluatedBy)
		evaluatedBy = &uid
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(report.ID),
		uuid.UUID(report.RequestID),
		string(report.Evaluation),
		string(report.WorkflowStatus),
		evaluatedBy,
		report.Notes,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create report for request %s: %w", report.RequestID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert evaluation report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByRequestID(ctx context.Context, requestID id.RequestID) (Report, error) {
	query := `
		SELECT id, request_id, evaluation, workflow_status,
			   evaluated_by, notes, created_at, updated_at
		FROM evaluation_reports
		WHERE request_id = $1
	`

	var (
		report      Report
		rawID       uuid.UUID
		rawReqID    uuid.UUID
		outcome     string
		status      string
		evaluatedBy *uuid.UUID
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)).Scan(
		&rawID,
		&rawReqID,
		&outcome,
		&status,
		&evaluatedBy,
		&report.Notes,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, fmt.Errorf("get report for request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return Report{}, fmt.Errorf("query evaluation report: %w", err)
	}

	report.ID = id.ReportID(rawID)
	report.RequestID = id.RequestID(rawReqID)
	report.Evaluation = Outcome(outcome)
	report.WorkflowStatus = WorkflowStatus(status)
	if evaluatedBy != nil {
		uid := id.UserID(*evaluatedBy)
		report.EvaluatedBy = &uid
	}
	return report, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, reportID id.ReportID, evaluation Outcome, workflowStatus WorkflowStatus, updatedAt time.Time) error {
	query := `
		UPDATE evaluation_reports
		SET evaluation = $2, workflow_status = $3, updated_at = $4
		WHERE id = $1
	`

	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(reportID), string(evaluation), string(workflowStatus), updatedAt)
	if err != nil {
		return fmt.Errorf("update evaluation report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update evaluation report: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update report %s: %w", reportID, sentinel.ErrNotFound)
	}
	return nil
}
