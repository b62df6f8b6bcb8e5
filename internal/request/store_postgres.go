package request

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

// PostgresStore persists requests in PostgreSQL. Status updates participate
// in a workflow transaction when one is present in the context.
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

func (s *PostgresStore) Create(ctx context.Context, req Request) error {
	query := `
		INSERT INTO requests (
			id, applicant_name, applicant_address, project_name,
			project_location, project_purpose, status, owner_id,
			submitted_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var ownerID *uuid.UUID
	if req.OwnerID != nil {
		uid := uuid.UUID(*req.OwnerID)
		ownerID = &uid
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		req.ApplicantName,
		req.ApplicantAddress,
		req.ProjectName,
		req.ProjectLocation,
		req.ProjectPurpose,
		string(req.Status),
		ownerID,
		req.SubmittedAt,
		req.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create request %s: %w", req.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, requestID id.RequestID) (Request, error) {
	query := `
		SELECT id, applicant_name, applicant_address, project_name,
			   project_location, project_purpose, status, owner_id,
			   submitted_at, updated_at
		FROM requests
		WHERE id = $1
	`

	var (
		req     Request
		rawID   uuid.UUID
		status  string
		ownerID *uuid.UUID
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)).Scan(
		&rawID,
		&req.ApplicantName,
		&req.ApplicantAddress,
		&req.ProjectName,
		&req.ProjectLocation,
		&req.ProjectPurpose,
		&status,
		&ownerID,
		&req.SubmittedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, fmt.Errorf("get request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return Request{}, fmt.Errorf("query request: %w", err)
	}

	req.ID = id.RequestID(rawID)
	req.Status = Status(status)
	if ownerID != nil {
		uid := id.UserID(*ownerID)
		req.OwnerID = &uid
	}
	return req, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, requestID id.RequestID, status Status, updatedAt time.Time) error {
	query := `UPDATE requests SET status = $2, updated_at = $3 WHERE id = $1`

	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(requestID), string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return nil
}
