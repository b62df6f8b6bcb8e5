package certificate

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

// PostgresStore persists certificates. A partial unique index on request_id
// (WHERE active) and a unique index on number back the at-most-one-active
// and unique-number rules; violations surface as sentinel.ErrConflict.
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

func (s *PostgresStore) Create(ctx context.Context, cert Certificate) error {
	query := `
		INSERT INTO certificates (
			id, request_id, number, status, issued_by, issued_at, updated_at, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`

	var issuedBy *uuid.UUID
	if cert.IssuedBy != nil {
		uid := uuid.UUID(*cert.IssuedBy)
		issuedBy = &uid
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(cert.ID),
		uuid.UUID(cert.RequestID),
		cert.Number,
		string(cert.Status),
		issuedBy,
		cert.IssuedAt,
		cert.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("create certificate for request %s: %w", cert.RequestID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, certID id.CertificateID) (Certificate, error) {
	query := `
		SELECT id, request_id, number, status, issued_by, issued_at, updated_at
		FROM certificates
		WHERE id = $1
	`

	cert, err := s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(certID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Certificate{}, fmt.Errorf("get certificate %s: %w", certID, sentinel.ErrNotFound)
		}
		return Certificate{}, fmt.Errorf("query certificate: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) GetActiveByRequestID(ctx context.Context, requestID id.RequestID) (Certificate, error) {
	query := `
		SELECT id, request_id, number, status, issued_by, issued_at, updated_at
		FROM certificates
		WHERE request_id = $1 AND active
	`

	cert, err := s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Certificate{}, fmt.Errorf("get certificate for request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return Certificate{}, fmt.Errorf("query certificate: %w", err)
	}
	return cert, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, certID id.CertificateID, status Status, updatedAt time.Time) error {
	query := `UPDATE certificates SET status = $2, updated_at = $3 WHERE id = $1`

	res, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(certID), string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update certificate status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update certificate %s: %w", certID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (Certificate, error) {
	var (
		cert     Certificate
		rawID    uuid.UUID
		rawReqID uuid.UUID
		status   string
		issuedBy *uuid.UUID
	)
	err := row.Scan(
		&rawID,
		&rawReqID,
		&cert.Number,
		&status,
		&issuedBy,
		&cert.IssuedAt,
		&cert.UpdatedAt,
	)
	if err != nil {
		return Certificate{}, err
	}
	cert.ID = id.CertificateID(rawID)
	cert.RequestID = id.RequestID(rawReqID)
	cert.Status = Status(status)
	if issuedBy != nil {
		uid := id.UserID(*issuedBy)
		cert.IssuedBy = &uid
	}
	return cert, nil
}
