package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	txcontext "certflow/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists payments in PostgreSQL.
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

func (s *PostgresStore) Create(ctx context.Context, p Payment) error {
	query := `
		INSERT INTO payments (
			id, request_id, amount_cents, method, receipt_ref, status,
			verified_by, verified_at, rejection_reason, submitted_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var verifiedBy *uuid.UUID
	if p.VerifiedBy != nil {
		uid := uuid.UUID(*p.VerifiedBy)
		verifiedBy = &uid
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.RequestID),
		p.AmountCents,
		p.Method,
		p.ReceiptRef,
		string(p.Status),
		verifiedBy,
		p.VerifiedAt,
		p.RejectionReason,
		p.SubmittedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, paymentID id.PaymentID) (Payment, error) {
	query := `
		SELECT id, request_id, amount_cents, method, receipt_ref, status,
			   verified_by, verified_at, rejection_reason, submitted_at, updated_at
		FROM payments
		WHERE id = $1
	`

	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(paymentID))
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, fmt.Errorf("get payment %s: %w", paymentID, sentinel.ErrNotFound)
		}
		return Payment{}, fmt.Errorf("query payment: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByRequestID(ctx context.Context, requestID id.RequestID) ([]Payment, error) {
	query := `
		SELECT id, request_id, amount_cents, method, receipt_ref, status,
			   verified_by, verified_at, rejection_reason, submitted_at, updated_at
		FROM payments
		WHERE request_id = $1
		ORDER BY submitted_at DESC
	`

	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, paymentID id.PaymentID, update StatusUpdate) error {
	query := `
		UPDATE payments
		SET status = $2, verified_by = $3, verified_at = $4,
			rejection_reason = $5, updated_at = $6
		WHERE id = $1
	`

	var verifiedBy *uuid.UUID
	if update.VerifiedBy != nil {
		uid := uuid.UUID(*update.VerifiedBy)
		verifiedBy = &uid
	}

	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(paymentID),
		string(update.Status),
		verifiedBy,
		update.VerifiedAt,
		update.RejectionReason,
		update.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update payment %s: %w", paymentID, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (Payment, error) {
	var (
		p          Payment
		rawID      uuid.UUID
		rawReqID   uuid.UUID
		status     string
		verifiedBy *uuid.UUID
	)
	err := row.Scan(
		&rawID,
		&rawReqID,
		&p.AmountCents,
		&p.Method,
		&p.ReceiptRef,
		&status,
		&verifiedBy,
		&p.VerifiedAt,
		&p.RejectionReason,
		&p.SubmittedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return Payment{}, err
	}
	p.ID = id.PaymentID(rawID)
	p.RequestID = id.RequestID(rawReqID)
	p.Status = Status(status)
	if verifiedBy != nil {
		uid := id.UserID(*verifiedBy)
		p.VerifiedBy = &uid
	}
	return p, nil
}
