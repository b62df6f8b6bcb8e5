package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"

	"github.com/google/uuid"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, u User) error {
	query := `
		INSERT INTO users (id, email, full_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = $2, full_name = $3, role = $4
	`
	_, err := s.db.ExecContext(ctx, query, uuid.UUID(u.ID), u.Email, u.FullName, u.Role)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (User, error) {
	query := `SELECT id, email, full_name, role FROM users WHERE id = $1`

	var (
		u     User
		rawID uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(
		&rawID, &u.Email, &u.FullName, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, fmt.Errorf("find user %s: %w", userID, sentinel.ErrNotFound)
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.ID = id.UserID(rawID)
	return u, nil
}
