package user

import (
	"context"

	id "certflow/pkg/domain"
)

type Store interface {
	Save(ctx context.Context, u User) error
	FindByID(ctx context.Context, userID id.UserID) (User, error)
}
