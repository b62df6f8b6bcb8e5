package user

import (
	"context"
	"fmt"
	"sync"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	users map[id.UserID]User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[id.UserID]User)}
}

func (s *InMemoryStore) Save(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return User{}, fmt.Errorf("find user %s: %w", userID, sentinel.ErrNotFound)
	}
	return u, nil
}
