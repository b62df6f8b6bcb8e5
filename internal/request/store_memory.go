package request

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.RequestID]Request)}
}

func (s *InMemoryStore) Create(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("create request %s: %w", req.ID, sentinel.ErrConflict)
	}
	s.requests[req.ID] = req
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, requestID id.RequestID) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	if !ok {
		return Request{}, fmt.Errorf("get request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return req, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, requestID id.RequestID, status Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("update request %s: %w", requestID, sentinel.ErrNotFound)
	}
	req.Status = status
	req.UpdatedAt = updatedAt
	s.requests[requestID] = req
	return nil
}
