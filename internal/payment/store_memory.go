package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]Payment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{payments: make(map[id.PaymentID]Payment)}
}

func (s *InMemoryStore) Create(_ context.Context, p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[p.ID]; exists {
		return fmt.Errorf("create payment %s: %w", p.ID, sentinel.ErrConflict)
	}
	s.payments[p.ID] = p
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, paymentID id.PaymentID) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return Payment{}, fmt.Errorf("get payment %s: %w", paymentID, sentinel.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryStore) ListByRequestID(_ context.Context, requestID id.RequestID) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Payment
	for _, p := range s.payments {
		if p.RequestID == requestID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, paymentID id.PaymentID, update StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return fmt.Errorf("update payment %s: %w", paymentID, sentinel.ErrNotFound)
	}
	p.Status = update.Status
	p.VerifiedBy = update.VerifiedBy
	p.VerifiedAt = update.VerifiedAt
	p.RejectionReason = update.RejectionReason
	p.UpdatedAt = update.UpdatedAt
	s.payments[paymentID] = p
	return nil
}
