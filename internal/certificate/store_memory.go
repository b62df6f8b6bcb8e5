package certificate

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	certs     map[id.CertificateID]Certificate
	byRequest map[id.RequestID]id.CertificateID
	numbers   map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		certs:     make(map[id.CertificateID]Certificate),
		byRequest: make(map[id.RequestID]id.CertificateID),
		numbers:   make(map[string]struct{}),
	}
}

func (s *InMemoryStore) Create(_ context.Context, cert Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRequest[cert.RequestID]; exists {
		return fmt.Errorf("create certificate for request %s: %w", cert.RequestID, sentinel.ErrConflict)
	}
	if _, exists := s.numbers[cert.Number]; exists {
		return fmt.Errorf("create certificate %s: %w", cert.Number, sentinel.ErrConflict)
	}
	s.certs[cert.ID] = cert
	s.byRequest[cert.RequestID] = cert.ID
	s.numbers[cert.Number] = struct{}{}
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, certID id.CertificateID) (Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[certID]
	if !ok {
		return Certificate{}, fmt.Errorf("get certificate %s: %w", certID, sentinel.ErrNotFound)
	}
	return cert, nil
}

func (s *InMemoryStore) GetActiveByRequestID(_ context.Context, requestID id.RequestID) (Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certID, ok := s.byRequest[requestID]
	if !ok {
		return Certificate{}, fmt.Errorf("get certificate for request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return s.certs[certID], nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, certID id.CertificateID, status Status, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certs[certID]
	if !ok {
		return fmt.Errorf("update certificate %s: %w", certID, sentinel.ErrNotFound)
	}
	cert.Status = status
	cert.UpdatedAt = updatedAt
	s.certs[certID] = cert
	return nil
}
