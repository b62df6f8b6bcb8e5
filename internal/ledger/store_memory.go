package ledger

import (
	"context"
	"sort"
	"sync"

	id "certflow/pkg/domain"

	"github.com/google/uuid"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

func (s *InMemoryStore) ListForRequest(_ context.Context, requestID id.RequestID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Entry
	for _, e := range s.entries {
		if e.RequestID == requestID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
