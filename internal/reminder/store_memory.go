package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	reminders map[id.ReminderID]Reminder
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reminders: make(map[id.ReminderID]Reminder)}
}

func (s *InMemoryStore) Create(_ context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reminders[r.ID]; exists {
		return fmt.Errorf("create reminder %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.reminders[r.ID] = r
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, reminderID id.ReminderID) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[reminderID]
	if !ok {
		return Reminder{}, fmt.Errorf("get reminder %s: %w", reminderID, sentinel.ErrNotFound)
	}
	return r, nil
}

func (s *InMemoryStore) DueBefore(_ context.Context, now time.Time) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []Reminder
	for _, r := range s.reminders {
		if r.Status == StatusPending && !r.ScheduledAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	return due, nil
}

func (s *InMemoryStore) Claim(_ context.Context, reminderID id.ReminderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[reminderID]
	if !ok {
		return fmt.Errorf("claim reminder %s: %w", reminderID, sentinel.ErrNotFound)
	}
	if r.Status != StatusPending {
		return fmt.Errorf("claim reminder %s: %w", reminderID, sentinel.ErrAlreadyClaimed)
	}
	r.Status = StatusClaimed
	s.reminders[reminderID] = r
	return nil
}

func (s *InMemoryStore) MarkSent(_ context.Context, reminderID id.ReminderID, sentAt time.Time) error {
	return s.finalize(reminderID, StatusSent, &sentAt)
}

func (s *InMemoryStore) MarkFailed(_ context.Context, reminderID id.ReminderID) error {
	return s.finalize(reminderID, StatusFailed, nil)
}

func (s *InMemoryStore) finalize(reminderID id.ReminderID, status Status, sentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[reminderID]
	if !ok {
		return fmt.Errorf("finalize reminder %s: %w", reminderID, sentinel.ErrNotFound)
	}
	if r.Status != StatusClaimed {
		return fmt.Errorf("finalize reminder %s in status %s: %w", reminderID, r.Status, sentinel.ErrInvalidState)
	}
	r.Status = status
	r.SentAt = sentAt
	s.reminders[reminderID] = r
	return nil
}

func (s *InMemoryStore) Cancel(_ context.Context, reminderID id.ReminderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[reminderID]
	if !ok {
		return fmt.Errorf("cancel reminder %s: %w", reminderID, sentinel.ErrNotFound)
	}
	if r.Status != StatusPending {
		return fmt.Errorf("cancel reminder %s in status %s: %w", reminderID, r.Status, sentinel.ErrInvalidState)
	}
	r.Status = StatusCancelled
	s.reminders[reminderID] = r
	return nil
}

func (s *InMemoryStore) CancelPendingFor(_ context.Context, related id.RelatedRef, rtype Type) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for rid, r := range s.reminders {
		if r.Status == StatusPending && r.Type == rtype && r.Related == related {
			r.Status = StatusCancelled
			s.reminders[rid] = r
			count++
		}
	}
	return count, nil
}
