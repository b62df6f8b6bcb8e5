package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[id.ReportID]Report
	// byRequest enforces the one-report-per-request rule the postgres store
	// gets from a unique index.
	byRequest map[id.RequestID]id.ReportID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reports:   make(map[id.ReportID]Report),
		byRequest: make(map[id.RequestID]id.ReportID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRequest[report.RequestID]; exists {
		return fmt.Errorf("create report for request %s: %w", report.RequestID, sentinel.ErrConflict)
	}
	s.reports[report.ID] = report
	s.byRequest[report.RequestID] = report.ID
	return nil
}

func (s *InMemoryStore) GetByRequestID(_ context.Context, requestID id.RequestID) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reportID, ok := s.byRequest[requestID]
	if !ok {
		return Report{}, fmt.Errorf("get report for request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return s.reports[reportID], nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, reportID id.ReportID, evaluation Outcome, workflowStatus WorkflowStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return fmt.Errorf("update report %s: %w", reportID, sentinel.ErrNotFound)
	}
	report.Evaluation = evaluation
	report.WorkflowStatus = workflowStatus
	report.UpdatedAt = updatedAt
	s.reports[reportID] = report
	return nil
}
