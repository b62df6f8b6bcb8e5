//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certflow/internal/ledger"
	"certflow/internal/request"
	id "certflow/pkg/domain"
	"certflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
	requests *request.PostgresStore
	reqID    id.RequestID
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = ledger.NewPostgresStore(s.postgres.DB)
	s.requests = request.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "status_history", "outbox", "requests"))

	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.reqID = id.NewRequestID()
	s.Require().NoError(s.requests.Create(ctx, request.Request{
		ID:               s.reqID,
		ApplicantName:    "Ada Lovelace",
		ApplicantAddress: "12 Analytical Lane",
		Status:           request.StatusPending,
		SubmittedAt:      s.now,
		UpdatedAt:        s.now,
	}))
}

func (s *PostgresStoreSuite) entry(newStatus string, at time.Time) ledger.Entry {
	old := "pending"
	return ledger.Entry{
		ID:        uuid.New(),
		RequestID: s.reqID,
		Type:      ledger.TypeApplication,
		OldStatus: &old,
		NewStatus: newStatus,
		Notes:     "evaluation passed",
		CreatedAt: at,
	}
}

func (s *PostgresStoreSuite) TestAppendWritesHistoryAndOutboxTogether() {
	ctx := context.Background()
	entry := s.entry("approved", s.now)

	entryID, err := s.store.Append(ctx, entry)
	s.Require().NoError(err)
	s.Equal(entry.ID, entryID)

	entries, err := s.store.ListForRequest(ctx, s.reqID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("approved", entries[0].NewStatus)
	s.Require().NotNil(entries[0].OldStatus)
	s.Equal("pending", *entries[0].OldStatus)

	s.Run("an unpublished outbox row carries the entry", func() {
		var count int
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND published_at IS NULL`,
			uuid.UUID(s.reqID)).Scan(&count)
		s.Require().NoError(err)
		s.Equal(1, count)
	})
}

func (s *PostgresStoreSuite) TestListForRequestOldestFirst() {
	ctx := context.Background()
	later := s.entry("approved", s.now.Add(time.Hour))
	earlier := s.entry("pending", s.now)
	_, err := s.store.Append(ctx, later)
	s.Require().NoError(err)
	_, err = s.store.Append(ctx, earlier)
	s.Require().NoError(err)

	entries, err := s.store.ListForRequest(ctx, s.reqID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("pending", entries[0].NewStatus)
	s.Equal("approved", entries[1].NewStatus)

	s.Run("another request has an empty trail", func() {
		entries, err := s.store.ListForRequest(ctx, id.NewRequestID())
		s.Require().NoError(err)
		s.Empty(entries)
	})
}
