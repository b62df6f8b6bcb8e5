package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type ReminderStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
	now   time.Time
}

func (s *ReminderStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestReminderStoreSuite(t *testing.T) {
	suite.Run(t, new(ReminderStoreSuite))
}

func (s *ReminderStoreSuite) newReminder(scheduledAt time.Time) Reminder {
	return Reminder{
		ID:          id.NewReminderID(),
		UserID:      id.NewUserID(),
		Type:        TypePaymentDue,
		Related:     id.RefRequest(id.NewRequestID()),
		ScheduledAt: scheduledAt,
		Status:      StatusPending,
		Message:     "payment is due",
		CreatedAt:   s.now,
	}
}

func (s *ReminderStoreSuite) TestCreateAndGet() {
	r := s.newReminder(s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	got, err := s.store.GetByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Message, got.Message)
	s.Equal(StatusPending, got.Status)

	s.Run("duplicate ID conflicts", func() {
		s.Require().ErrorIs(s.store.Create(s.ctx, r), sentinel.ErrConflict)
	})

	s.Run("unknown ID is not found", func() {
		_, err := s.store.GetByID(s.ctx, id.NewReminderID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ReminderStoreSuite) TestDueBeforeOrdersAscending() {
	late := s.newReminder(s.now.Add(time.Hour))
	early := s.newReminder(s.now.Add(-time.Hour))
	future := s.newReminder(s.now.Add(48 * time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, late))
	s.Require().NoError(s.store.Create(s.ctx, early))
	s.Require().NoError(s.store.Create(s.ctx, future))

	due, err := s.store.DueBefore(s.ctx, s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal(early.ID, due[0].ID)
	s.Equal(late.ID, due[1].ID)
}

func (s *ReminderStoreSuite) TestClaimIsExclusive() {
	r := s.newReminder(s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	s.Require().NoError(s.store.Claim(s.ctx, r.ID))

	s.Run("second claim is rejected", func() {
		s.Require().ErrorIs(s.store.Claim(s.ctx, r.ID), sentinel.ErrAlreadyClaimed)
	})

	s.Run("claimed reminders are excluded from sweeps", func() {
		due, err := s.store.DueBefore(s.ctx, s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.Empty(due)
	})
}

func (s *ReminderStoreSuite) TestConcurrentClaims() {
	r := s.newReminder(s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	const claimers = 8
	var won atomic.Int32
	var wg sync.WaitGroup
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Claim(s.ctx, r.ID); err == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), won.Load())
}

func (s *ReminderStoreSuite) TestFinalizeRequiresClaim() {
	r := s.newReminder(s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	s.Run("marking an unclaimed reminder sent is invalid", func() {
		s.Require().ErrorIs(s.store.MarkSent(s.ctx, r.ID, s.now), sentinel.ErrInvalidState)
	})

	s.Run("claimed reminders finalize once", func() {
		s.Require().NoError(s.store.Claim(s.ctx, r.ID))
		s.Require().NoError(s.store.MarkSent(s.ctx, r.ID, s.now))

		got, err := s.store.GetByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(StatusSent, got.Status)
		s.Require().NotNil(got.SentAt)
		s.Equal(s.now, *got.SentAt)

		s.Require().ErrorIs(s.store.MarkFailed(s.ctx, r.ID), sentinel.ErrInvalidState)
	})
}

func (s *ReminderStoreSuite) TestCancelPendingFor() {
	related := id.RefRequest(id.NewRequestID())
	first := s.newReminder(s.now)
	first.Related = related
	second := s.newReminder(s.now.Add(time.Hour))
	second.Related = related
	other := s.newReminder(s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, other))

	count, err := s.store.CancelPendingFor(s.ctx, related, TypePaymentDue)
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Run("unrelated reminders are untouched", func() {
		got, err := s.store.GetByID(s.ctx, other.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, got.Status)
	})

	s.Run("cancelled reminders cannot be claimed", func() {
		s.Require().ErrorIs(s.store.Claim(s.ctx, first.ID), sentinel.ErrAlreadyClaimed)
	})
}
