package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certflow/internal/notification"
	"certflow/internal/user"
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

// recordMailer fails any message whose body contains "FAIL" so tests can mix
// deliverable and undeliverable reminders in one sweep.
type recordMailer struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (m *recordMailer) Send(_ context.Context, msg notification.Message) error {
	if strings.Contains(msg.Body, "FAIL") {
		return errors.New("smtp unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type SchedulerSuite struct {
	suite.Suite
	ctx    context.Context
	store  *InMemoryStore
	users  *user.InMemoryStore
	mailer *recordMailer
	sched  *Scheduler
	userID id.UserID
	now    time.Time
}

func (s *SchedulerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.users = user.NewInMemoryStore()
	s.mailer = &recordMailer{}
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.sched = NewScheduler(s.store, s.users, s.mailer, NewLocalLock(), logger,
		WithClock(func() time.Time { return s.now }))

	s.userID = id.NewUserID()
	s.Require().NoError(s.users.Save(s.ctx, user.User{
		ID:    s.userID,
		Email: "applicant@example.com",
		Role:  "applicant",
	}))
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) schedule(delay time.Duration, message string) Reminder {
	r, err := s.sched.Schedule(s.ctx, s.userID, TypePaymentDue,
		id.RefRequest(id.NewRequestID()), delay, message, nil)
	s.Require().NoError(err)
	return r
}

func (s *SchedulerSuite) TestScheduleValidation() {
	s.Run("rejects negative delay", func() {
		_, err := s.sched.Schedule(s.ctx, s.userID, TypePaymentDue,
			id.RefRequest(id.NewRequestID()), -time.Hour, "pay up", nil)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("rejects empty message", func() {
		_, err := s.sched.Schedule(s.ctx, s.userID, TypePaymentDue,
			id.RefRequest(id.NewRequestID()), time.Hour, "", nil)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("rejects missing related entity", func() {
		_, err := s.sched.Schedule(s.ctx, s.userID, TypePaymentDue,
			id.RelatedRef{}, time.Hour, "pay up", nil)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("creates a pending reminder at now plus delay", func() {
		r := s.schedule(2*time.Hour, "pay up")
		s.Equal(StatusPending, r.Status)
		s.Equal(s.now.Add(2*time.Hour), r.ScheduledAt)
	})
}

func (s *SchedulerSuite) TestSweepSendsDueReminders() {
	due := s.schedule(time.Hour, "payment is due")
	future := s.schedule(48*time.Hour, "not yet")

	processed, err := s.sched.Sweep(s.ctx, s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, processed)

	s.Require().Len(s.mailer.sent, 1)
	s.Equal("applicant@example.com", s.mailer.sent[0].To)
	s.Equal("payment is due", s.mailer.sent[0].Body)

	got, err := s.store.GetByID(s.ctx, due.ID)
	s.Require().NoError(err)
	s.Equal(StatusSent, got.Status)
	s.NotNil(got.SentAt)

	s.Run("the future reminder stays pending", func() {
		got, err := s.store.GetByID(s.ctx, future.ID)
		s.Require().NoError(err)
		s.Equal(StatusPending, got.Status)
	})
}

func (s *SchedulerSuite) TestSweepIsExactlyOnce() {
	s.schedule(time.Hour, "payment is due")

	at := s.now.Add(2 * time.Hour)
	processed, err := s.sched.Sweep(s.ctx, at)
	s.Require().NoError(err)
	s.Equal(1, processed)

	s.Run("a repeated sweep finds nothing to do", func() {
		processed, err := s.sched.Sweep(s.ctx, at)
		s.Require().NoError(err)
		s.Equal(0, processed)
		s.Len(s.mailer.sent, 1)
	})
}

func (s *SchedulerSuite) TestSweepIsolatesFailures() {
	bad := s.schedule(time.Hour, "FAIL this one")
	good := s.schedule(time.Hour+time.Minute, "payment is due")

	processed, err := s.sched.Sweep(s.ctx, s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(2, processed)

	gotBad, err := s.store.GetByID(s.ctx, bad.ID)
	s.Require().NoError(err)
	s.Equal(StatusFailed, gotBad.Status)

	gotGood, err := s.store.GetByID(s.ctx, good.ID)
	s.Require().NoError(err)
	s.Equal(StatusSent, gotGood.Status)

	s.Run("a failed reminder is not retried by a later sweep", func() {
		processed, err := s.sched.Sweep(s.ctx, s.now.Add(3*time.Hour))
		s.Require().NoError(err)
		s.Equal(0, processed)
	})
}

func (s *SchedulerSuite) TestSweepSkipsUnknownRecipient() {
	r, err := s.sched.Schedule(s.ctx, id.NewUserID(), TypePaymentDue,
		id.RefRequest(id.NewRequestID()), time.Hour, "payment is due", nil)
	s.Require().NoError(err)

	processed, err := s.sched.Sweep(s.ctx, s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, processed)

	got, err := s.store.GetByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(StatusFailed, got.Status)
	s.Empty(s.mailer.sent)
}

func (s *SchedulerSuite) TestCancelSuppressesPendingReminders() {
	related := id.RefRequest(id.NewRequestID())
	r, err := s.sched.Schedule(s.ctx, s.userID, TypePaymentDue, related, time.Hour, "payment is due", nil)
	s.Require().NoError(err)

	count, err := s.sched.Cancel(s.ctx, related, TypePaymentDue)
	s.Require().NoError(err)
	s.Equal(1, count)

	got, err := s.store.GetByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(StatusCancelled, got.Status)

	s.Run("a cancelled reminder is never swept", func() {
		processed, err := s.sched.Sweep(s.ctx, s.now.Add(2*time.Hour))
		s.Require().NoError(err)
		s.Equal(0, processed)
		s.Empty(s.mailer.sent)
	})

	s.Run("cancelling again is a counted no-op", func() {
		count, err := s.sched.Cancel(s.ctx, related, TypePaymentDue)
		s.Require().NoError(err)
		s.Equal(0, count)
	})
}

func (s *SchedulerSuite) TestSweepSkipsWhenLeaseHeld() {
	s.schedule(time.Hour, "payment is due")

	lock := NewLocalLock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(s.store, s.users, s.mailer, lock, logger,
		WithClock(func() time.Time { return s.now }))

	release, acquired, err := lock.TryAcquire(s.ctx)
	s.Require().NoError(err)
	s.Require().True(acquired)
	defer release()

	processed, err := sched.Sweep(s.ctx, s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(0, processed)
	s.Empty(s.mailer.sent)
}
