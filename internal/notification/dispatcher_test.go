package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certflow/internal/ledger"
	"certflow/internal/request"
	"certflow/internal/user"
	id "certflow/pkg/domain"
)

type stubMailer struct {
	sent []Message
	err  error
}

func (m *stubMailer) Send(_ context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type DispatcherSuite struct {
	suite.Suite
	ctx      context.Context
	requests *request.InMemoryStore
	users    *user.InMemoryStore
	mailer   *stubMailer
	disp     *Dispatcher
	owner    id.UserID
	reqID    id.RequestID
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.requests = request.NewInMemoryStore()
	s.users = user.NewInMemoryStore()
	s.mailer = &stubMailer{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.disp = NewDispatcher(s.requests, s.users, s.mailer, logger)

	s.owner = id.NewUserID()
	s.Require().NoError(s.users.Save(s.ctx, user.User{
		ID:    s.owner,
		Email: "owner@example.com",
		Role:  "applicant",
	}))

	s.reqID = id.NewRequestID()
	s.Require().NoError(s.requests.Create(s.ctx, request.Request{
		ID:               s.reqID,
		ApplicantName:    "Ada Lovelace",
		ApplicantAddress: "12 Analytical Lane",
		Status:           request.StatusPending,
		OwnerID:          &s.owner,
		SubmittedAt:      time.Now(),
	}))
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) entry(statusType ledger.StatusType, newStatus string) ledger.Entry {
	return ledger.Entry{
		ID:        uuid.New(),
		RequestID: s.reqID,
		Type:      statusType,
		NewStatus: newStatus,
		CreatedAt: time.Now(),
	}
}

func (s *DispatcherSuite) TestDispatchesTemplatedStatuses() {
	tests := []struct {
		name       string
		statusType ledger.StatusType
		newStatus  string
		subject    string
	}{
		{"application approved", ledger.TypeApplication, "approved", "approved"},
		{"application rejected", ledger.TypeApplication, "rejected", "rejected"},
		{"payment verified", ledger.TypePayment, "verified", "Payment verified"},
		{"payment rejected", ledger.TypePayment, "rejected", "Payment rejected"},
		{"certificate generated", ledger.TypeCertificate, "generated", "Certificate issued"},
		{"certificate sent", ledger.TypeCertificate, "sent", "Certificate dispatched"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			before := len(s.mailer.sent)
			s.Require().NoError(s.disp.OnAppend(s.ctx, s.entry(tt.statusType, tt.newStatus)))
			s.Require().Len(s.mailer.sent, before+1)

			msg := s.mailer.sent[before]
			s.Equal("owner@example.com", msg.To)
			s.Contains(msg.Subject, tt.subject)
			s.Contains(msg.Body, s.reqID.String())
		})
	}
}

func (s *DispatcherSuite) TestUntemplatedStatusIsNoOp() {
	s.Require().NoError(s.disp.OnAppend(s.ctx, s.entry(ledger.TypeApplication, "pending")))
	s.Require().NoError(s.disp.OnAppend(s.ctx, s.entry(ledger.TypeCertificate, "collected")))
	s.Empty(s.mailer.sent)
}

func (s *DispatcherSuite) TestRequestWithoutOwnerIsNoOp() {
	orphan := id.NewRequestID()
	s.Require().NoError(s.requests.Create(s.ctx, request.Request{
		ID:               orphan,
		ApplicantName:    "Walk-in Applicant",
		ApplicantAddress: "counter desk",
		Status:           request.StatusPending,
		SubmittedAt:      time.Now(),
	}))

	entry := s.entry(ledger.TypeApplication, "approved")
	entry.RequestID = orphan
	s.Require().NoError(s.disp.OnAppend(s.ctx, entry))
	s.Empty(s.mailer.sent)
}

func (s *DispatcherSuite) TestMissingOwnerRecordIsNoOp() {
	ghost := id.NewUserID()
	orphan := id.NewRequestID()
	s.Require().NoError(s.requests.Create(s.ctx, request.Request{
		ID:               orphan,
		ApplicantName:    "Ghost Owner",
		ApplicantAddress: "nowhere",
		Status:           request.StatusPending,
		OwnerID:          &ghost,
		SubmittedAt:      time.Now(),
	}))

	entry := s.entry(ledger.TypeApplication, "approved")
	entry.RequestID = orphan
	s.Require().NoError(s.disp.OnAppend(s.ctx, entry))
	s.Empty(s.mailer.sent)
}

func (s *DispatcherSuite) TestMailerFailureIsReported() {
	s.mailer.err = errors.New("ses throttled")

	err := s.disp.OnAppend(s.ctx, s.entry(ledger.TypeApplication, "approved"))
	s.Require().Error(err)
	s.True(strings.Contains(err.Error(), "ses throttled"))
}

func (s *DispatcherSuite) TestUnknownRequestIsReported() {
	entry := s.entry(ledger.TypeApplication, "approved")
	entry.RequestID = id.NewRequestID()
	s.Require().Error(s.disp.OnAppend(s.ctx, entry))
}
