package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type PaymentStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
	now   time.Time
}

func (s *PaymentStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func TestPaymentStoreSuite(t *testing.T) {
	suite.Run(t, new(PaymentStoreSuite))
}

func (s *PaymentStoreSuite) newPayment(requestID id.RequestID, submittedAt time.Time) Payment {
	return Payment{
		ID:          id.NewPaymentID(),
		RequestID:   requestID,
		AmountCents: 150_00,
		Method:      "bank_transfer",
		Status:      StatusPending,
		SubmittedAt: submittedAt,
		UpdatedAt:   submittedAt,
	}
}

func (s *PaymentStoreSuite) TestListByRequestIDNewestFirst() {
	requestID := id.NewRequestID()
	first := s.newPayment(requestID, s.now)
	second := s.newPayment(requestID, s.now.Add(time.Hour))
	other := s.newPayment(id.NewRequestID(), s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))
	s.Require().NoError(s.store.Create(s.ctx, second))
	s.Require().NoError(s.store.Create(s.ctx, other))

	payments, err := s.store.ListByRequestID(s.ctx, requestID)
	s.Require().NoError(err)
	s.Require().Len(payments, 2)
	s.Equal(second.ID, payments[0].ID)
	s.Equal(first.ID, payments[1].ID)
}

func (s *PaymentStoreSuite) TestUpdateStatus() {
	p := s.newPayment(id.NewRequestID(), s.now)
	s.Require().NoError(s.store.Create(s.ctx, p))

	verifier := id.NewUserID()
	verifiedAt := s.now.Add(time.Hour)
	s.Require().NoError(s.store.UpdateStatus(s.ctx, p.ID, StatusUpdate{
		Status:     StatusVerified,
		VerifiedBy: &verifier,
		VerifiedAt: &verifiedAt,
		UpdatedAt:  verifiedAt,
	}))

	got, err := s.store.GetByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(StatusVerified, got.Status)
	s.Require().NotNil(got.VerifiedBy)
	s.Equal(verifier, *got.VerifiedBy)
	s.True(got.Status.Terminal())

	s.Run("rejection stores the reason", func() {
		rejected := s.newPayment(id.NewRequestID(), s.now)
		s.Require().NoError(s.store.Create(s.ctx, rejected))
		s.Require().NoError(s.store.UpdateStatus(s.ctx, rejected.ID, StatusUpdate{
			Status:          StatusRejected,
			RejectionReason: "receipt unreadable",
			UpdatedAt:       verifiedAt,
		}))

		got, err := s.store.GetByID(s.ctx, rejected.ID)
		s.Require().NoError(err)
		s.Equal("receipt unreadable", got.RejectionReason)
	})

	s.Run("unknown payment is not found", func() {
		err := s.store.UpdateStatus(s.ctx, id.NewPaymentID(), StatusUpdate{Status: StatusVerified})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
