package request

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

type RequestStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func (s *RequestStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreSuite))
}

func (s *RequestStoreSuite) newRequest() Request {
	now := time.Now()
	return Request{
		ID:               id.NewRequestID(),
		ApplicantName:    "Ada Lovelace",
		ApplicantAddress: "12 Analytical Lane",
		ProjectName:      "Warehouse extension",
		Status:           StatusPending,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}
}

func (s *RequestStoreSuite) TestCreateAndGet() {
	req := s.newRequest()
	s.Require().NoError(s.store.Create(s.ctx, req))

	got, err := s.store.GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.ApplicantName, got.ApplicantName)
	s.Equal(StatusPending, got.Status)

	s.Run("duplicate ID conflicts", func() {
		s.Require().ErrorIs(s.store.Create(s.ctx, req), sentinel.ErrConflict)
	})

	s.Run("unknown ID is not found", func() {
		_, err := s.store.GetByID(s.ctx, id.NewRequestID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RequestStoreSuite) TestUpdateStatus() {
	req := s.newRequest()
	s.Require().NoError(s.store.Create(s.ctx, req))

	updatedAt := time.Now().Add(time.Minute)
	s.Require().NoError(s.store.UpdateStatus(s.ctx, req.ID, StatusApproved, updatedAt))

	got, err := s.store.GetByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(StatusApproved, got.Status)
	s.Equal(updatedAt, got.UpdatedAt)

	s.Run("applicant fields survive status updates", func() {
		s.Equal(req.ApplicantName, got.ApplicantName)
		s.Equal(req.ApplicantAddress, got.ApplicantAddress)
	})

	s.Run("unknown ID is not found", func() {
		err := s.store.UpdateStatus(s.ctx, id.NewRequestID(), StatusApproved, updatedAt)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
