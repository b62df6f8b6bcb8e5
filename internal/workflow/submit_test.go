package workflow

import (
	id "certflow/pkg/domain"
	dErrors "certflow/pkg/domain-errors"
)

func (s *EngineSuite) TestSubmitRequestValidation() {
	s.Run("rejects missing applicant name", func() {
		_, err := s.engine.SubmitRequest(s.ctx, SubmitRequestInput{
			ApplicantAddress: "12 Analytical Lane",
		})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("rejects missing applicant address", func() {
		_, err := s.engine.SubmitRequest(s.ctx, SubmitRequestInput{
			ApplicantName: "Ada Lovelace",
		})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("a request may have no owning user", func() {
		req, err := s.engine.SubmitRequest(s.ctx, SubmitRequestInput{
			ApplicantName:    "Walk-in Applicant",
			ApplicantAddress: "counter desk",
		})
		s.Require().NoError(err)
		s.Nil(req.OwnerID)
	})
}

func (s *EngineSuite) TestSubmitPaymentValidation() {
	req := s.submit()
	s.approve(req.ID)

	s.Run("rejects non-positive amounts", func() {
		_, err := s.engine.SubmitPayment(s.ctx, req.ID, SubmitPaymentInput{
			AmountCents: 0,
			Method:      "cash",
		}, &s.owner)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("rejects a missing method", func() {
		_, err := s.engine.SubmitPayment(s.ctx, req.ID, SubmitPaymentInput{
			AmountCents: 100,
		}, &s.owner)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func (s *EngineSuite) TestSubmitPaymentRequiresApproval() {
	req := s.submit()

	_, err := s.engine.SubmitPayment(s.ctx, req.ID, SubmitPaymentInput{
		AmountCents: 100,
		Method:      "cash",
	}, &s.owner)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodePreconditionFailed))
}

func (s *EngineSuite) TestSubmitPaymentUnknownRequest() {
	_, err := s.engine.SubmitPayment(s.ctx, id.NewRequestID(), SubmitPaymentInput{
		AmountCents: 100,
		Method:      "cash",
	}, &s.owner)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}
