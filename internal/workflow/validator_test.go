package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certflow/pkg/domain-errors"
)

func Test_Validate_LegalTransitions(t *testing.T) {
	tests := []struct {
		name     string
		kind     EntityKind
		state    string
		event    Event
		newState string
	}{
		{"request approve", KindRequest, "pending", EventApprove, "approved"},
		{"request reject", KindRequest, "pending", EventReject, "rejected"},

		{"report approve", KindReport, "pending_approval", EventApprove, "approved_pending_payment"},
		{"report submit payment", KindReport, "approved_pending_payment", EventSubmitPayment, "payment_submitted"},
		{"report verify payment", KindReport, "payment_submitted", EventVerifyPayment, "payment_verified"},
		{"report issue certificate", KindReport, "payment_verified", EventIssueCertificate, "certificate_issued"},
		{"report reject keeps position at pending_approval", KindReport, "pending_approval", EventReject, "pending_approval"},
		{"report reject keeps position at payment_submitted", KindReport, "payment_submitted", EventReject, "payment_submitted"},
		{"report reject keeps position at payment_verified", KindReport, "payment_verified", EventReject, "payment_verified"},

		{"payment verify", KindPayment, "pending", EventVerify, "verified"},
		{"payment reject", KindPayment, "pending", EventReject, "rejected"},

		{"certificate send", KindCertificate, "generated", EventSend, "sent"},
		{"certificate collect", KindCertificate, "sent", EventCollect, "collected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newState, err := Validate(tt.kind, tt.state, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.newState, newState)
		})
	}
}

func Test_Validate_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		kind  EntityKind
		state string
		event Event
	}{
		{"request approve twice", KindRequest, "approved", EventApprove},
		{"request reject after approve", KindRequest, "approved", EventReject},
		{"request approve after reject", KindRequest, "rejected", EventApprove},

		{"report skips payment submission", KindReport, "approved_pending_payment", EventVerifyPayment},
		{"report skips verification", KindReport, "payment_submitted", EventIssueCertificate},
		{"report issue twice", KindReport, "certificate_issued", EventIssueCertificate},
		{"report reject after issuance", KindReport, "certificate_issued", EventReject},
		{"report approve mid-chain", KindReport, "payment_submitted", EventApprove},

		{"payment verify twice", KindPayment, "verified", EventVerify},
		{"payment reject after verify", KindPayment, "verified", EventReject},
		{"payment verify after reject", KindPayment, "rejected", EventVerify},

		{"certificate collect before send", KindCertificate, "generated", EventCollect},
		{"certificate send twice", KindCertificate, "sent", EventSend},
		{"certificate collect twice", KindCertificate, "collected", EventCollect},
		{"certificate send after collect", KindCertificate, "collected", EventSend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.kind, tt.state, tt.event)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeInvalidTransition))
		})
	}
}

func Test_Validate_UnknownKind(t *testing.T) {
	_, err := Validate(EntityKind("parcel"), "pending", EventApprove)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}
