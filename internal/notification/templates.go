package notification

import (
	"fmt"

	"certflow/internal/ledger"
)

// Template is one rendered-message blueprint. Subject is static; Body is a
// fmt string receiving the request ID.
type Template struct {
	Subject string
	Body    string
}

type templateKey struct {
	statusType ledger.StatusType
	newStatus  string
}

// templates maps (status_type, new_status) to the message sent when a
// transition lands in that status. Statuses with no entry produce no mail.
var templates = map[templateKey]Template{
	{ledger.TypeApplication, "approved"}: {
		Subject: "Your certification request was approved",
		Body:    "Your land-use certification request %s has been approved. Payment is now due.",
	},
	{ledger.TypeApplication, "rejected"}: {
		Subject: "Your certification request was rejected",
		Body:    "Your land-use certification request %s has been rejected. See the evaluation notes for details.",
	},
	{ledger.TypePayment, "verified"}: {
		Subject: "Payment verified",
		Body:    "Your payment for request %s has been verified. Certificate issuance is underway.",
	},
	{ledger.TypePayment, "rejected"}: {
		Subject: "Payment rejected",
		Body:    "Your payment for request %s could not be verified. Please resubmit with a valid receipt.",
	},
	{ledger.TypeCertificate, "generated"}: {
		Subject: "Certificate issued",
		Body:    "The certificate for your request %s has been issued.",
	},
	{ledger.TypeCertificate, "sent"}: {
		Subject: "Certificate dispatched",
		Body:    "The certificate for your request %s has been dispatched to you.",
	},
}

// resolveTemplate returns the message for a ledger entry, or false when the
// status pair is not notification-worthy.
func resolveTemplate(entry ledger.Entry) (Message, bool) {
	tpl, ok := templates[templateKey{entry.Type, entry.NewStatus}]
	if !ok {
		return Message{}, false
	}
	return Message{
		Subject: tpl.Subject,
		Body:    fmt.Sprintf(tpl.Body, entry.RequestID),
	}, true
}
