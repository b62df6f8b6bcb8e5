package workflow

import (
	dErrors "certflow/pkg/domain-errors"
)

// EntityKind names the four lifecycles the engine governs.
type EntityKind string

const (
	KindRequest     EntityKind = "request"
	KindReport      EntityKind = "report"
	KindPayment     EntityKind = "payment"
	KindCertificate EntityKind = "certificate"
)

// Event is a requested transition.
type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"

	// Report chain events, driven by the engine rather than called directly.
	EventSubmitPayment    Event = "submit_payment"
	EventVerifyPayment    Event = "verify_payment"
	EventIssueCertificate Event = "issue_certificate"

	// Payment events.
	EventVerify Event = "verify"

	// Certificate events. EventCreate is handled by the engine (it makes a
	// new row); EventSend and EventCollect move an existing certificate.
	EventCreate  Event = "create"
	EventSend    Event = "send"
	EventCollect Event = "collect"
)

type transitionKey struct {
	state string
	event Event
}

// transitions is the full adjacency table: one sub-table per entity kind,
// each mapping (current state, event) to the next state. Anything absent is
// an invalid transition. The report's reject rows keep the workflow position
// unchanged; the engine records the verdict on the evaluation column.
var transitions = map[EntityKind]map[transitionKey]string{
	KindRequest: {
		{"pending", EventApprove}: "approved",
		{"pending", EventReject}:  "rejected",
	},
	KindReport: {
		{"pending_approval", EventApprove}:               "approved_pending_payment",
		{"approved_pending_payment", EventSubmitPayment}: "payment_submitted",
		{"payment_submitted", EventVerifyPayment}:        "payment_verified",
		{"payment_verified", EventIssueCertificate}:      "certificate_issued",

		{"pending_approval", EventReject}:         "pending_approval",
		{"approved_pending_payment", EventReject}: "approved_pending_payment",
		{"payment_submitted", EventReject}:        "payment_submitted",
		{"payment_verified", EventReject}:         "payment_verified",
	},
	KindPayment: {
		{"pending", EventVerify}: "verified",
		{"pending", EventReject}: "rejected",
	},
	KindCertificate: {
		{"generated", EventSend}: "sent",
		{"sent", EventCollect}:   "collected",
	},
}

// Validate decides whether event is allowed from the current state and
// returns the resulting state. Pure: no loads, no writes, so every pair in
// the table, legal and illegal, is unit-testable in isolation.
func Validate(kind EntityKind, currentState string, event Event) (string, error) {
	table, ok := transitions[kind]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown entity kind %q", kind)
	}
	newState, ok := table[transitionKey{currentState, event}]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidTransition,
			"event %q not allowed for %s in state %q", event, kind, currentState)
	}
	return newState, nil
}
