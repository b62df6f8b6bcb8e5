package notification

import "context"

// Message is one outbound email, already resolved to a concrete recipient
// and rendered template.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer is the outbound mail collaborator. Implementations must be safe for
// concurrent use; delivery is best-effort and the dispatcher never retries.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
