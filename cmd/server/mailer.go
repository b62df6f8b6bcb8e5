package main

import (
	"context"
	"log/slog"

	"certflow/internal/notification"
)

// logMailer stands in for SES in local development: it logs instead of
// sending.
type logMailer struct {
	log *slog.Logger
}

func (m logMailer) Send(ctx context.Context, msg notification.Message) error {
	m.log.InfoContext(ctx, "mail (dry run)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
