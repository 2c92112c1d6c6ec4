// Package notify delivers user-facing mail: MFA codes at login time and
// security alerts from the signal sink. Delivery is fire-and-forget for
// callers -- a mail failure is logged, never propagated into the
// authentication flow.
package notify

import (
	"context"
	"log/slog"
)

// Mailer is the outbound mail contract. Implementations must be safe for
// concurrent use.
type Mailer interface {
	// Send delivers a plain-text message to a single recipient.
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer is the development fallback used when SMTP is not configured.
// It logs the message instead of delivering it so the MFA flow can be
// exercised locally by reading the server log.
type LogMailer struct{}

// NewLogMailer creates a log-only mailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// Send logs the message at info level.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "mail delivery skipped (smtp not configured)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
