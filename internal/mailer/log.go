package mailer

import (
	"context"
	"log/slog"
)

// LogSender writes the verification link to the log instead of mailing it.
// It is meant for local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that logs messages.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string {
	return "log"
}

// Send logs the recipient and link.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "log sender: verification email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("link", msg.Link),
	)
	return nil
}
