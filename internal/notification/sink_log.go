package notification

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the log. Used in development and when no
// broker or database is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, batch []Notification) error {
	for _, n := range batch {
		s.logger.InfoContext(ctx, "notification",
			"id", n.ID.String(),
			"user_id", n.UserID.String(),
			"title", n.Title,
			"message", n.Message,
			"status", string(n.Status),
		)
	}
	return nil
}
