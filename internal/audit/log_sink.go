package audit

import (
	"context"
	"log/slog"
)

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Publish(ctx context.Context, event Event) {
	s.logger.InfoContext(ctx, "audit event",
		"action", event.Action,
		"user_id", event.UserID,
		"email", event.Email,
		"provider", event.Provider,
		"ip", event.IP,
		"occurred_at", event.OccurredAt,
		"detail", event.Detail,
	)
}
