package audithook

import (
	"context"
	"log/slog"
)

// LogRecorder writes audit events as structured log records. It is the
// default sink when no external audit store is wired.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, event *AuditEvent) error {
		level := slog.LevelInfo
		switch event.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityError, SeverityCritical:
			level = slog.LevelError
		}
		logger.LogAttrs(ctx, level, "audit",
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("resource_id", event.ResourceID),
			slog.String("outcome", event.Outcome),
			slog.Any("metadata", event.Metadata),
		)
		return nil
	})
}
