package telemetry

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// LogSink writes events as structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger, or slog.Default() if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// RecordCall implements Sink at debug level; the paired event carries the
// same information at a higher level.
func (s *LogSink) RecordCall(tool, outcome string, duration time.Duration) {
	s.logger.Debug("tool call recorded",
		slog.String("tool", tool),
		slog.String("outcome", outcome),
		slog.Duration("duration", duration),
	)
}

// Log implements Sink.
func (s *LogSink) Log(event string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	attrs = append(attrs, slog.String("event", event))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	s.logger.LogAttrs(context.Background(), levelFor(event), event, attrs...)
}

func levelFor(event string) slog.Level {
	switch event {
	case EventCallSucceeded:
		return slog.LevelInfo
	case EventCallFailed:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
