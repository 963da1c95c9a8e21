package middleware

import (
	"context"
	"log/slog"
	"sync"
)

// captureHandler records log entries for assertions.
type captureHandler struct {
	mu      *sync.Mutex
	entries *[]map[string]any
}

func newCaptureLogger() (*slog.Logger, *captureHandler) {
	h := &captureHandler{mu: &sync.Mutex{}, entries: &[]map[string]any{}}
	return slog.New(h), h
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	entry := map[string]any{
		"level":   r.Level.String(),
		"message": r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		entry[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.entries = append(*h.entries, entry)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// find returns the first entry with the given message.
func (h *captureHandler) find(message string) map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range *h.entries {
		if e["message"] == message {
			return e
		}
	}
	return nil
}
