// Package telemetry defines the observability sink the dispatcher reports
// every terminal outcome to, along with Prometheus, slog, fan-out and no-op
// implementations.
package telemetry

import (
	"time"
)

// Terminal event names.
const (
	EventCallSucceeded    = "call_succeeded"
	EventMalformedRequest = "malformed_request"
	EventAuthFailed       = "auth_failed"
	EventUnknownTool      = "unknown_tool"
	EventValidationFailed = "validation_failed"
	EventAuthzDenied      = "authz_denied"
	EventCallFailed       = "call_failed"
	EventCallTimeout      = "call_timeout"
	EventCallCancelled    = "call_cancelled"
)

// OutcomeSuccess is the outcome recorded for a successful call. Failures are
// recorded under their failure kind.
const OutcomeSuccess = "Success"

// Sink receives call metrics and structured events.
// Implementations must be safe for concurrent use and must not block.
type Sink interface {
	// RecordCall records one finished call.
	RecordCall(tool, outcome string, duration time.Duration)

	// Log records a structured event.
	Log(event string, fields map[string]any)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCall(string, string, time.Duration) {}
func (Nop) Log(string, map[string]any)               {}

type multi []Sink

// Multi fans out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) RecordCall(tool, outcome string, duration time.Duration) {
	for _, s := range m {
		s.RecordCall(tool, outcome, duration)
	}
}

func (m multi) Log(event string, fields map[string]any) {
	for _, s := range m {
		s.Log(event, fields)
	}
}
