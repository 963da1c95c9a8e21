package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcp_gateway"

// PrometheusSink exports call metrics as Prometheus collectors.
type PrometheusSink struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// NewPrometheusSink creates the collectors and registers them with reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		panic("registerer cannot be nil")
	}
	s := &PrometheusSink{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool calls by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call latency from request receipt to result",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_call_errors_total",
				Help:      "Failed tool calls by tool and failure kind",
			},
			[]string{"tool", "kind"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Terminal dispatcher events",
			},
			[]string{"event"},
		),
	}
	reg.MustRegister(s.calls, s.duration, s.errors, s.events)
	return s
}

// RecordCall implements Sink.
func (s *PrometheusSink) RecordCall(tool, outcome string, duration time.Duration) {
	s.calls.WithLabelValues(tool, outcome).Inc()
	s.duration.WithLabelValues(tool, outcome).Observe(duration.Seconds())
	if outcome != OutcomeSuccess {
		s.errors.WithLabelValues(tool, outcome).Inc()
	}
}

// Log implements Sink. Only the event name is exported.
func (s *PrometheusSink) Log(event string, _ map[string]any) {
	s.events.WithLabelValues(event).Inc()
}
