// Package observability exposes Prometheus metrics for backend invocations
// and emulated streams.
package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"agentbridge/internal/backends"
	"agentbridge/internal/core"
)

const namespace = "agentbridge"

// Metrics holds the bridge collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    *prometheus.GaugeVec
	frames      *prometheus.CounterVec
	streams     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_invocations_total",
			Help:      "Backend invocations by backend and outcome.",
		}, []string{"backend", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_invocation_duration_seconds",
			Help:      "Wall-clock duration of backend invocations.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"backend"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_invocations_in_flight",
			Help:      "Backend invocations currently running.",
		}, []string{"backend"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "NDJSON frames written to clients.",
		}, []string{"endpoint"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Emulated streams by endpoint and completion.",
		}, []string{"endpoint", "completed"}),
	}

	for _, c := range []prometheus.Collector{m.invocations, m.duration, m.inFlight, m.frames, m.streams} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Outcome labels an invocation result: "success" or the error type.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(core.AsGatewayError(err).Type)
}

// Hooks returns router hooks feeding these metrics. A nil receiver yields
// empty hooks.
func (m *Metrics) Hooks() backends.Hooks {
	if m == nil {
		return backends.Hooks{}
	}
	return backends.Hooks{
		OnInvokeStart: func(ctx context.Context, info backends.InvokeInfo) context.Context {
			m.inFlight.WithLabelValues(info.Backend).Inc()
			return ctx
		},
		OnInvokeEnd: func(_ context.Context, outcome backends.InvokeOutcome) {
			m.inFlight.WithLabelValues(outcome.Backend).Dec()
			m.invocations.WithLabelValues(outcome.Backend, Outcome(outcome.Err)).Inc()
			m.duration.WithLabelValues(outcome.Backend).Observe(outcome.Duration.Seconds())
		},
	}
}

// ObserveStream records one finished stream.
func (m *Metrics) ObserveStream(endpoint string, frames int, completed bool) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(endpoint).Add(float64(frames))
	label := "false"
	if completed {
		label = "true"
	}
	m.streams.WithLabelValues(endpoint, label).Inc()
}
