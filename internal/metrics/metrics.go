// Package metrics records sign-in and session counters. Since every
// invocation is a short-lived process, the registry is written to a
// node_exporter textfile instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sign-in outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	signinTotal      *prometheus.CounterVec
	signinDuration   *prometheus.HistogramVec
	reuseTotal       *prometheus.CounterVec
	forgottenTotal   prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	profileWrites    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		signinTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsession_signin_attempts_total",
				Help: "Sign-in attempts by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		signinDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsession_signin_duration_seconds",
				Help:    "Duration of sign-in attempts in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"flow"},
		),
		reuseTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsession_session_reuse_total",
				Help: "Sessions reused without signing in, by token source",
			},
			[]string{"source"},
		),
		forgottenTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "opsession_forgotten_password_total",
			Help: "Sign-ins abandoned after repeated wrong passwords",
		}),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsession_signin_state_transitions_total",
				Help: "Sign-in state machine transitions by target state",
			},
			[]string{"state"},
		),
		profileWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsession_profile_writes_total",
				Help: "Profile rewrites by operation and status",
			},
			[]string{"op", "status"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordSignIn records one sign-in attempt.
func (m *Metrics) RecordSignIn(flow, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.signinTotal.WithLabelValues(flow, outcome).Inc()
	m.signinDuration.WithLabelValues(flow).Observe(d.Seconds())
}

// RecordReuse records a session reused from source ("env" or "profile").
func (m *Metrics) RecordReuse(source string) {
	if m == nil {
		return
	}
	m.reuseTotal.WithLabelValues(source).Inc()
}

// RecordForgotten records an abandoned sign-in.
func (m *Metrics) RecordForgotten() {
	if m == nil {
		return
	}
	m.forgottenTotal.Inc()
}

// RecordTransition records a sign-in state change.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(state).Inc()
}

// RecordProfileWrite records a profile rewrite.
func (m *Metrics) RecordProfileWrite(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.profileWrites.WithLabelValues(op, status).Inc()
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
