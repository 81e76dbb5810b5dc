package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/storyweaver/pkg/domain"
)

const namespace = "storyweaver"

// Metrics holds the collectors fed by the engine hooks.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	RemoteCalls     *prometheus.CounterVec
	RemoteDurations *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Wizard events processed, by event, resulting step and rejection.",
			},
			[]string{"event", "step", "rejected"},
		),
		RemoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Calls to the generation backend, by command and outcome.",
			},
			[]string{"command", "outcome"},
		),
		RemoteDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of calls to the generation backend.",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 90},
			},
			[]string{"command"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.RemoteCalls, m.RemoteDurations)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.Event), string(e.To), strconv.FormatBool(e.Rejected)).Inc()
		},
		OnRemoteCall: func(_ context.Context, e *domain.RemoteCallEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.RemoteCalls.WithLabelValues(string(e.Command), outcome).Inc()
			m.RemoteDurations.WithLabelValues(string(e.Command)).Observe(e.Duration.Seconds())
		},
	}
}
