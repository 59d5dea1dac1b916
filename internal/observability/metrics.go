package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service's Prometheus collectors on a private
// registry so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	// RunsStarted counts filing runs accepted for execution.
	RunsStarted prometheus.Counter

	// RunsActive tracks filing runs currently executing.
	RunsActive prometheus.Gauge

	// RunOutcomes counts terminated runs by outcome label
	// (success, failed, timeout).
	RunOutcomes *prometheus.CounterVec

	// EventsEmitted counts progress events streamed to watchers.
	EventsEmitted prometheus.Counter

	// TokensMinted counts handoff credentials issued.
	TokensMinted prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "efiling_runs_started_total",
			Help: "Filing runs accepted for execution.",
		}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "efiling_runs_active",
			Help: "Filing runs currently executing.",
		}),
		RunOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "efiling_run_outcomes_total",
			Help: "Terminated filing runs by outcome.",
		}, []string{"outcome"}),
		EventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "efiling_progress_events_total",
			Help: "Progress events streamed to watchers.",
		}),
		TokensMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "efiling_handoff_tokens_minted_total",
			Help: "Handoff credentials issued.",
		}),
	}

	m.registry.MustRegister(m.RunsStarted, m.RunsActive, m.RunOutcomes, m.EventsEmitted, m.TokensMinted)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
