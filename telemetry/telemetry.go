// Package telemetry exposes Prometheus metrics for the runtime. Collectors
// live on a private registry so an embedding application's metrics are never
// polluted; Handler serves the registry for scraping.
//
// All methods are safe on a nil *Metrics, which disables collection without
// call sites having to check.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/braidworks/braid/core"
)

// Metrics bundles the runtime's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	activeRuns   prometheus.Gauge
	runsTotal    *prometheus.CounterVec
	eventsTotal  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	tokensTotal  *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "braid_active_runs",
			Help: "Number of runs currently executing",
		}),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_runs_total",
				Help: "Total number of finished runs by outcome",
			},
			[]string{"outcome"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_events_total",
				Help: "Total number of events admitted by the run pipeline",
			},
			[]string{"kind"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "braid_step_duration_seconds",
				Help:    "Duration of task loop steps",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "braid_tokens_total",
				Help: "Total tokens reported by model calls",
			},
			[]string{"model", "direction"},
		),
	}
	m.registry.MustRegister(m.activeRuns, m.runsTotal, m.eventsTotal, m.stepDuration, m.tokensTotal)
	return m
}

// Registry returns the private registry, e.g. for registering additional
// application collectors next to the runtime's.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler serving the registry in the Prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted records a run entering execution.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunFinished records a run leaving execution with the given outcome
// ("completed", "failed" or "canceled").
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// EventAdmitted counts one pipeline event by kind.
func (m *Metrics) EventAdmitted(kind core.EventKind) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveStep records the duration of one completed task loop step.
func (m *Metrics) ObserveStep(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(task).Observe(d.Seconds())
}

// AddUsage accumulates the token usage one model call reported.
func (m *Metrics) AddUsage(model string, usage core.Usage) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues(model, "input").Add(float64(usage.InputTokens))
	m.tokensTotal.WithLabelValues(model, "output").Add(float64(usage.OutputTokens))
}
