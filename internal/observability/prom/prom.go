// Package prom provides Prometheus instrumentation for bulk actions.
package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for bulk actions.
type Metrics struct {
	registry *prometheus.Registry

	ActionsTotal  *prometheus.CounterVec
	KeysProcessed *prometheus.CounterVec
	Running       prometheus.Gauge
	Duration      *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry along with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_actions_total",
			Help: "Total number of bulk actions that reached a terminal status, partitioned by type and status.",
		}, []string{"type", "status"}),

		KeysProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_action_keys_processed_total",
			Help: "Total number of keys processed by bulk actions.",
		}, []string{"type"}),

		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bulk_actions_running",
			Help: "Current number of bulk actions in the running status.",
		}),

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulk_action_duration_seconds",
			Help:    "Time from start to terminal status.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"type"}),
	}
}

// ObserveStarted records a bulk action entering the running status.
func (m *Metrics) ObserveStarted() {
	if m == nil {
		return
	}
	m.Running.Inc()
}

// ObserveFinished records a terminal outcome. It must be called once per started action.
func (m *Metrics) ObserveFinished(actionType, status string, seconds float64, processed int64) {
	if m == nil {
		return
	}
	m.Running.Dec()
	m.ActionsTotal.WithLabelValues(actionType, status).Inc()
	if processed > 0 {
		m.KeysProcessed.WithLabelValues(actionType).Add(float64(processed))
	}
	if seconds > 0 {
		m.Duration.WithLabelValues(actionType).Observe(seconds)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
