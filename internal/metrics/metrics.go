// Package metrics provides Prometheus metrics for the context manager.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the context manager.
type Metrics struct {
	SessionsActive   prometheus.Gauge
	EventsTotal      *prometheus.CounterVec
	CompactionsTotal prometheus.Counter
	EventsCompacted  prometheus.Counter
	SnapshotsTotal   *prometheus.CounterVec
	HealthScore      prometheus.Gauge
	DriftScore       prometheus.Gauge
	MonitorTicks     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contextd_sessions_active",
				Help: "Number of sessions currently tracked as active (0 or 1 per controller).",
			},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contextd_events_total",
				Help: "Total tracked session events by type.",
			},
			[]string{"type"},
		),
		CompactionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contextd_compactions_total",
				Help: "Total compaction runs that removed at least one event.",
			},
		),
		EventsCompacted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "contextd_events_compacted_total",
				Help: "Total events replaced by compaction summaries.",
			},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contextd_snapshots_total",
				Help: "Total snapshots created by trigger (manual or auto).",
			},
			[]string{"trigger"},
		),
		HealthScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contextd_health_score",
				Help: "Last computed health score of the active session (0–1).",
			},
		),
		DriftScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contextd_drift_score",
				Help: "Last computed drift score of the active session (0–1).",
			},
		),
		MonitorTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contextd_monitor_ticks_total",
				Help: "Auto-monitor ticks by result (ok, skipped, error).",
			},
			[]string{"result"},
		),
		registry: reg,
	}

	reg.MustRegister(m.SessionsActive)
	reg.MustRegister(m.EventsTotal)
	reg.MustRegister(m.CompactionsTotal)
	reg.MustRegister(m.EventsCompacted)
	reg.MustRegister(m.SnapshotsTotal)
	reg.MustRegister(m.HealthScore)
	reg.MustRegister(m.DriftScore)
	reg.MustRegister(m.MonitorTicks)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvent increments the event counter for a type.
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordCompaction records a compaction that removed events.
func (m *Metrics) RecordCompaction(compactedEvents int) {
	m.CompactionsTotal.Inc()
	m.EventsCompacted.Add(float64(compactedEvents))
}

// RecordSnapshot increments the snapshot counter for a trigger.
func (m *Metrics) RecordSnapshot(trigger string) {
	m.SnapshotsTotal.WithLabelValues(trigger).Inc()
}

// RecordTick increments the auto-monitor tick counter.
func (m *Metrics) RecordTick(result string) {
	m.MonitorTicks.WithLabelValues(result).Inc()
}
