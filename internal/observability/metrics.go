package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion and query paths.
type Metrics struct {
	ObservationsIngested prometheus.Counter
	IngestErrors         *prometheus.CounterVec // labels: reason={auth,missing_field,validation,storage}
	StrikeReports        prometheus.Counter
	StrikeErrors         *prometheus.CounterVec // labels: reason={auth,missing_field,validation}
	PositionUpdates      *prometheus.CounterVec // labels: outcome={success,auth,validation,resolver_error,resolver_timeout}
	SceneChanges         *prometheus.CounterVec // labels: scene

	CurrentScene *prometheus.GaugeVec // labels: scene; active scene is 1

	QueryDuration    *prometheus.HistogramVec // labels: window={current,historical}
	ResolverDuration prometheus.Histogram
}

// SetCurrentScene marks one scene active and clears the rest.
func (m *Metrics) SetCurrentScene(scene string) {
	m.CurrentScene.Reset()
	m.CurrentScene.WithLabelValues(scene).Set(1)
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsIngested,
		m.IngestErrors,
		m.StrikeReports,
		m.StrikeErrors,
		m.PositionUpdates,
		m.SceneChanges,
		m.CurrentScene,
		m.QueryDuration,
		m.ResolverDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxserver",
			Name:      "observations_ingested_total",
			Help:      "Total observations committed to the store.",
		}),
		IngestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxserver",
			Name:      "ingest_errors_total",
			Help:      "Ingestion failures by reason.",
		}, []string{"reason"}),
		StrikeReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wxserver",
			Name:      "strike_reports_total",
			Help:      "Total accepted lightning strike reports.",
		}),
		StrikeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxserver",
			Name:      "strike_errors_total",
			Help:      "Rejected lightning strike reports by reason.",
		}, []string{"reason"}),
		PositionUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxserver",
			Name:      "position_updates_total",
			Help:      "Station position updates by outcome.",
		}, []string{"outcome"}),
		SceneChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wxserver",
			Name:      "scene_changes_total",
			Help:      "Background scene transitions by resulting scene.",
		}, []string{"scene"}),
		CurrentScene: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wxserver",
			Name:      "current_scene",
			Help:      "Active display scene (1 for the current scene).",
		}, []string{"scene"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wxserver",
			Name:      "query_duration_seconds",
			Help:      "Duration of window queries.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"window"}),
		ResolverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wxserver",
			Name:      "resolver_duration_seconds",
			Help:      "Duration of external geocode/timezone/sun-times lookups.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
