// Package metrics registers the Prometheus instruments for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	IngestRecords    *prometheus.CounterVec
	TransformRecords *prometheus.CounterVec
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		IngestRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "encore_ingest_records_total",
			Help: "Ingested records by entity and outcome (inserted, updated, unchanged, error)",
		}, []string{"entity", "outcome"}),
		TransformRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "encore_transform_records_total",
			Help: "Transformed records by entity and outcome (processed, error)",
		}, []string{"entity", "outcome"}),
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "encore_runs_total",
			Help: "Orchestrator runs by final status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "encore_run_duration_seconds",
			Help:    "Orchestrator run duration by scope",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"scope"}),
	}
}

// NewUnregistered builds metrics on a throwaway registry for tests that run
// engines in parallel without colliding on the default registerer.
func NewUnregistered() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		IngestRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "encore_ingest_records_total",
		}, []string{"entity", "outcome"}),
		TransformRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "encore_transform_records_total",
		}, []string{"entity", "outcome"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "encore_runs_total",
		}, []string{"status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "encore_run_duration_seconds",
		}, []string{"scope"}),
	}
}

func (m *Metrics) ObserveIngest(entity, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestRecords.WithLabelValues(entity, outcome).Add(float64(n))
}

func (m *Metrics) ObserveTransform(entity, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TransformRecords.WithLabelValues(entity, outcome).Add(float64(n))
}

func (m *Metrics) ObserveRun(scope, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(scope).Observe(seconds)
}
