package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is the metric name prefix used when none is given.
const DefaultNamespace = "truncator"

// SweepMetrics records retention sweep metrics.
type SweepMetrics struct {
	registry *prometheus.Registry

	// Sweep counter by type and outcome
	sweepsTotal *prometheus.CounterVec

	// Selected versions by type and rule
	candidatesTotal *prometheus.CounterVec

	// Deleted rows by version table
	rowsDeletedTotal *prometheus.CounterVec

	// Sweep duration by type
	sweepDuration *prometheus.HistogramVec
}

// NewSweepMetrics creates and registers sweep metrics with the provided
// registry. If registry is nil a new one is created.
func NewSweepMetrics(namespace string, registry *prometheus.Registry) *SweepMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &SweepMetrics{
		registry: registry,

		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Total number of retention sweeps by outcome",
			},
			[]string{"type", "outcome"},
		),

		candidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_total",
				Help:      "Total number of versions selected for deletion by rule",
			},
			[]string{"type", "rule"},
		),

		rowsDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_deleted_total",
				Help:      "Total number of version rows deleted by table",
			},
			[]string{"table"},
		),

		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of retention sweeps in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(
		m.sweepsTotal,
		m.candidatesTotal,
		m.rowsDeletedTotal,
		m.sweepDuration,
	)

	return m
}

// ObserveSweep records a finished sweep.
func (m *SweepMetrics) ObserveSweep(typeName, outcome string, duration time.Duration) {
	m.sweepsTotal.WithLabelValues(typeName, outcome).Inc()
	m.sweepDuration.WithLabelValues(typeName).Observe(duration.Seconds())
}

// AddCandidates records versions selected by a rule.
func (m *SweepMetrics) AddCandidates(typeName, rule string, n int) {
	if n <= 0 {
		return
	}
	m.candidatesTotal.WithLabelValues(typeName, rule).Add(float64(n))
}

// AddDeleted records rows deleted from a table.
func (m *SweepMetrics) AddDeleted(table string, n int64) {
	if n <= 0 {
		return
	}
	m.rowsDeletedTotal.WithLabelValues(table).Add(float64(n))
}

// Registry returns the registry the metrics are registered with.
func (m *SweepMetrics) Registry() *prometheus.Registry {
	return m.registry
}
