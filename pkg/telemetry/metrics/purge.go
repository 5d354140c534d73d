package metrics

import (
	"time"

	"mercator-hq/sweeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PurgeMetrics tracks purge engine activity.
//
// Metrics:
//   - mercator_sweeper_step_duration_seconds: Duration of one batch of a purge step
//   - mercator_sweeper_step_rows_total: Rows deleted or updated by purge steps
//   - mercator_sweeper_step_errors_total: Failed purge step batches
//   - mercator_sweeper_operations_total: Engine operations by name and status
//   - mercator_sweeper_operation_duration_seconds: Duration of engine operations
type PurgeMetrics struct {
	stepDuration      *prometheus.HistogramVec
	stepRows          *prometheus.CounterVec
	stepErrors        *prometheus.CounterVec
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewPurgeMetrics creates and registers purge metrics with the provided registry.
func NewPurgeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PurgeMetrics {
	pm := &PurgeMetrics{
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "step_duration_seconds",
				Help:      "Duration of one batch of a purge step in seconds",
				Buckets:   cfg.StepDurationBuckets,
			},
			[]string{"step"},
		),

		stepRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "step_rows_total",
				Help:      "Total number of rows affected by purge steps",
			},
			[]string{"step"},
		),

		stepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "step_errors_total",
				Help:      "Total number of failed purge step batches",
			},
			[]string{"step"},
		),

		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operations_total",
				Help:      "Total number of purge engine operations",
			},
			[]string{"operation", "status"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Duration of purge engine operations in seconds",
				Buckets:   cfg.StepDurationBuckets,
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		pm.stepDuration,
		pm.stepRows,
		pm.stepErrors,
		pm.operationsTotal,
		pm.operationDuration,
	)

	return pm
}

// RecordStep records one profiled batch.
func (pm *PurgeMetrics) RecordStep(step string, elapsed time.Duration, rows int64, failed bool) {
	pm.stepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	if rows > 0 {
		pm.stepRows.WithLabelValues(step).Add(float64(rows))
	}
	if failed {
		pm.stepErrors.WithLabelValues(step).Inc()
	}
}

// RecordOperation records a finished engine operation.
func (pm *PurgeMetrics) RecordOperation(operation, status string, duration time.Duration) {
	pm.operationsTotal.WithLabelValues(operation, status).Inc()
	pm.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
