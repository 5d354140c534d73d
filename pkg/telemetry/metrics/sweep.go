package metrics

import (
	"time"

	"mercator-hq/sweeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics tracks scheduled housekeeping runs.
//
// Metrics:
//   - mercator_sweeper_sweeps_total: Scheduled runs by job and status
//   - mercator_sweeper_sweep_duration_seconds: Duration of scheduled runs
//   - mercator_sweeper_sweep_projects_total: Projects handled by sweeps, by outcome
//   - mercator_sweeper_last_sweep_timestamp_seconds: Completion time of the last run per job
type SweepMetrics struct {
	sweepsTotal   *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	projects      *prometheus.CounterVec
	lastSweep     *prometheus.GaugeVec
}

// NewSweepMetrics creates and registers sweep metrics with the provided registry.
func NewSweepMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SweepMetrics {
	sm := &SweepMetrics{
		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweeps_total",
				Help:      "Total number of scheduled housekeeping runs",
			},
			[]string{"job", "status"},
		),

		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of scheduled housekeeping runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"job"},
		),

		projects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sweep_projects_total",
				Help:      "Total number of projects handled by project sweeps",
			},
			[]string{"outcome"},
		),

		lastSweep: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "last_sweep_timestamp_seconds",
				Help:      "Unix time at which the last housekeeping run of a job finished",
			},
			[]string{"job"},
		),
	}

	registry.MustRegister(
		sm.sweepsTotal,
		sm.sweepDuration,
		sm.projects,
		sm.lastSweep,
	)

	return sm
}

// RecordSweep records a finished scheduled run.
func (sm *SweepMetrics) RecordSweep(job, status string, duration time.Duration, finished time.Time) {
	sm.sweepsTotal.WithLabelValues(job, status).Inc()
	sm.sweepDuration.WithLabelValues(job).Observe(duration.Seconds())
	sm.lastSweep.WithLabelValues(job).Set(float64(finished.Unix()))
}

// RecordProjects records how many projects a sweep purged and how many failed.
func (sm *SweepMetrics) RecordProjects(purged, failed int) {
	sm.projects.WithLabelValues("purged").Add(float64(purged))
	sm.projects.WithLabelValues("failed").Add(float64(failed))
}
