package metrics

import (
	"sync"
	"time"

	"mercator-hq/sweeper/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// otherStep replaces step labels once the cardinality limit is reached.
const otherStep = "other"

// Collector owns the Prometheus registry of the sweeper and records purge
// and housekeeping metrics. It implements purge.StepObserver, so it can be
// handed to the engine directly.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	purgeMetrics *PurgeMetrics
	sweepMetrics *SweepMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector. If registry is nil a fresh
// registry with the Go runtime and process collectors is used.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.StepDurationBuckets) == 0 {
		cfg.StepDurationBuckets = append([]float64(nil), config.DefaultStepDurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		purgeMetrics:       NewPurgeMetrics(cfg, registry),
		sweepMetrics:       NewSweepMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(256),
	}
}

// ObserveStep records one profiled purge batch.
func (c *Collector) ObserveStep(step string, elapsed time.Duration, rows int64, err error) {
	if !c.config.Enabled {
		return
	}
	if !c.cardinalityLimiter.Allow(step) {
		step = otherStep
	}
	c.purgeMetrics.RecordStep(step, elapsed, rows, err != nil)
}

// RecordOperation records a finished engine operation such as "purge" or
// "delete_project".
func (c *Collector) RecordOperation(operation string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	c.purgeMetrics.RecordOperation(operation, statusOf(err), duration)
}

// RecordSweep records a finished scheduled run of a housekeeping job.
func (c *Collector) RecordSweep(job string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	c.sweepMetrics.RecordSweep(job, statusOf(err), duration, time.Now())
}

// RecordSweepProjects records the per-project outcome of a project sweep.
func (c *Collector) RecordSweepProjects(purged, failed int) {
	if !c.config.Enabled {
		return
	}
	c.sweepMetrics.RecordProjects(purged, failed)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// CardinalityLimiter bounds the number of distinct label values a
// collector accepts.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
