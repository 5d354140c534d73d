// Package metrics provides Prometheus metrics for the sweeper.
//
// # Metrics Categories
//
//   - Purge Metrics: per-step batch duration, affected rows and failures,
//     plus the count and duration of engine operations
//   - Sweep Metrics: scheduled housekeeping runs, their duration, the
//     projects they purged and the time of the last run per job
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	engine := purge.NewEngine(purge.WithObserver(collector))
//
//	http.Handle("/metrics", collector.Handler())
//
// Step labels are bounded by a CardinalityLimiter; once the limit is reached
// unknown steps are reported as "other".
package metrics
