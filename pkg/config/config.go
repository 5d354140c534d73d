package config

import "time"

// Config is the root configuration structure for the sweeper.
// It contains the database connection, the retention rules applied to each
// project, the housekeeping schedule, telemetry and the HTTP server that
// exposes health and metrics endpoints.
type Config struct {
	// Database contains the analysis database connection settings and the
	// statement batching limits.
	Database DatabaseConfig `yaml:"database"`

	// Retention contains the retention rules used to build the purge
	// configuration of every project.
	Retention RetentionConfig `yaml:"retention"`

	// Housekeeping contains the cron schedules of the background sweeps.
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server contains the HTTP server configuration of `sweeper serve`.
	Server ServerConfig `yaml:"server"`
}

// DatabaseConfig contains the analysis database configuration.
type DatabaseConfig struct {
	// Driver selects the database/sql driver.
	// Options: "sqlite" (modernc.org/sqlite, pure Go), "sqlite3" (mattn/go-sqlite3, cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the SQLite database file path.
	// Default: "data/sweeper.db"
	Path string `yaml:"path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// MaxParamsPerStatement is the bound parameter limit of the engine.
	// Older SQLite builds cap it at 999, newer ones at 32766.
	// Default: 999
	MaxParamsPerStatement int `yaml:"max_params_per_statement"`

	// BatchSize is the preferred number of keys per statement.
	// Default: 1000
	BatchSize int `yaml:"batch_size"`
}

// RetentionConfig contains the retention rules.
type RetentionConfig struct {
	// MaxAgeOfInactiveBranchesDays is the idle time after which a branch or
	// pull request is deleted.
	// Default: 30
	MaxAgeOfInactiveBranchesDays int `yaml:"max_age_of_inactive_branches_days"`

	// MaxAgeOfClosedIssuesDays enables the deletion of issues closed for
	// longer than this many days. Unset keeps closed issues forever.
	MaxAgeOfClosedIssuesDays *int `yaml:"max_age_of_closed_issues_days"`

	// MaxAgeOfAnalysesWithoutEventsDays is the age after which a non-last
	// analysis without events is deleted.
	// Default: 30
	MaxAgeOfAnalysesWithoutEventsDays int `yaml:"max_age_of_analyses_without_events_days"`

	// ScopesWithHistoricalDataDeletion lists the component scopes whose
	// history of flagged metrics is dropped.
	// Default: ["DIRECTORY", "FILE"]
	ScopesWithHistoricalDataDeletion []string `yaml:"scopes_with_historical_data_deletion"`

	// CeActivityMaxAgeDays is the age after which compute engine activities
	// are deleted.
	// Default: 180
	CeActivityMaxAgeDays int `yaml:"ce_activity_max_age_days"`

	// CeScannerContextMaxAgeDays is the age after which scanner contexts
	// are deleted.
	// Default: 28
	CeScannerContextMaxAgeDays int `yaml:"ce_scanner_context_max_age_days"`
}

// HousekeepingConfig contains the background sweep configuration.
type HousekeepingConfig struct {
	// Enabled controls whether `sweeper serve` schedules sweeps.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ProjectSweepSchedule is the cron expression of the per-project purge.
	// Default: "0 2 * * *" (daily at 2 AM)
	ProjectSweepSchedule string `yaml:"project_sweep_schedule"`

	// CeSchedule is the cron expression of the global CE cleanup.
	// Default: "30 3 * * *"
	CeSchedule string `yaml:"ce_schedule"`

	// RunTimeout bounds a single scheduled run.
	// Default: 1h
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "sweeper"
	Subsystem string `yaml:"subsystem"`

	// StepDurationBuckets defines histogram buckets for purge step duration (seconds).
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30]
	StepDurationBuckets []float64 `yaml:"step_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter to use.
	// Options: "otlp"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the trace collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "mercator-sweeper"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/healthz"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/readyz"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// ServerConfig contains the HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address and port for health and metrics.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// WatchConfig reloads the configuration file when it changes.
	// Default: false
	WatchConfig bool `yaml:"watch_config"`
}
