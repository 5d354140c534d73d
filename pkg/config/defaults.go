package config

import "time"

// Default values for configuration fields.
const (
	// Database defaults
	DefaultDatabaseDriver        = "sqlite"
	DefaultDatabasePath          = "data/sweeper.db"
	DefaultDatabaseBusyTimeout   = 5 * time.Second
	DefaultDatabaseMaxOpenConns  = 1
	DefaultDatabaseWALMode       = true
	DefaultMaxParamsPerStatement = 999
	DefaultBatchSize             = 1000

	// Retention defaults
	DefaultMaxAgeOfInactiveBranchesDays      = 30
	DefaultMaxAgeOfAnalysesWithoutEventsDays = 30
	DefaultCeActivityMaxAgeDays              = 180
	DefaultCeScannerContextMaxAgeDays        = 28

	// Housekeeping defaults
	DefaultHousekeepingEnabled    = true
	DefaultProjectSweepSchedule   = "0 2 * * *"
	DefaultCeSchedule             = "30 3 * * *"
	DefaultHousekeepingRunTimeout = time.Hour

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "mercator"
	DefaultMetricsSubsystem    = "sweeper"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingExporter     = "otlp"
	DefaultTracingServiceName  = "mercator-sweeper"
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/healthz"
	DefaultReadinessPath       = "/readyz"
	DefaultHealthCheckTimeout  = 5 * time.Second

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// DefaultScopesWithHistoricalDataDeletion are the scopes whose history of
// flagged metrics is dropped when none are configured.
var DefaultScopesWithHistoricalDataDeletion = []string{"DIRECTORY", "FILE"}

// DefaultStepDurationBuckets are the default purge step histogram buckets.
var DefaultStepDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// DefaultConfig returns a configuration with every default set, including
// the boolean options that default to true. Files are decoded on top of it.
func DefaultConfig() *Config {
	cfg := &Config{
		Database: DatabaseConfig{
			WALMode: DefaultDatabaseWALMode,
		},
		Housekeeping: HousekeepingConfig{
			Enabled: DefaultHousekeepingEnabled,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{
				Enabled: DefaultTracingEnabled,
				OTLP:    OTLPConfig{Insecure: true},
			},
			Health: HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDatabaseDriver
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = DefaultDatabaseBusyTimeout
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDatabaseMaxOpenConns
	}
	if cfg.Database.MaxParamsPerStatement == 0 {
		cfg.Database.MaxParamsPerStatement = DefaultMaxParamsPerStatement
	}
	if cfg.Database.BatchSize == 0 {
		cfg.Database.BatchSize = DefaultBatchSize
	}

	// Retention defaults
	if cfg.Retention.MaxAgeOfInactiveBranchesDays == 0 {
		cfg.Retention.MaxAgeOfInactiveBranchesDays = DefaultMaxAgeOfInactiveBranchesDays
	}
	if cfg.Retention.MaxAgeOfAnalysesWithoutEventsDays == 0 {
		cfg.Retention.MaxAgeOfAnalysesWithoutEventsDays = DefaultMaxAgeOfAnalysesWithoutEventsDays
	}
	if cfg.Retention.ScopesWithHistoricalDataDeletion == nil {
		cfg.Retention.ScopesWithHistoricalDataDeletion = append([]string(nil), DefaultScopesWithHistoricalDataDeletion...)
	}
	if cfg.Retention.CeActivityMaxAgeDays == 0 {
		cfg.Retention.CeActivityMaxAgeDays = DefaultCeActivityMaxAgeDays
	}
	if cfg.Retention.CeScannerContextMaxAgeDays == 0 {
		cfg.Retention.CeScannerContextMaxAgeDays = DefaultCeScannerContextMaxAgeDays
	}

	// Housekeeping defaults
	if cfg.Housekeeping.ProjectSweepSchedule == "" {
		cfg.Housekeeping.ProjectSweepSchedule = DefaultProjectSweepSchedule
	}
	if cfg.Housekeeping.CeSchedule == "" {
		cfg.Housekeeping.CeSchedule = DefaultCeSchedule
	}
	if cfg.Housekeeping.RunTimeout == 0 {
		cfg.Housekeeping.RunTimeout = DefaultHousekeepingRunTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.StepDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.StepDurationBuckets = append([]float64(nil), DefaultStepDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
}
