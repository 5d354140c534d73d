package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder whose configuration is valid
// and points at a throwaway database path.
func NewTestConfig() *ConfigBuilder {
	cfg := DefaultConfig()
	cfg.Database.Path = "test.db"
	return &ConfigBuilder{cfg: *cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithDriver sets the database driver.
func (b *ConfigBuilder) WithDriver(driver string) *ConfigBuilder {
	b.cfg.Database.Driver = driver
	return b
}

// WithDatabasePath sets the database path.
func (b *ConfigBuilder) WithDatabasePath(path string) *ConfigBuilder {
	b.cfg.Database.Path = path
	return b
}

// WithClosedIssuesRetention sets the closed issue retention in days.
func (b *ConfigBuilder) WithClosedIssuesRetention(days int) *ConfigBuilder {
	b.cfg.Retention.MaxAgeOfClosedIssuesDays = &days
	return b
}

// WithScopes sets the scopes with historical data deletion.
func (b *ConfigBuilder) WithScopes(scopes ...string) *ConfigBuilder {
	b.cfg.Retention.ScopesWithHistoricalDataDeletion = scopes
	return b
}

// WithSchedules sets both housekeeping schedules.
func (b *ConfigBuilder) WithSchedules(project, ce string) *ConfigBuilder {
	b.cfg.Housekeeping.ProjectSweepSchedule = project
	b.cfg.Housekeeping.CeSchedule = ce
	return b
}

// WithHousekeeping enables or disables scheduled sweeps.
func (b *ConfigBuilder) WithHousekeeping(enabled bool) *ConfigBuilder {
	b.cfg.Housekeeping.Enabled = enabled
	return b
}

// WithLogLevel sets the logging level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithTracing enables tracing against the given endpoint.
func (b *ConfigBuilder) WithTracing(endpoint string, ratio float64) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Endpoint = endpoint
	b.cfg.Telemetry.Tracing.SampleRatio = ratio
	return b
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithShutdownTimeout sets the server shutdown timeout.
func (b *ConfigBuilder) WithShutdownTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Server.ShutdownTimeout = d
	return b
}
