package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/sweeper/pkg/purge"
	"mercator-hq/sweeper/pkg/store"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "database.path").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateHousekeeping(&cfg.Housekeeping)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateServer(&cfg.Server)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateDatabase(cfg *DatabaseConfig) []FieldError {
	var errs []FieldError

	if cfg.Driver != store.DriverModernc && cfg.Driver != store.DriverMattn {
		errs = append(errs, FieldError{
			Field:   "database.driver",
			Message: fmt.Sprintf("invalid driver %q: must be '%s' or '%s'", cfg.Driver, store.DriverModernc, store.DriverMattn),
		})
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "database.path",
			Message: "database path is required",
		})
	}
	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "database.busy_timeout",
			Message: "busy timeout must not be negative",
		})
	}
	if cfg.MaxOpenConns < 1 {
		errs = append(errs, FieldError{
			Field:   "database.max_open_conns",
			Message: fmt.Sprintf("max open connections must be at least 1, got %d", cfg.MaxOpenConns),
		})
	}
	if cfg.MaxParamsPerStatement < 2 {
		errs = append(errs, FieldError{
			Field:   "database.max_params_per_statement",
			Message: fmt.Sprintf("max params per statement must be at least 2, got %d", cfg.MaxParamsPerStatement),
		})
	}
	if cfg.BatchSize < 1 {
		errs = append(errs, FieldError{
			Field:   "database.batch_size",
			Message: fmt.Sprintf("batch size must be at least 1, got %d", cfg.BatchSize),
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	nonNegative := func(field string, v int) {
		if v < 0 {
			errs = append(errs, FieldError{
				Field:   "retention." + field,
				Message: fmt.Sprintf("must not be negative, got %d", v),
			})
		}
	}
	nonNegative("max_age_of_inactive_branches_days", cfg.MaxAgeOfInactiveBranchesDays)
	nonNegative("max_age_of_analyses_without_events_days", cfg.MaxAgeOfAnalysesWithoutEventsDays)
	nonNegative("ce_activity_max_age_days", cfg.CeActivityMaxAgeDays)
	nonNegative("ce_scanner_context_max_age_days", cfg.CeScannerContextMaxAgeDays)
	if cfg.MaxAgeOfClosedIssuesDays != nil {
		nonNegative("max_age_of_closed_issues_days", *cfg.MaxAgeOfClosedIssuesDays)
	}

	for i, s := range cfg.ScopesWithHistoricalDataDeletion {
		if !purge.Scope(s).Valid() {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("retention.scopes_with_historical_data_deletion[%d]", i),
				Message: fmt.Sprintf("unknown scope %q", s),
			})
		}
	}

	return errs
}

func validateHousekeeping(cfg *HousekeepingConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if _, err := cron.ParseStandard(cfg.ProjectSweepSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "housekeeping.project_sweep_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.ProjectSweepSchedule, err),
		})
	}
	if _, err := cron.ParseStandard(cfg.CeSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "housekeeping.ce_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.CeSchedule, err),
		})
	}
	if cfg.RunTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "housekeeping.run_timeout",
			Message: "run timeout must be positive",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path is required when metrics are enabled",
			})
		} else if cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		if cfg.Health.LivenessPath == "" || cfg.Health.LivenessPath[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.liveness_path",
				Message: "liveness path must start with /",
			})
		}
		if cfg.Health.ReadinessPath == "" || cfg.Health.ReadinessPath[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.readiness_path",
				Message: "readiness path must start with /",
			})
		}
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must not be negative",
		})
	}

	return errs
}
