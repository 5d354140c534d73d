package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of DefaultConfig, so omitted fields keep their
// defaults. The result is validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SWEEPER_SECTION_FIELD (e.g., SWEEPER_DATABASE_PATH).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from DefaultConfig.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Database overrides
	if val := os.Getenv("SWEEPER_DATABASE_DRIVER"); val != "" {
		cfg.Database.Driver = val
	}
	if val := os.Getenv("SWEEPER_DATABASE_PATH"); val != "" {
		cfg.Database.Path = val
	}
	if val := os.Getenv("SWEEPER_DATABASE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Database.BusyTimeout = d
		}
	}
	if val := os.Getenv("SWEEPER_DATABASE_MAX_OPEN_CONNS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Database.MaxOpenConns = i
		}
	}
	if val := os.Getenv("SWEEPER_DATABASE_WAL_MODE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Database.WALMode = b
		}
	}
	if val := os.Getenv("SWEEPER_DATABASE_MAX_PARAMS_PER_STATEMENT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Database.MaxParamsPerStatement = i
		}
	}
	if val := os.Getenv("SWEEPER_DATABASE_BATCH_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Database.BatchSize = i
		}
	}

	// Retention overrides
	if val := os.Getenv("SWEEPER_RETENTION_MAX_AGE_OF_INACTIVE_BRANCHES_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.MaxAgeOfInactiveBranchesDays = i
		}
	}
	if val := os.Getenv("SWEEPER_RETENTION_MAX_AGE_OF_CLOSED_ISSUES_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.MaxAgeOfClosedIssuesDays = &i
		}
	}
	if val := os.Getenv("SWEEPER_RETENTION_MAX_AGE_OF_ANALYSES_WITHOUT_EVENTS_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.MaxAgeOfAnalysesWithoutEventsDays = i
		}
	}
	if val := os.Getenv("SWEEPER_RETENTION_SCOPES_WITH_HISTORICAL_DATA_DELETION"); val != "" {
		cfg.Retention.ScopesWithHistoricalDataDeletion = splitList(val)
	}
	if val := os.Getenv("SWEEPER_RETENTION_CE_ACTIVITY_MAX_AGE_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.CeActivityMaxAgeDays = i
		}
	}
	if val := os.Getenv("SWEEPER_RETENTION_CE_SCANNER_CONTEXT_MAX_AGE_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.CeScannerContextMaxAgeDays = i
		}
	}

	// Housekeeping overrides
	if val := os.Getenv("SWEEPER_HOUSEKEEPING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Housekeeping.Enabled = b
		}
	}
	if val := os.Getenv("SWEEPER_HOUSEKEEPING_PROJECT_SWEEP_SCHEDULE"); val != "" {
		cfg.Housekeeping.ProjectSweepSchedule = val
	}
	if val := os.Getenv("SWEEPER_HOUSEKEEPING_CE_SCHEDULE"); val != "" {
		cfg.Housekeeping.CeSchedule = val
	}
	if val := os.Getenv("SWEEPER_HOUSEKEEPING_RUN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Housekeeping.RunTimeout = d
		}
	}

	// Telemetry overrides
	if val := os.Getenv("SWEEPER_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SWEEPER_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("SWEEPER_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("SWEEPER_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
	if val := os.Getenv("SWEEPER_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("SWEEPER_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("SWEEPER_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}

	// Server overrides
	if val := os.Getenv("SWEEPER_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("SWEEPER_SERVER_WATCH_CONFIG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Server.WatchConfig = b
		}
	}
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
