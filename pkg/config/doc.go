// Package config provides configuration management for the sweeper.
//
// Configuration is read from a YAML file, decoded on top of the defaults
// and then overridden by environment variables:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("sweeper.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SWEEPER_SECTION_FIELD.
// For example:
//
//   - SWEEPER_DATABASE_PATH overrides database.path
//   - SWEEPER_RETENTION_MAX_AGE_OF_CLOSED_ISSUES_DAYS overrides retention.max_age_of_closed_issues_days
//   - SWEEPER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Current Configuration
//
// Commands publish the loaded configuration with SetConfig. Long-running
// components read it through GetConfig on every run. Tests should pass
// explicit Config values instead.
//
// # Hot Reload
//
// Watcher observes the configuration file and calls back after a debounce
// interval. `sweeper serve` then calls ReloadConfig, which publishes the new
// configuration and runs the OnReload hooks, such as the one that
// reschedules housekeeping.
package config
