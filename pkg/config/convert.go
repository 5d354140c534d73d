package config

import (
	"mercator-hq/sweeper/pkg/purge"
	"mercator-hq/sweeper/pkg/store"
)

// StoreConfig returns the store settings of the database section.
func (c *Config) StoreConfig() *store.Config {
	return &store.Config{
		Driver:       c.Database.Driver,
		Path:         c.Database.Path,
		MaxOpenConns: c.Database.MaxOpenConns,
		WALMode:      c.Database.WALMode,
		BusyTimeout:  c.Database.BusyTimeout,
	}
}

// PurgeConfiguration builds the purge configuration of one root from the
// retention section.
func (c *Config) PurgeConfiguration(rootUUID, projectUUID string) purge.Configuration {
	conf := purge.NewConfiguration(rootUUID, projectUUID)
	conf.MaxAgeOfInactiveBranchesDays = c.Retention.MaxAgeOfInactiveBranchesDays
	conf.MaxAgeOfAnalysesWithoutEventsDays = c.Retention.MaxAgeOfAnalysesWithoutEventsDays
	if c.Retention.MaxAgeOfClosedIssuesDays != nil {
		days := *c.Retention.MaxAgeOfClosedIssuesDays
		conf.MaxAgeOfClosedIssuesDays = &days
	}
	for _, s := range c.Retention.ScopesWithHistoricalDataDeletion {
		conf.ScopesWithHistoricalDataDeletion = append(conf.ScopesWithHistoricalDataDeletion, purge.Scope(s))
	}
	return conf
}

// CeThresholds returns the compute engine retention of the retention section.
func (c *Config) CeThresholds() purge.CeThresholds {
	return purge.CeThresholds{
		ActivityMaxAgeDays:       c.Retention.CeActivityMaxAgeDays,
		ScannerContextMaxAgeDays: c.Retention.CeScannerContextMaxAgeDays,
	}
}

// EngineOptions returns the purge engine options derived from the database
// batching limits and the compute engine retention.
func (c *Config) EngineOptions() []purge.Option {
	return []purge.Option{
		purge.WithBatching(c.Database.MaxParamsPerStatement, c.Database.BatchSize),
		purge.WithCeThresholds(c.CeThresholds()),
	}
}
