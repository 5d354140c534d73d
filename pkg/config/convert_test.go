package config

import (
	"testing"

	"mercator-hq/sweeper/pkg/purge"
)

func TestPurgeConfiguration(t *testing.T) {
	cfg := NewTestConfig().WithClosedIssuesRetention(45).WithScopes("FILE").Build()
	cfg.Retention.MaxAgeOfInactiveBranchesDays = 7

	conf := cfg.PurgeConfiguration("branch-uuid", "project-uuid")

	if conf.RootUUID != "branch-uuid" || conf.ProjectUUID != "project-uuid" {
		t.Errorf("unexpected root/project %q/%q", conf.RootUUID, conf.ProjectUUID)
	}
	if conf.MaxAgeOfInactiveBranchesDays != 7 {
		t.Errorf("expected 7 days, got %d", conf.MaxAgeOfInactiveBranchesDays)
	}
	if conf.MaxAgeOfClosedIssuesDays == nil || *conf.MaxAgeOfClosedIssuesDays != 45 {
		t.Errorf("expected 45 days, got %v", conf.MaxAgeOfClosedIssuesDays)
	}
	if len(conf.ScopesWithHistoricalDataDeletion) != 1 || conf.ScopesWithHistoricalDataDeletion[0] != purge.ScopeFile {
		t.Errorf("expected [FILE], got %v", conf.ScopesWithHistoricalDataDeletion)
	}
	if conf.Clock == nil {
		t.Error("expected a clock")
	}
	if err := conf.Validate(); err != nil {
		t.Errorf("expected valid purge configuration, got %v", err)
	}

	// The purge configuration does not alias the retention section
	*conf.MaxAgeOfClosedIssuesDays = 1
	if *cfg.Retention.MaxAgeOfClosedIssuesDays != 45 {
		t.Error("expected purge configuration to copy the closed issue retention")
	}
}

func TestStoreConfigAndCeThresholds(t *testing.T) {
	cfg := NewTestConfig().WithDriver("sqlite3").WithDatabasePath("x.db").Build()

	sc := cfg.StoreConfig()
	if sc.Driver != "sqlite3" || sc.Path != "x.db" || !sc.WALMode {
		t.Errorf("unexpected store config %+v", sc)
	}

	th := cfg.CeThresholds()
	if th != purge.DefaultCeThresholds() {
		t.Errorf("expected default thresholds, got %+v", th)
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := NewTestConfig().Build()

	opts := cfg.EngineOptions()
	if len(opts) != 2 {
		t.Fatalf("expected 2 options, got %d", len(opts))
	}
	if e := purge.NewEngine(opts...); e == nil {
		t.Fatal("expected an engine")
	}
}
