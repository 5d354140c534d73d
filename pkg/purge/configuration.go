package purge

import (
	"time"
)

// Retention defaults.
const (
	DefaultMaxAgeOfInactiveBranchesDays      = 30
	DefaultMaxAgeOfAnalysesWithoutEventsDays = 30
)

// Configuration drives one Purge call for one root (a project's main branch,
// another branch, or a view).
type Configuration struct {
	// RootUUID is the root component being purged, usually the branch that
	// was just analyzed. It is never considered stale.
	RootUUID string

	// ProjectUUID is the project owning RootUUID. Stale branches are looked
	// up among this project's branches.
	ProjectUUID string

	// ScopesWithHistoricalDataDeletion lists the scopes whose historical
	// measures of flagged metrics are dropped from non-last analyses.
	ScopesWithHistoricalDataDeletion []Scope

	// MaxAgeOfInactiveBranchesDays is the idle time after which a branch or
	// pull request is deleted. Zero means the default of 30.
	MaxAgeOfInactiveBranchesDays int

	// MaxAgeOfClosedIssuesDays enables the deletion of issues closed for
	// longer than this many days. Nil disables it.
	MaxAgeOfClosedIssuesDays *int

	// MaxAgeOfAnalysesWithoutEventsDays is the age after which a non-last
	// analysis with no events is deleted. Zero means the default of 30.
	MaxAgeOfAnalysesWithoutEventsDays int

	// Clock supplies "now". Nil means the system clock.
	Clock Clock

	// DisabledComponentUUIDs are the components the last analysis no
	// longer found.
	DisabledComponentUUIDs []string
}

// NewConfiguration returns a configuration with defaults for the given root.
func NewConfiguration(rootUUID, projectUUID string) Configuration {
	return Configuration{
		RootUUID:                          rootUUID,
		ProjectUUID:                       projectUUID,
		MaxAgeOfInactiveBranchesDays:      DefaultMaxAgeOfInactiveBranchesDays,
		MaxAgeOfAnalysesWithoutEventsDays: DefaultMaxAgeOfAnalysesWithoutEventsDays,
		Clock:                             SystemClock,
	}
}

// Validate checks required fields and ranges.
func (c Configuration) Validate() error {
	if c.RootUUID == "" {
		return newInvalidArgument("root_uuid", "", "root component uuid is required")
	}
	if c.ProjectUUID == "" {
		return newInvalidArgument("project_uuid", "", "project uuid is required")
	}
	if c.MaxAgeOfInactiveBranchesDays < 0 {
		return newInvalidArgument("max_age_of_inactive_branches_days", "",
			"max age of inactive branches must not be negative, got %d", c.MaxAgeOfInactiveBranchesDays)
	}
	if c.MaxAgeOfAnalysesWithoutEventsDays < 0 {
		return newInvalidArgument("max_age_of_analyses_without_events_days", "",
			"max age of analyses must not be negative, got %d", c.MaxAgeOfAnalysesWithoutEventsDays)
	}
	if c.MaxAgeOfClosedIssuesDays != nil && *c.MaxAgeOfClosedIssuesDays < 0 {
		return newInvalidArgument("max_age_of_closed_issues_days", "",
			"max age of closed issues must not be negative, got %d", *c.MaxAgeOfClosedIssuesDays)
	}
	for _, s := range c.ScopesWithHistoricalDataDeletion {
		if !s.Valid() {
			return newInvalidArgument("scopes_with_historical_data_deletion", "", "unknown scope %q", s)
		}
	}
	return nil
}

// Now returns the configuration's current time.
func (c Configuration) Now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

// MaxLiveDateOfInactiveBranches is the date before which an idle branch is stale.
func (c Configuration) MaxLiveDateOfInactiveBranches() time.Time {
	days := c.MaxAgeOfInactiveBranchesDays
	if days == 0 {
		days = DefaultMaxAgeOfInactiveBranchesDays
	}
	return c.Now().AddDate(0, 0, -days)
}

// MaxLiveDateOfAnalyses is the date before which an analysis without events expires.
func (c Configuration) MaxLiveDateOfAnalyses() time.Time {
	days := c.MaxAgeOfAnalysesWithoutEventsDays
	if days == 0 {
		days = DefaultMaxAgeOfAnalysesWithoutEventsDays
	}
	return c.Now().AddDate(0, 0, -days)
}

// MaxLiveDateOfClosedIssues is the close date before which closed issues
// are deleted. ok is false when closed issues are kept forever.
func (c Configuration) MaxLiveDateOfClosedIssues() (date time.Time, ok bool) {
	if c.MaxAgeOfClosedIssuesDays == nil {
		return time.Time{}, false
	}
	return c.Now().AddDate(0, 0, -*c.MaxAgeOfClosedIssuesDays), true
}

func (c Configuration) scopeNames() []string {
	names := make([]string, 0, len(c.ScopesWithHistoricalDataDeletion))
	for _, s := range c.ScopesWithHistoricalDataDeletion {
		names = append(names, string(s))
	}
	return names
}

// CeThresholds are the ages after which compute engine records are discarded.
type CeThresholds struct {
	ActivityMaxAgeDays       int
	ScannerContextMaxAgeDays int
}

// DefaultCeThresholds returns the global housekeeping thresholds.
func DefaultCeThresholds() CeThresholds {
	return CeThresholds{
		ActivityMaxAgeDays:       180,
		ScannerContextMaxAgeDays: 28,
	}
}
