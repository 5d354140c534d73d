package purge

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// Session is the caller-owned unit of work the engine runs in. Callers pass
// a *sqlx.Tx; the engine never begins, commits or rolls back.
type Session interface {
	sqlx.ExtContext
}

// Scope classifies a node of the component tree.
type Scope string

// Component scopes.
const (
	ScopeProject     Scope = "PROJECT"
	ScopeModule      Scope = "MODULE"
	ScopeDirectory   Scope = "DIRECTORY"
	ScopeFile        Scope = "FILE"
	ScopeView        Scope = "VIEW"
	ScopeSubview     Scope = "SUBVIEW"
	ScopeProjectCopy Scope = "PROJECT_COPY"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeProject, ScopeModule, ScopeDirectory, ScopeFile, ScopeView, ScopeSubview, ScopeProjectCopy:
		return true
	}
	return false
}

// Component is a node of the project/view hierarchy.
type Component struct {
	UUID                  string `db:"uuid" json:"uuid"`
	Key                   string `db:"kee" json:"key"`
	Scope                 Scope  `db:"scope" json:"scope"`
	Enabled               bool   `db:"enabled" json:"enabled"`
	ParentUUID            string `db:"parent_uuid" json:"parent_uuid,omitempty"`
	RootUUID              string `db:"root_uuid" json:"root_uuid"`
	MainBranchProjectUUID string `db:"main_branch_project_uuid" json:"main_branch_project_uuid,omitempty"`
}

// IsRoot reports whether the component is a top-level project, branch or view.
func (c Component) IsRoot() bool {
	return (c.Scope == ScopeProject || c.Scope == ScopeView) && c.ParentUUID == ""
}

// BranchType distinguishes main branches from branches and pull requests.
type BranchType string

// Branch types.
const (
	BranchTypeMain        BranchType = "MAIN"
	BranchTypeBranch      BranchType = "BRANCH"
	BranchTypePullRequest BranchType = "PULL_REQUEST"
)

// Branch is a project variant. Its uuid is the uuid of its root component.
type Branch struct {
	UUID             string     `db:"uuid" json:"uuid"`
	ProjectUUID      string     `db:"project_uuid" json:"project_uuid"`
	Key              string     `db:"kee" json:"key"`
	Type             BranchType `db:"branch_type" json:"type"`
	ExcludeFromPurge bool       `db:"exclude_from_purge" json:"exclude_from_purge"`
	LastAnalysisAt   int64      `db:"last_analysis" json:"-"`
}

// LastAnalysis returns the date of the latest processed analysis, or of the
// last branch update when the branch was never analyzed.
func (b Branch) LastAnalysis() time.Time {
	return time.UnixMilli(b.LastAnalysisAt)
}

// Analysis statuses as persisted in snapshots.status.
const (
	StatusUnprocessed = "U"
	StatusProcessed   = "P"
)

// EventCategoryVersion is the category of events that name a project version.
const EventCategoryVersion = "Version"

// NewCodePeriodSpecificAnalysis pins a single analysis as the new code baseline.
const NewCodePeriodSpecificAnalysis = "SPECIFIC_ANALYSIS"

// PurgeableAnalysis is a processed analysis considered by retention rules.
type PurgeableAnalysis struct {
	AnalysisUUID string `db:"analysis_uuid" json:"analysis_uuid"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
	IsLast       bool   `db:"islast" json:"is_last"`
	HasEvents    bool   `db:"has_events" json:"has_events"`
	Version      string `db:"version" json:"version,omitempty"`
}

// Date returns the analysis date.
func (a PurgeableAnalysis) Date() time.Time {
	return time.UnixMilli(a.CreatedAt)
}

// Issue statuses and resolutions touched by the engine.
const (
	IssueStatusOpen      = "OPEN"
	IssueStatusConfirmed = "CONFIRM"
	IssueStatusReopened  = "REOPENED"
	IssueStatusResolved  = "RESOLVED"
	IssueStatusClosed    = "CLOSED"

	IssueResolutionRemoved = "REMOVED"
)

// unresolvedIssueStatuses are the statuses closed when a component is disabled.
var unresolvedIssueStatuses = []string{IssueStatusOpen, IssueStatusConfirmed, IssueStatusReopened}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
