// Package storetest creates throwaway analysis databases and fills them
// with fixture rows for tests.
package storetest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"mercator-hq/sweeper/pkg/store"
)

// Component is a fixture component.
type Component struct {
	UUID     string
	Key      string
	Scope    string
	RootUUID string
	// ProjectUUID is the project owning the component's branch.
	ProjectUUID string
}

// DB is a temporary store with fixture helpers. Fixture inserts fail the
// test on error.
type DB struct {
	t     testing.TB
	Store *store.Store
	Now   time.Time
	// Path is the database file, for tests that open it again.
	Path string
}

// New opens a fresh database in t.TempDir() with the default driver.
func New(t testing.TB) *DB {
	return NewWithDriver(t, store.DriverModernc)
}

// NewWithDriver opens a fresh database with the given driver.
func NewWithDriver(t testing.TB, driver string) *DB {
	t.Helper()

	cfg := store.DefaultConfig()
	cfg.Driver = driver
	cfg.Path = filepath.Join(t.TempDir(), "test.db")

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return &DB{
		t:     t,
		Store: st,
		Now:   time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC),
		Path:  cfg.Path,
	}
}

// X returns the underlying connection pool.
func (d *DB) X() *sqlx.DB {
	return d.Store.DB()
}

// Exec runs a statement and fails the test on error.
func (d *DB) Exec(query string, args ...any) {
	d.t.Helper()
	if _, err := d.X().Exec(query, args...); err != nil {
		d.t.Fatalf("Failed to exec %q: %v", query, err)
	}
}

// Count returns the number of rows of table.
func (d *DB) Count(table string) int {
	d.t.Helper()
	return d.CountWhere(table, "1 = 1")
}

// CountWhere returns the number of rows of table matching where.
func (d *DB) CountWhere(table, where string, args ...any) int {
	d.t.Helper()
	var n int
	if err := d.X().Get(&n, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where), args...); err != nil {
		d.t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// Strings runs a single-column query.
func (d *DB) Strings(query string, args ...any) []string {
	d.t.Helper()
	var out []string
	if err := d.X().Select(&out, query, args...); err != nil {
		d.t.Fatalf("Failed to query %q: %v", query, err)
	}
	return out
}

// DaysAgo returns d.Now minus days calendar days.
func (d *DB) DaysAgo(days int) time.Time {
	return d.Now.AddDate(0, 0, -days)
}

func newUUID() string {
	return uuid.NewString()
}

func (d *DB) insertComponent(c Component, parentUUID, mainBranchProjectUUID any, enabled bool) {
	d.t.Helper()
	d.Exec(`INSERT INTO components (uuid, kee, name, scope, enabled, parent_uuid, root_uuid, main_branch_project_uuid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UUID, c.Key, c.Key, c.Scope, enabled, parentUUID, c.RootUUID, mainBranchProjectUUID, d.Now.UnixMilli())
}

// InsertProject inserts a project: its root component, project record and
// main branch.
func (d *DB) InsertProject() Component {
	d.t.Helper()
	id := newUUID()
	c := Component{UUID: id, Key: "project-" + id[:8], Scope: "PROJECT", RootUUID: id, ProjectUUID: id}
	d.insertComponent(c, nil, nil, true)
	d.Exec(`INSERT INTO projects (uuid, kee, qualifier, name, created_at) VALUES (?, ?, 'TRK', ?, ?)`,
		id, c.Key, c.Key, d.Now.UnixMilli())
	d.Exec(`INSERT INTO project_branches (uuid, project_uuid, kee, branch_type, exclude_from_purge, updated_at)
		VALUES (?, ?, 'main', 'MAIN', 0, ?)`, id, id, d.Now.UnixMilli())
	return c
}

// BranchOptions describes a fixture branch.
type BranchOptions struct {
	Type             string // BRANCH (default) or PULL_REQUEST
	ExcludeFromPurge bool
	UpdatedAt        time.Time // defaults to DB.Now
}

// InsertBranch inserts a non-main branch of project.
func (d *DB) InsertBranch(project Component, opts BranchOptions) Component {
	d.t.Helper()
	if opts.Type == "" {
		opts.Type = "BRANCH"
	}
	if opts.UpdatedAt.IsZero() {
		opts.UpdatedAt = d.Now
	}
	id := newUUID()
	c := Component{UUID: id, Key: project.Key + ":branch-" + id[:8], Scope: "PROJECT", RootUUID: id, ProjectUUID: project.UUID}
	d.insertComponent(c, nil, project.UUID, true)
	d.Exec(`INSERT INTO project_branches (uuid, project_uuid, kee, branch_type, exclude_from_purge, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, id, project.UUID, "branch-"+id[:8], opts.Type, opts.ExcludeFromPurge, opts.UpdatedAt.UnixMilli())
	return c
}

// InsertComponent inserts a child of parent with the given scope.
func (d *DB) InsertComponent(parent Component, scope string, enabled bool) Component {
	d.t.Helper()
	id := newUUID()
	c := Component{UUID: id, Key: parent.Key + ":" + id[:8], Scope: scope, RootUUID: parent.RootUUID, ProjectUUID: parent.ProjectUUID}
	d.insertComponent(c, parent.UUID, nil, enabled)
	return c
}

// InsertView inserts a portfolio root.
func (d *DB) InsertView() Component {
	d.t.Helper()
	id := newUUID()
	c := Component{UUID: id, Key: "view-" + id[:8], Scope: "VIEW", RootUUID: id, ProjectUUID: id}
	d.insertComponent(c, nil, nil, true)
	d.Exec(`INSERT INTO projects (uuid, kee, qualifier, name, created_at) VALUES (?, ?, 'VW', ?, ?)`,
		id, c.Key, c.Key, d.Now.UnixMilli())
	return c
}

// InsertProjectCopy inserts a copy of project under a view or subview.
func (d *DB) InsertProjectCopy(parent, project Component) Component {
	d.t.Helper()
	c := d.InsertComponent(parent, "PROJECT_COPY", true)
	d.Exec(`UPDATE components SET copy_component_uuid = ? WHERE uuid = ?`, project.UUID, c.UUID)
	return c
}

// SnapshotOptions describes a fixture analysis.
type SnapshotOptions struct {
	Unprocessed bool
	Last        bool
	CreatedAt   time.Time // defaults to DB.Now
	Version     string
	Purged      bool
}

// InsertSnapshot inserts an analysis of c and returns its uuid.
func (d *DB) InsertSnapshot(c Component, opts SnapshotOptions) string {
	d.t.Helper()
	id := newUUID()
	d.InsertSnapshotWithUUID(id, c, opts)
	return id
}

// InsertSnapshotWithUUID inserts an analysis with a chosen uuid.
func (d *DB) InsertSnapshotWithUUID(id string, c Component, opts SnapshotOptions) {
	d.t.Helper()
	status := "P"
	if opts.Unprocessed {
		status = "U"
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = d.Now
	}
	var purgeStatus any
	if opts.Purged {
		purgeStatus = 1
	}
	d.Exec(`INSERT INTO snapshots (uuid, component_uuid, status, islast, version, purge_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, id, c.UUID, status, opts.Last, opts.Version, purgeStatus, opts.CreatedAt.UnixMilli())
}

// InsertEvent inserts an event on an analysis and returns its uuid.
func (d *DB) InsertEvent(analysisUUID string, c Component, category, name string) string {
	d.t.Helper()
	id := newUUID()
	d.Exec(`INSERT INTO events (uuid, analysis_uuid, component_uuid, name, category, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, analysisUUID, c.UUID, name, category, d.Now.UnixMilli())
	return id
}

// InsertEventComponentChange inserts a change of event referring to changed.
func (d *DB) InsertEventComponentChange(eventUUID, analysisUUID string, owner, changed Component) string {
	d.t.Helper()
	id := newUUID()
	d.Exec(`INSERT INTO event_component_changes
		(uuid, event_uuid, event_analysis_uuid, event_component_uuid, change_category, component_uuid, component_key)
		VALUES (?, ?, ?, ?, 'ADDED', ?, ?)`, id, eventUUID, analysisUUID, owner.UUID, changed.UUID, changed.Key)
	return id
}

// InsertMetric inserts a metric and returns its uuid.
func (d *DB) InsertMetric(deleteHistoricalData bool) string {
	d.t.Helper()
	id := newUUID()
	d.Exec(`INSERT INTO metrics (uuid, name, delete_historical_data) VALUES (?, ?, ?)`, id, "metric-"+id[:8], deleteHistoricalData)
	return id
}

// InsertMeasure inserts a historical measure.
func (d *DB) InsertMeasure(analysisUUID string, c Component, metricUUID string) {
	d.t.Helper()
	d.Exec(`INSERT INTO project_measures (analysis_uuid, component_uuid, metric_uuid, value) VALUES (?, ?, ?, 1.0)`,
		analysisUUID, c.UUID, metricUUID)
}

// InsertLiveMeasure inserts a live measure of c.
func (d *DB) InsertLiveMeasure(c Component, metricUUID string) {
	d.t.Helper()
	d.Exec(`INSERT INTO live_measures (uuid, project_uuid, component_uuid, metric_uuid, value) VALUES (?, ?, ?, ?, 1.0)`,
		newUUID(), c.RootUUID, c.UUID, metricUUID)
}

// InsertManualMeasure inserts a custom measure of c.
func (d *DB) InsertManualMeasure(c Component, metricUUID string) {
	d.t.Helper()
	d.Exec(`INSERT INTO manual_measures (uuid, component_uuid, metric_uuid, value) VALUES (?, ?, ?, 1.0)`,
		newUUID(), c.UUID, metricUUID)
}

// InsertDuplication inserts a duplication index row.
func (d *DB) InsertDuplication(analysisUUID string, c Component) {
	d.t.Helper()
	d.Exec(`INSERT INTO duplications_index (analysis_uuid, component_uuid, hash) VALUES (?, ?, ?)`,
		analysisUUID, c.UUID, "hash-"+newUUID()[:8])
}

// InsertIssue inserts an issue on c with the given status and returns its key.
func (d *DB) InsertIssue(c Component, status string) string {
	d.t.Helper()
	return d.InsertClosedIssue(c, status, time.Time{})
}

// InsertClosedIssue inserts an issue with a close date. A zero closedAt
// leaves the date unset.
func (d *DB) InsertClosedIssue(c Component, status string, closedAt time.Time) string {
	d.t.Helper()
	key := newUUID()
	var closeDate, resolution any
	if !closedAt.IsZero() {
		closeDate = closedAt.UnixMilli()
	}
	if status == "RESOLVED" || status == "CLOSED" {
		resolution = "FIXED"
	}
	d.Exec(`INSERT INTO issues (kee, component_uuid, project_uuid, rule_uuid, status, resolution, issue_close_date, updated_at)
		VALUES (?, ?, ?, 'rule', ?, ?, ?, ?)`, key, c.UUID, c.RootUUID, status, resolution, closeDate, d.Now.UnixMilli())
	return key
}

// InsertIssueChange inserts a change of an issue.
func (d *DB) InsertIssueChange(issueKey string, c Component) {
	d.t.Helper()
	d.Exec(`INSERT INTO issue_changes (kee, issue_key, project_uuid, change_type, change_data) VALUES (?, ?, ?, 'diff', 'status=CLOSED')`,
		newUUID(), issueKey, c.RootUUID)
}

// InsertFileSource inserts the source of file component c.
func (d *DB) InsertFileSource(c Component) {
	d.t.Helper()
	d.Exec(`INSERT INTO file_sources (uuid, project_uuid, file_uuid, data_hash) VALUES (?, ?, ?, 'hash')`,
		newUUID(), c.RootUUID, c.UUID)
}

// InsertCeActivity inserts a finished task of c with all child records,
// everything created at createdAt, and returns the task uuid.
func (d *DB) InsertCeActivity(c Component, createdAt time.Time) string {
	d.t.Helper()
	id := newUUID()
	d.Exec(`INSERT INTO ce_activity (uuid, task_type, component_uuid, main_component_uuid, status, is_last, created_at)
		VALUES (?, 'REPORT', ?, ?, 'SUCCESS', 0, ?)`, id, c.UUID, c.ProjectUUID, createdAt.UnixMilli())
	d.InsertCeChildren(id, createdAt)
	return id
}

// InsertCeQueue inserts a pending task of c with all child records.
func (d *DB) InsertCeQueue(c Component) string {
	d.t.Helper()
	id := newUUID()
	d.Exec(`INSERT INTO ce_queue (uuid, task_type, component_uuid, main_component_uuid, status, created_at)
		VALUES (?, 'REPORT', ?, ?, 'PENDING', ?)`, id, c.UUID, c.ProjectUUID, d.Now.UnixMilli())
	d.InsertCeChildren(id, d.Now)
	return id
}

// InsertCeChildren inserts input, scanner context, characteristic and
// message records of a task.
func (d *DB) InsertCeChildren(taskUUID string, createdAt time.Time) {
	d.t.Helper()
	at := createdAt.UnixMilli()
	d.Exec(`INSERT INTO ce_task_input (task_uuid, input_data, created_at) VALUES (?, ?, ?)`, taskUUID, []byte("report"), at)
	d.Exec(`INSERT INTO ce_scanner_context (task_uuid, context_data, created_at) VALUES (?, ?, ?)`, taskUUID, []byte("context"), at)
	d.Exec(`INSERT INTO ce_task_characteristics (uuid, task_uuid, kee, text_value) VALUES (?, ?, 'branch', 'main')`, newUUID(), taskUUID)
	d.Exec(`INSERT INTO ce_task_message (uuid, task_uuid, message, created_at) VALUES (?, ?, 'warning', ?)`, newUUID(), taskUUID, at)
}

// InsertWebhook inserts a webhook of project with one delivery.
func (d *DB) InsertWebhook(project Component) string {
	d.t.Helper()
	id := newUUID()
	d.Exec(`INSERT INTO webhooks (uuid, project_uuid, name, url) VALUES (?, ?, 'ci', 'https://ci.example.com/hook')`, id, project.UUID)
	d.Exec(`INSERT INTO webhook_deliveries (uuid, webhook_uuid, project_uuid, success, created_at) VALUES (?, ?, ?, 1, ?)`,
		newUUID(), id, project.UUID, d.Now.UnixMilli())
	return id
}

// InsertProjectSettings inserts an ALM binding, a mapping, a link, a
// property and a new code period of project.
func (d *DB) InsertProjectSettings(project Component) {
	d.t.Helper()
	d.Exec(`INSERT INTO project_alm_bindings (uuid, alm_id, repo_id, project_uuid) VALUES (?, 'github', ?, ?)`,
		newUUID(), "repo-"+project.UUID[:8], project.UUID)
	d.Exec(`INSERT INTO project_mappings (uuid, key_type, kee, project_uuid) VALUES (?, 'bitbucket', ?, ?)`,
		newUUID(), project.Key, project.UUID)
	d.Exec(`INSERT INTO project_links (uuid, project_uuid, name, href) VALUES (?, ?, 'home', 'https://example.com')`,
		newUUID(), project.UUID)
	d.InsertProperty(project)
	d.InsertNewCodePeriod(project, project, "PREVIOUS_VERSION", "")
}

// InsertProperty inserts a setting of c.
func (d *DB) InsertProperty(c Component) {
	d.t.Helper()
	d.Exec(`INSERT INTO properties (uuid, prop_key, component_uuid, text_value) VALUES (?, 'sonar.exclusions', ?, '**/gen/**')`,
		newUUID(), c.UUID)
}

// InsertNewCodePeriod inserts a new code period of branch.
func (d *DB) InsertNewCodePeriod(project, branch Component, typ, value string) {
	d.t.Helper()
	d.Exec(`INSERT INTO new_code_periods (uuid, project_uuid, branch_uuid, type, value) VALUES (?, ?, ?, ?, ?)`,
		newUUID(), project.UUID, branch.UUID, typ, value)
}
