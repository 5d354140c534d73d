package purge

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/sweeper/pkg/store/storetest"
)

// recordingListener records every notification and optionally fails.
type recordingListener struct {
	projects []string
	disabled [][]string
	removed  [][]string
	err      error
}

func (l *recordingListener) OnComponentsDisabling(_ context.Context, projectUUID string, uuids []string) error {
	l.projects = append(l.projects, projectUUID)
	l.disabled = append(l.disabled, uuids)
	return l.err
}

func (l *recordingListener) OnIssuesRemoval(_ context.Context, projectUUID string, keys []string) error {
	l.projects = append(l.projects, projectUUID)
	l.removed = append(l.removed, keys)
	return l.err
}

func newTestEngine(db *storetest.DB, opts ...Option) *Engine {
	opts = append([]Option{WithClock(ClockFunc(func() time.Time { return db.Now }))}, opts...)
	return NewEngine(opts...)
}

func inTx(t *testing.T, db *storetest.DB, fn func(tx *sqlx.Tx) error) error {
	t.Helper()
	return db.Store.InTx(context.Background(), fn)
}

func purge(t *testing.T, db *storetest.DB, e *Engine, conf Configuration, listener Listener) error {
	t.Helper()
	return inTx(t, db, func(tx *sqlx.Tx) error {
		return e.Purge(context.Background(), tx, conf, listener, nil)
	})
}

// TestEngine_Purge_AnalysisAge tests that after a purge no non-last analysis
// older than the threshold remains unless it has events or is a baseline,
// at exactly N and N+1 days.
func TestEngine_Purge_AnalysisAge(t *testing.T) {
	for _, days := range []int{10, 30} {
		t.Run(fmt.Sprintf("%d days", days), func(t *testing.T) {
			db := storetest.New(t)
			project := db.InsertProject()
			metric := db.InsertMetric(false)

			atLimit := db.InsertSnapshot(project, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(days)})
			beyond := db.InsertSnapshot(project, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(days + 1)})
			withEvent := db.InsertSnapshot(project, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(days + 5)})
			baseline := db.InsertSnapshot(project, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(days + 5)})
			last := db.InsertSnapshot(project, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(days + 10), Last: true})
			db.InsertEvent(withEvent, project, EventCategoryVersion, "1.0")
			db.InsertNewCodePeriod(project, project, NewCodePeriodSpecificAnalysis, baseline)
			db.InsertMeasure(beyond, project, metric)
			db.InsertDuplication(beyond, project)

			conf := fixedConfiguration(db, project, project)
			conf.MaxAgeOfAnalysesWithoutEventsDays = days

			e := newTestEngine(db)
			if err := purge(t, db, e, conf, nil); err != nil {
				t.Fatalf("Purge failed: %v", err)
			}

			remaining := db.Strings(`SELECT uuid FROM snapshots ORDER BY uuid`)
			for _, kept := range []string{atLimit, withEvent, baseline, last} {
				if !contains(remaining, kept) {
					t.Errorf("Expected analysis %s to be kept", kept)
				}
			}
			if contains(remaining, beyond) {
				t.Errorf("Expected analysis %s older than %d days to be deleted", beyond, days)
			}
			if n := db.CountWhere("project_measures", "analysis_uuid = ?", beyond); n != 0 {
				t.Errorf("Expected measures of deleted analysis to be gone, got %d", n)
			}
			if n := db.CountWhere("duplications_index", "analysis_uuid = ?", beyond); n != 0 {
				t.Errorf("Expected duplications of deleted analysis to be gone, got %d", n)
			}
			if n := db.CountWhere("snapshots", "islast = 0 AND purge_status IS NULL"); n != 0 {
				t.Errorf("Expected every non-last analysis to be marked purged, got %d unmarked", n)
			}
			if n := db.CountWhere("snapshots", "islast = 1"); n != 1 {
				t.Errorf("Expected 1 last analysis, got %d", n)
			}

			// A second run changes nothing.
			if err := purge(t, db, e, conf, nil); err != nil {
				t.Fatalf("second Purge failed: %v", err)
			}
			if again := db.Strings(`SELECT uuid FROM snapshots ORDER BY uuid`); !reflect.DeepEqual(again, remaining) {
				t.Errorf("Expected second purge to be a no-op, got %v then %v", remaining, again)
			}
		})
	}
}

// TestEngine_Purge_StaleBranches tests that inactive branches are deleted
// with everything under them while the others are kept.
func TestEngine_Purge_StaleBranches(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	metric := db.InsertMetric(false)

	stale := db.InsertBranch(project, storetest.BranchOptions{UpdatedAt: db.DaysAgo(60)})
	staleFile := db.InsertComponent(stale, "FILE", true)
	staleAnalysis := db.InsertSnapshot(stale, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(31), Last: true})
	db.InsertMeasure(staleAnalysis, staleFile, metric)
	staleIssue := db.InsertIssue(staleFile, IssueStatusOpen)
	db.InsertIssueChange(staleIssue, staleFile)
	db.InsertFileSource(staleFile)
	db.InsertLiveMeasure(staleFile, metric)
	staleTask := db.InsertCeActivity(stale, db.DaysAgo(31))

	active := db.InsertBranch(project, storetest.BranchOptions{UpdatedAt: db.DaysAgo(60)})
	db.InsertSnapshot(active, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(29), Last: true})
	excluded := db.InsertBranch(project, storetest.BranchOptions{UpdatedAt: db.DaysAgo(90), ExcludeFromPurge: true})
	current := db.InsertBranch(project, storetest.BranchOptions{UpdatedAt: db.DaysAgo(90)})

	listener := &recordingListener{}
	if err := purge(t, db, newTestEngine(db), fixedConfiguration(db, current, project), listener); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	if n := db.CountWhere("components", "root_uuid = ?", stale.UUID); n != 0 {
		t.Errorf("Expected stale branch components to be deleted, got %d", n)
	}
	checks := []struct {
		table, where, arg string
	}{
		{"project_branches", "uuid = ?", stale.UUID},
		{"snapshots", "component_uuid = ?", stale.UUID},
		{"project_measures", "analysis_uuid = ?", staleAnalysis},
		{"issues", "kee = ?", staleIssue},
		{"issue_changes", "issue_key = ?", staleIssue},
		{"file_sources", "file_uuid = ?", staleFile.UUID},
		{"live_measures", "component_uuid = ?", staleFile.UUID},
		{"ce_activity", "uuid = ?", staleTask},
		{"ce_task_input", "task_uuid = ?", staleTask},
	}
	for _, c := range checks {
		if n := db.CountWhere(c.table, c.where, c.arg); n != 0 {
			t.Errorf("Expected %s of stale branch to be deleted, got %d", c.table, n)
		}
	}

	for _, kept := range []storetest.Component{project, active, excluded, current} {
		if n := db.CountWhere("project_branches", "uuid = ?", kept.UUID); n != 1 {
			t.Errorf("Expected branch %s to be kept", kept.Key)
		}
	}
	if len(listener.disabled) != 0 {
		t.Errorf("Expected no disable notification, got %v", listener.disabled)
	}
}

type populated struct {
	project, branch storetest.Component
}

// populate fills a project, its tree and a branch with one row of every
// record class.
func populate(db *storetest.DB, metric string) populated {
	p := db.InsertProject()
	module := db.InsertComponent(p, "MODULE", true)
	dir := db.InsertComponent(module, "DIRECTORY", true)
	file := db.InsertComponent(dir, "FILE", true)

	analysis := db.InsertSnapshot(p, storetest.SnapshotOptions{Last: true})
	previous := db.InsertSnapshot(p, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(3)})
	event := db.InsertEvent(analysis, p, EventCategoryVersion, "1.0")
	db.InsertEventComponentChange(event, analysis, p, file)
	db.InsertMeasure(analysis, file, metric)
	db.InsertMeasure(previous, p, metric)
	db.InsertDuplication(analysis, file)
	db.InsertLiveMeasure(file, metric)
	db.InsertLiveMeasure(p, metric)
	db.InsertManualMeasure(p, metric)
	issue := db.InsertIssue(file, IssueStatusOpen)
	db.InsertIssueChange(issue, file)
	db.InsertFileSource(file)
	db.InsertCeActivity(p, db.DaysAgo(1))
	db.InsertCeQueue(p)
	db.InsertWebhook(p)
	db.InsertProjectSettings(p)
	db.InsertProperty(module)

	b := db.InsertBranch(p, storetest.BranchOptions{})
	branchFile := db.InsertComponent(b, "FILE", true)
	branchAnalysis := db.InsertSnapshot(b, storetest.SnapshotOptions{Last: true})
	db.InsertMeasure(branchAnalysis, branchFile, metric)
	db.InsertIssue(branchFile, IssueStatusOpen)
	db.InsertFileSource(branchFile)
	db.InsertCeActivity(b, db.DaysAgo(1))
	db.InsertNewCodePeriod(p, b, "PREVIOUS_VERSION", "")

	return populated{project: p, branch: b}
}

var projectTables = []string{
	"components", "projects", "project_branches", "snapshots", "events",
	"event_component_changes", "project_measures", "live_measures", "manual_measures",
	"duplications_index", "issues", "issue_changes", "file_sources", "ce_activity",
	"ce_queue", "ce_task_input", "ce_scanner_context", "ce_task_characteristics",
	"ce_task_message", "webhooks", "webhook_deliveries", "project_alm_bindings",
	"project_mappings", "project_links", "properties", "new_code_periods",
}

// TestEngine_DeleteProject tests that deleting one of two identical
// projects removes exactly its half of every table.
func TestEngine_DeleteProject(t *testing.T) {
	db := storetest.New(t)
	metric := db.InsertMetric(false)
	gone := populate(db, metric)
	kept := populate(db, metric)

	before := map[string]int{}
	for _, table := range projectTables {
		before[table] = db.Count(table)
		if before[table] == 0 || before[table]%2 != 0 {
			t.Fatalf("Expected an even, non-zero fixture count for %s, got %d", table, before[table])
		}
	}

	e := newTestEngine(db)
	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteProject(context.Background(), tx, gone.project.UUID)
	})
	if err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	for _, table := range projectTables {
		if got := db.Count(table); got != before[table]/2 {
			t.Errorf("Expected %d rows in %s, got %d", before[table]/2, table, got)
		}
	}

	roots := []any{gone.project.UUID, gone.branch.UUID}
	references := []struct{ table, where string }{
		{"components", "root_uuid IN (?, ?)"},
		{"snapshots", "component_uuid IN (?, ?)"},
		{"issues", "project_uuid IN (?, ?)"},
		{"file_sources", "project_uuid IN (?, ?)"},
		{"ce_activity", "component_uuid IN (?, ?)"},
		{"new_code_periods", "project_uuid IN (?, ?)"},
		{"webhook_deliveries", "project_uuid IN (?, ?)"},
		{"project_branches", "project_uuid IN (?, ?)"},
	}
	for _, r := range references {
		if n := db.CountWhere(r.table, r.where, roots...); n != 0 {
			t.Errorf("Expected no %s row referencing the deleted project, got %d", r.table, n)
		}
	}
	if n := db.CountWhere("components", "root_uuid = ?", kept.project.UUID); n != 4 {
		t.Errorf("Expected the other project tree to be intact, got %d components", n)
	}
}

// TestEngine_DeleteProject_ComponentAnalyses tests that analyses owned by
// non-root components go before their components.
func TestEngine_DeleteProject_ComponentAnalyses(t *testing.T) {
	db := storetest.New(t)
	metric := db.InsertMetric(false)
	project := db.InsertProject()
	module := db.InsertComponent(project, "MODULE", true)
	db.InsertSnapshot(project, storetest.SnapshotOptions{Last: true})
	moduleAnalysis := db.InsertSnapshot(module, storetest.SnapshotOptions{Last: true})
	db.InsertMeasure(moduleAnalysis, module, metric)
	db.InsertEvent(moduleAnalysis, module, EventCategoryVersion, "1.0")

	e := newTestEngine(db)
	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteProject(context.Background(), tx, project.UUID)
	})
	if err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	for _, table := range []string{"components", "snapshots", "project_measures", "events"} {
		if n := db.Count(table); n != 0 {
			t.Errorf("Expected no %s rows left, got %d", table, n)
		}
	}
}

// TestEngine_DeleteProject_RequiresRoot tests that non-root and unknown
// uuids are rejected without deleting anything.
func TestEngine_DeleteProject_RequiresRoot(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	module := db.InsertComponent(project, "MODULE", true)
	before := db.Count("components")

	e := newTestEngine(db)
	for _, uuid := range []string{module.UUID, "unknown"} {
		err := inTx(t, db, func(tx *sqlx.Tx) error {
			return e.DeleteProject(context.Background(), tx, uuid)
		})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected invalid argument for %s, got %v", uuid, err)
		}
	}
	if got := db.Count("components"); got != before {
		t.Errorf("Expected nothing deleted, got %d components instead of %d", got, before)
	}
}

// TestEngine_DeleteBranch tests branch deletion and main branch rejection.
func TestEngine_DeleteBranch(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	branch := db.InsertBranch(project, storetest.BranchOptions{})
	db.InsertComponent(branch, "FILE", true)
	db.InsertSnapshot(branch, storetest.SnapshotOptions{Last: true})

	e := newTestEngine(db)

	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteBranch(context.Background(), tx, project.UUID)
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Expected main branch to be rejected, got %v", err)
	}

	err = inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteBranch(context.Background(), tx, branch.UUID)
	})
	if err != nil {
		t.Fatalf("DeleteBranch failed: %v", err)
	}
	if n := db.CountWhere("components", "root_uuid = ?", branch.UUID); n != 0 {
		t.Errorf("Expected branch components to be deleted, got %d", n)
	}
	if n := db.CountWhere("components", "root_uuid = ?", project.UUID); n != 1 {
		t.Errorf("Expected project to be kept, got %d components", n)
	}
}

func populateAnalyses(db *storetest.DB) storetest.Component {
	project := db.InsertProject()
	file := db.InsertComponent(project, "FILE", true)
	metric := db.InsertMetric(false)
	for i, id := range []string{"a1", "a2", "a3"} {
		db.InsertSnapshotWithUUID(id, project, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(i + 1)})
		event := db.InsertEvent(id, project, EventCategoryVersion, id)
		db.InsertEventComponentChange(event, id, project, file)
		db.InsertMeasure(id, file, metric)
		db.InsertDuplication(id, file)
	}
	return project
}

var analysisTables = []string{"snapshots", "events", "event_component_changes", "project_measures", "duplications_index"}

func analysisCounts(db *storetest.DB) []int {
	counts := make([]int, len(analysisTables))
	for i, table := range analysisTables {
		counts[i] = db.Count(table)
	}
	return counts
}

// TestEngine_DeleteAnalyses tests that repeated and split deletions end in
// the same state as one deletion of the union.
func TestEngine_DeleteAnalyses(t *testing.T) {
	deleteAll := func(db *storetest.DB, calls ...[]string) {
		e := newTestEngine(db)
		for _, uuids := range calls {
			err := inTx(t, db, func(tx *sqlx.Tx) error {
				return e.DeleteAnalyses(context.Background(), tx, nil, uuids)
			})
			if err != nil {
				t.Fatalf("DeleteAnalyses(%v) failed: %v", uuids, err)
			}
		}
	}

	union := storetest.New(t)
	populateAnalyses(union)
	deleteAll(union, []string{"a1", "a2"})

	split := storetest.New(t)
	populateAnalyses(split)
	deleteAll(split, []string{"a1"}, []string{"a2", "a2"}, []string{"a1", "missing"}, nil)

	if got, want := analysisCounts(split), analysisCounts(union); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected split deletion counts %v, got %v", want, got)
	}
	if got := union.Strings(`SELECT uuid FROM snapshots`); !reflect.DeepEqual(got, []string{"a3"}) {
		t.Errorf("Expected only a3 left, got %v", got)
	}
	for _, table := range analysisTables {
		if n := union.Count(table); n != 1 {
			t.Errorf("Expected 1 row left in %s, got %d", table, n)
		}
	}
}

// TestEngine_Purge_DisabledComponents tests the disable path: unresolved
// issues closed, sources and live measures dropped, history kept.
func TestEngine_Purge_DisabledComponents(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	metric := db.InsertMetric(false)
	analysis := db.InsertSnapshot(project, storetest.SnapshotOptions{Last: true})

	dir := db.InsertComponent(project, "DIRECTORY", false)
	f1 := db.InsertComponent(dir, "FILE", false)
	f2 := db.InsertComponent(project, "FILE", true)

	open := db.InsertIssue(f1, IssueStatusOpen)
	confirmed := db.InsertIssue(f1, IssueStatusConfirmed)
	resolved := db.InsertClosedIssue(f1, IssueStatusResolved, db.DaysAgo(2))
	otherIssue := db.InsertIssue(f2, IssueStatusOpen)
	db.InsertLiveMeasure(f1, metric)
	db.InsertLiveMeasure(dir, metric)
	db.InsertLiveMeasure(f2, metric)
	db.InsertFileSource(f1)
	db.InsertFileSource(f2)
	db.InsertMeasure(analysis, f1, metric)

	conf := fixedConfiguration(db, project, project)
	conf.DisabledComponentUUIDs = []string{f1.UUID}
	listener := &recordingListener{}

	if err := purge(t, db, newTestEngine(db), conf, listener); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	for _, key := range []string{open, confirmed} {
		status := db.Strings(`SELECT status || '/' || resolution FROM issues WHERE kee = ?`, key)
		if len(status) != 1 || status[0] != "CLOSED/REMOVED" {
			t.Errorf("Expected issue %s to be CLOSED/REMOVED, got %v", key, status)
		}
		if n := db.CountWhere("issues", "kee = ? AND issue_close_date = ?", key, db.Now.UnixMilli()); n != 1 {
			t.Errorf("Expected issue %s close date to be now", key)
		}
	}
	if status := db.Strings(`SELECT status FROM issues WHERE kee = ?`, resolved); len(status) != 1 || status[0] != IssueStatusResolved {
		t.Errorf("Expected resolved issue untouched, got %v", status)
	}
	if status := db.Strings(`SELECT status FROM issues WHERE kee = ?`, otherIssue); len(status) != 1 || status[0] != IssueStatusOpen {
		t.Errorf("Expected issue of enabled file untouched, got %v", status)
	}

	if n := db.CountWhere("live_measures", "component_uuid IN (?, ?)", f1.UUID, dir.UUID); n != 0 {
		t.Errorf("Expected live measures of disabled components to be deleted, got %d", n)
	}
	if n := db.CountWhere("file_sources", "file_uuid = ?", f1.UUID); n != 0 {
		t.Errorf("Expected file source of disabled file to be deleted, got %d", n)
	}
	if n := db.CountWhere("components", "uuid = ? AND enabled = 0", f1.UUID); n != 1 {
		t.Error("Expected disabled file to stay, disabled")
	}
	if n := db.CountWhere("project_measures", "component_uuid = ?", f1.UUID); n != 1 {
		t.Errorf("Expected historical measure to be kept, got %d", n)
	}
	if n := db.CountWhere("live_measures", "component_uuid = ?", f2.UUID); n != 1 {
		t.Error("Expected enabled file live measure to be kept")
	}
	if n := db.CountWhere("file_sources", "file_uuid = ?", f2.UUID); n != 1 {
		t.Error("Expected enabled file source to be kept")
	}
	// The directory owns no issue once disabled, so it is removed.
	if n := db.CountWhere("components", "uuid = ?", dir.UUID); n != 0 {
		t.Errorf("Expected disabled directory without issues to be deleted, got %d", n)
	}

	wantDisabled := [][]string{{f1.UUID}, {dir.UUID}}
	if !reflect.DeepEqual(listener.disabled, wantDisabled) {
		t.Errorf("Expected disable notifications %v, got %v", wantDisabled, listener.disabled)
	}
	for _, p := range listener.projects {
		if p != project.UUID {
			t.Errorf("Expected notifications for %s, got %s", project.UUID, p)
		}
	}
}

// TestEngine_Purge_ListenerErrorRollsBack tests that a failing listener
// aborts the purge and leaves the store untouched.
func TestEngine_Purge_ListenerErrorRollsBack(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	file := db.InsertComponent(project, "FILE", false)
	issue := db.InsertIssue(file, IssueStatusOpen)
	db.InsertFileSource(file)

	conf := fixedConfiguration(db, project, project)
	conf.DisabledComponentUUIDs = []string{file.UUID}
	boom := errors.New("index unavailable")

	err := purge(t, db, newTestEngine(db), conf, &recordingListener{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected listener error, got %v", err)
	}
	var le *ListenerError
	if !errors.As(err, &le) || le.Callback != "OnComponentsDisabling" {
		t.Errorf("Expected ListenerError from OnComponentsDisabling, got %v", err)
	}

	if status := db.Strings(`SELECT status FROM issues WHERE kee = ?`, issue); len(status) != 1 || status[0] != IssueStatusOpen {
		t.Errorf("Expected issue rollback to OPEN, got %v", status)
	}
	if n := db.CountWhere("file_sources", "file_uuid = ?", file.UUID); n != 1 {
		t.Errorf("Expected file source to be restored, got %d", n)
	}
}

// TestEngine_Purge_OldClosedIssues tests closed issue deletion and its
// notification.
func TestEngine_Purge_OldClosedIssues(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	file := db.InsertComponent(project, "FILE", true)
	old := db.InsertClosedIssue(file, IssueStatusClosed, db.DaysAgo(20))
	db.InsertIssueChange(old, file)
	recent := db.InsertClosedIssue(file, IssueStatusClosed, db.DaysAgo(5))

	conf := fixedConfiguration(db, project, project)
	days := 10
	conf.MaxAgeOfClosedIssuesDays = &days
	listener := &recordingListener{}

	if err := purge(t, db, newTestEngine(db), conf, listener); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	if got := db.Strings(`SELECT kee FROM issues`); !reflect.DeepEqual(got, []string{recent}) {
		t.Errorf("Expected only %s left, got %v", recent, got)
	}
	if n := db.Count("issue_changes"); n != 0 {
		t.Errorf("Expected issue changes to be deleted, got %d", n)
	}
	if !reflect.DeepEqual(listener.removed, [][]string{{old}}) {
		t.Errorf("Expected removal notification for %s, got %v", old, listener.removed)
	}
}

// TestEngine_Purge_HistoricalData tests that flagged metrics lose their
// history on the root and the configured scopes only.
func TestEngine_Purge_HistoricalData(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	dir := db.InsertComponent(project, "DIRECTORY", true)
	file := db.InsertComponent(dir, "FILE", true)
	flagged := db.InsertMetric(true)
	regular := db.InsertMetric(false)

	previous := db.InsertSnapshot(project, storetest.SnapshotOptions{CreatedAt: db.DaysAgo(5)})
	last := db.InsertSnapshot(project, storetest.SnapshotOptions{Last: true})
	for _, analysis := range []string{previous, last} {
		for _, c := range []storetest.Component{project, dir, file} {
			db.InsertMeasure(analysis, c, flagged)
			db.InsertMeasure(analysis, c, regular)
		}
	}

	conf := fixedConfiguration(db, project, project)
	conf.ScopesWithHistoricalDataDeletion = []Scope{ScopeFile}

	if err := purge(t, db, newTestEngine(db), conf, nil); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	tests := []struct {
		name      string
		analysis  string
		component storetest.Component
		metric    string
		want      int
	}{
		{"root flagged", previous, project, flagged, 0},
		{"file flagged", previous, file, flagged, 0},
		{"directory flagged", previous, dir, flagged, 1},
		{"file regular", previous, file, regular, 1},
		{"root regular", previous, project, regular, 1},
		{"last analysis flagged", last, file, flagged, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := db.CountWhere("project_measures", "analysis_uuid = ? AND component_uuid = ? AND metric_uuid = ?",
				tt.analysis, tt.component.UUID, tt.metric)
			if n != tt.want {
				t.Errorf("Expected %d measures, got %d", tt.want, n)
			}
		})
	}
	if n := db.CountWhere("snapshots", "uuid = ? AND purge_status = 1", previous); n != 1 {
		t.Error("Expected previous analysis to be marked purged")
	}
}

// TestEngine_Purge_AbortedAnalyses tests that unprocessed analyses go with
// their events.
func TestEngine_Purge_AbortedAnalyses(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	aborted := db.InsertSnapshot(project, storetest.SnapshotOptions{Unprocessed: true})
	db.InsertEvent(aborted, project, "Alert", "Red")
	last := db.InsertSnapshot(project, storetest.SnapshotOptions{Last: true})

	if err := purge(t, db, newTestEngine(db), fixedConfiguration(db, project, project), nil); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if got := db.Strings(`SELECT uuid FROM snapshots`); !reflect.DeepEqual(got, []string{last}) {
		t.Errorf("Expected only %s left, got %v", last, got)
	}
	if n := db.Count("events"); n != 0 {
		t.Errorf("Expected events of aborted analysis to be deleted, got %d", n)
	}
}

// TestEngine_Purge_InvalidConfiguration tests configuration validation.
func TestEngine_Purge_InvalidConfiguration(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()

	tests := []struct {
		name string
		conf Configuration
	}{
		{"missing root", Configuration{ProjectUUID: project.UUID}},
		{"missing project", Configuration{RootUUID: project.UUID}},
		{"negative age", Configuration{RootUUID: project.UUID, ProjectUUID: project.UUID, MaxAgeOfInactiveBranchesDays: -1}},
		{"unknown scope", Configuration{RootUUID: project.UUID, ProjectUUID: project.UUID, ScopesWithHistoricalDataDeletion: []Scope{"BOGUS"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := purge(t, db, newTestEngine(db), tt.conf, nil)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Expected invalid argument, got %v", err)
			}
		})
	}
}

// TestEngine_Purge_OldDisabledComponentsLeaveNoOrphans tests that deleting
// disabled components without issues also removes every row keyed by them.
func TestEngine_Purge_OldDisabledComponentsLeaveNoOrphans(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	metric := db.InsertMetric(false)
	rootAnalysis := db.InsertSnapshot(project, storetest.SnapshotOptions{Last: true})

	module := db.InsertComponent(project, "MODULE", false)
	moduleAnalysis := db.InsertSnapshot(module, storetest.SnapshotOptions{Last: true})
	db.InsertMeasure(moduleAnalysis, module, metric)
	db.InsertMeasure(rootAnalysis, module, metric)
	db.InsertDuplication(moduleAnalysis, module)
	db.InsertProperty(module)
	db.InsertManualMeasure(module, metric)
	db.InsertLiveMeasure(module, metric)

	if err := purge(t, db, newTestEngine(db), fixedConfiguration(db, project, project), NopListener{}); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}

	orphans := []struct{ table, where string }{
		{"components", "uuid = ?"},
		{"snapshots", "component_uuid = ?"},
		{"project_measures", "component_uuid = ?"},
		{"duplications_index", "component_uuid = ?"},
		{"properties", "component_uuid = ?"},
		{"manual_measures", "component_uuid = ?"},
		{"live_measures", "component_uuid = ?"},
	}
	for _, o := range orphans {
		if n := db.CountWhere(o.table, o.where, module.UUID); n != 0 {
			t.Errorf("Expected no %s row for the deleted module, got %d", o.table, n)
		}
	}
	if n := db.CountWhere("snapshots", "uuid = ?", rootAnalysis); n != 1 {
		t.Errorf("Expected the root analysis to be kept, got %d", n)
	}
}

// TestEngine_DeleteNonRootComponentsInView tests view pruning.
func TestEngine_DeleteNonRootComponentsInView(t *testing.T) {
	db := storetest.New(t)
	project := db.InsertProject()
	metric := db.InsertMetric(false)
	view := db.InsertView()
	subview := db.InsertComponent(view, "SUBVIEW", true)
	copied := db.InsertProjectCopy(subview, project)
	analysis := db.InsertSnapshot(view, storetest.SnapshotOptions{Last: true})

	db.InsertProperty(view)
	db.InsertProperty(subview)
	db.InsertManualMeasure(subview, metric)
	db.InsertMeasure(analysis, view, metric)
	db.InsertMeasure(analysis, subview, metric)
	db.InsertMeasure(analysis, copied, metric)

	e := newTestEngine(db)
	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteNonRootComponentsInView(context.Background(), tx, []string{view.UUID, subview.UUID, copied.UUID, copied.UUID})
	})
	if err != nil {
		t.Fatalf("DeleteNonRootComponentsInView failed: %v", err)
	}

	if got := db.Strings(`SELECT uuid FROM components WHERE root_uuid = ?`, view.UUID); !reflect.DeepEqual(got, []string{view.UUID}) {
		t.Errorf("Expected only the view root left, got %v", got)
	}
	if n := db.CountWhere("properties", "component_uuid = ?", subview.UUID); n != 0 {
		t.Errorf("Expected subview properties to be deleted, got %d", n)
	}
	if n := db.CountWhere("properties", "component_uuid = ?", view.UUID); n != 1 {
		t.Errorf("Expected view properties to be kept, got %d", n)
	}
	if n := db.Count("manual_measures"); n != 0 {
		t.Errorf("Expected manual measures to be deleted, got %d", n)
	}
	if n := db.Count("project_measures"); n != 1 {
		t.Errorf("Expected only the view measure left, got %d", n)
	}
	if n := db.CountWhere("components", "uuid = ?", project.UUID); n != 1 {
		t.Error("Expected the copied project to be untouched")
	}

	err = inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteNonRootComponentsInView(context.Background(), tx, []string{"missing"})
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected unknown uuid to be rejected, got %v", err)
	}

	err = inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteNonRootComponentsInView(context.Background(), tx, nil)
	})
	if err != nil {
		t.Errorf("Expected empty input to be a no-op, got %v", err)
	}
}

// TestEngine_GlobalCePurges tests the cross-project CE housekeeping calls.
func TestEngine_GlobalCePurges(t *testing.T) {
	db := storetest.New(t)
	for i := 0; i < 2; i++ {
		p := db.InsertProject()
		db.InsertCeActivity(p, db.DaysAgo(181))
		db.InsertCeActivity(p, db.DaysAgo(180))
		db.InsertCeActivity(p, db.DaysAgo(10))
	}

	e := newTestEngine(db)
	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return e.PurgeCeActivities(context.Background(), tx, nil)
	})
	if err != nil {
		t.Fatalf("PurgeCeActivities failed: %v", err)
	}
	for _, table := range []string{"ce_activity", "ce_task_input", "ce_task_characteristics", "ce_task_message", "ce_scanner_context"} {
		if n := db.Count(table); n != 4 {
			t.Errorf("Expected 4 rows in %s, got %d", table, n)
		}
	}

	err = inTx(t, db, func(tx *sqlx.Tx) error {
		return e.PurgeCeScannerContexts(context.Background(), tx, nil)
	})
	if err != nil {
		t.Fatalf("PurgeCeScannerContexts failed: %v", err)
	}
	if n := db.Count("ce_scanner_context"); n != 2 {
		t.Errorf("Expected 2 recent scanner contexts, got %d", n)
	}
	if n := db.Count("ce_activity"); n != 4 {
		t.Errorf("Expected activities to be kept, got %d", n)
	}
}

// TestEngine_Tracing tests that calls and steps produce spans.
func TestEngine_Tracing(t *testing.T) {
	db := storetest.New(t)
	populateAnalyses(db)
	project := db.InsertProject()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	e := newTestEngine(db, WithTracer(tp.Tracer("test")))

	err := inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteAnalyses(context.Background(), tx, nil, []string{"a1"})
	})
	if err != nil {
		t.Fatalf("DeleteAnalyses failed: %v", err)
	}

	spans := recorder.Ended()
	var root sdktrace.ReadOnlySpan
	steps := 0
	for _, s := range spans {
		switch s.Name() {
		case "purge.DeleteAnalyses":
			root = s
		case "purge.step":
			steps++
		}
	}
	if root == nil {
		t.Fatal("Expected a purge.DeleteAnalyses span")
	}
	if steps != 5 {
		t.Errorf("Expected 5 step spans, got %d", steps)
	}
	for _, s := range spans {
		if s.Name() == "purge.step" && s.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Error("Expected step spans to be children of the call span")
		}
	}

	_ = inTx(t, db, func(tx *sqlx.Tx) error {
		return e.DeleteBranch(context.Background(), tx, project.UUID)
	})
	last := recorder.Ended()[len(recorder.Ended())-1]
	if last.Name() != "purge.DeleteBranch" || last.Status().Code != codes.Error {
		t.Errorf("Expected failed DeleteBranch span, got %s %v", last.Name(), last.Status().Code)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
