package purge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mercator-hq/sweeper/pkg/purge"

// Engine deletes obsolete analysis data. Every method runs inside the
// session it is given and leaves commit or rollback to the caller, so a
// failure anywhere undoes the whole call. Calls touching the same project
// must be serialized by the caller.
type Engine struct {
	executor   *Executor
	clock      Clock
	thresholds CeThresholds
	observer   StepObserver
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer used for call and step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock sets the clock used by global housekeeping calls.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithBatching sets the bound parameter limit and the preferred chunk size.
func WithBatching(maxParams, batchSize int) Option {
	return func(e *Engine) {
		e.executor = NewExecutor(maxParams, batchSize)
	}
}

// WithCeThresholds overrides the CE housekeeping ages.
func WithCeThresholds(t CeThresholds) Option {
	return func(e *Engine) {
		e.thresholds = t
	}
}

// WithObserver sets the observer of profilers the engine creates itself.
func WithObserver(o StepObserver) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		executor:   NewExecutor(DefaultMaxParams, DefaultBatchSize),
		clock:      SystemClock,
		thresholds: DefaultCeThresholds(),
		tracer:     otel.Tracer(tracerName),
		logger:     slog.Default().With("component", "purge.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.executor.SetTracer(e.tracer)
	return e
}

// Executor returns the engine's batched executor.
func (e *Engine) Executor() *Executor {
	return e.executor
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (e *Engine) profilerOrNew(p *Profiler) *Profiler {
	if p != nil {
		return p
	}
	return NewProfiler(e.observer)
}

// Purge runs the retention sweep of conf.RootUUID: aborted and expired
// analyses, historical data of flagged metrics, disabled components, old
// closed issues, old CE records and stale branches of conf.ProjectUUID.
func (e *Engine) Purge(ctx context.Context, s Session, conf Configuration, listener Listener, profiler *Profiler) (err error) {
	if err := conf.Validate(); err != nil {
		return err
	}
	if listener == nil {
		listener = NopListener{}
	}
	profiler = e.profilerOrNew(profiler)

	ctx, span := e.startSpan(ctx, "purge.Purge",
		attribute.String("purge.root_uuid", conf.RootUUID),
		attribute.String("purge.project_uuid", conf.ProjectUUID),
	)
	defer func() { endSpan(span, err) }()

	logger := e.logger.With("root_uuid", conf.RootUUID, "project_uuid", conf.ProjectUUID)
	ev := NewEvaluator(conf)
	root := conf.RootUUID
	now := conf.Now()

	aborted, err := ev.SelectAbortedAnalyses(ctx, s, root)
	if err != nil {
		return err
	}
	if err := e.run(ctx, s, profiler, PlanAnalysesDeletion(aborted)); err != nil {
		return err
	}

	if scopes := conf.scopeNames(); len(scopes) > 0 {
		unpurged, err := ev.SelectUnpurgedAnalyses(ctx, s, root)
		if err != nil {
			return err
		}
		if err := e.run(ctx, s, profiler, PlanHistoricalDataDeletion(unpurged, root, scopes)); err != nil {
			return err
		}
	}

	expired, err := ev.SelectExpiredAnalyses(ctx, s, root)
	if err != nil {
		return err
	}
	if err := e.run(ctx, s, profiler, PlanAnalysesDeletion(expired)); err != nil {
		return err
	}

	unpurged, err := ev.SelectUnpurgedAnalyses(ctx, s, root)
	if err != nil {
		return err
	}
	if err := e.run(ctx, s, profiler, PlanAnalysesPurgeMarking(unpurged)); err != nil {
		return err
	}

	if err := e.purgeDisabledComponents(ctx, s, conf, ev, listener, profiler); err != nil {
		return err
	}

	closedIssues, err := ev.SelectOldClosedIssues(ctx, s, root)
	if err != nil {
		return err
	}
	if len(closedIssues) > 0 {
		if err := e.run(ctx, s, profiler, PlanIssuesDeletion(closedIssues)); err != nil {
			return err
		}
		if err := listener.OnIssuesRemoval(ctx, root, closedIssues); err != nil {
			return &ListenerError{Callback: "OnIssuesRemoval", ProjectUUID: root, Cause: err}
		}
	}

	ce, err := ev.SelectOldCeRecords(ctx, s, now, e.thresholds, root)
	if err != nil {
		return err
	}
	if err := e.run(ctx, s, profiler, PlanCeActivityDeletion(ce.ActivityUUIDs)); err != nil {
		return err
	}
	if err := e.run(ctx, s, profiler, PlanScannerContextDeletion(ce.ScannerContextUUIDs)); err != nil {
		return err
	}

	disabled, err := ev.SelectDisabledComponentsWithoutIssues(ctx, s, root)
	if err != nil {
		return err
	}
	disabledAnalyses, err := e.selectAnalysesOf(ctx, s, disabled)
	if err != nil {
		return err
	}
	if err := e.run(ctx, s, profiler, PlanComponentsDeletion(disabled, disabledAnalyses)); err != nil {
		return err
	}

	stale, err := ev.SelectStaleBranches(ctx, s, conf.ProjectUUID, now)
	if err != nil {
		return err
	}
	for _, branchUUID := range stale {
		logger.Info("deleting stale branch", "branch_uuid", branchUUID)
		if err := e.deleteRootComponent(ctx, s, profiler, branchUUID); err != nil {
			return err
		}
	}

	logger.Info("purge completed",
		"aborted_analyses", len(aborted),
		"expired_analyses", len(expired),
		"closed_issues", len(closedIssues),
		"ce_activities", len(ce.ActivityUUIDs),
		"stale_branches", len(stale),
		"rows", profiler.Rows(),
	)
	profiler.Dump(logger, 10)
	return nil
}

// purgeDisabledComponents handles the configured disabled components, then
// any other disabled component of the root that still owns data. The
// listener hears about each group separately.
func (e *Engine) purgeDisabledComponents(ctx context.Context, s Session, conf Configuration, ev *Evaluator, listener Listener, profiler *Profiler) error {
	root := conf.RootUUID
	now := conf.Now()

	selected := uniqueSorted(conf.DisabledComponentUUIDs)
	if len(selected) > 0 {
		if err := e.run(ctx, s, profiler, PlanDisable(selected, now)); err != nil {
			return err
		}
		if err := listener.OnComponentsDisabling(ctx, root, selected); err != nil {
			return &ListenerError{Callback: "OnComponentsDisabling", ProjectUUID: root, Cause: err}
		}
	}

	leftovers, err := ev.SelectDisabledComponentsWithData(ctx, s, root)
	if err != nil {
		return err
	}
	missed := difference(leftovers, selected)
	if len(missed) == 0 {
		return nil
	}
	if err := e.run(ctx, s, profiler, PlanDisable(missed, now)); err != nil {
		return err
	}
	if err := listener.OnComponentsDisabling(ctx, root, missed); err != nil {
		return &ListenerError{Callback: "OnComponentsDisabling", ProjectUUID: root, Cause: err}
	}
	return nil
}

// DeleteProject deletes the root component rootUUID with everything under
// it. Branches of the project are deleted first.
func (e *Engine) DeleteProject(ctx context.Context, s Session, rootUUID string) (err error) {
	ctx, span := e.startSpan(ctx, "purge.DeleteProject", attribute.String("purge.root_uuid", rootUUID))
	defer func() { endSpan(span, err) }()

	root, err := RequireRoot(ctx, s, rootUUID)
	if err != nil {
		return err
	}
	profiler := NewProfiler(e.observer)

	var branches []string
	err = sqlx.SelectContext(ctx, s, &branches,
		`SELECT uuid FROM project_branches WHERE project_uuid = ? AND uuid <> ? ORDER BY uuid`, root.UUID, root.UUID)
	if err != nil {
		return fmt.Errorf("select branches of %s: %w", root.UUID, err)
	}
	for _, b := range branches {
		if err := e.deleteRootComponent(ctx, s, profiler, b); err != nil {
			return err
		}
	}
	if err := e.deleteRootComponent(ctx, s, profiler, root.UUID); err != nil {
		return err
	}

	e.logger.Info("project deleted", "root_uuid", root.UUID, "branches", len(branches), "rows", profiler.Rows())
	profiler.Dump(e.logger, 10)
	return nil
}

// DeleteBranch deletes a non-main branch or pull request.
func (e *Engine) DeleteBranch(ctx context.Context, s Session, branchUUID string) (err error) {
	ctx, span := e.startSpan(ctx, "purge.DeleteBranch", attribute.String("purge.root_uuid", branchUUID))
	defer func() { endSpan(span, err) }()

	if _, err := RequireRoot(ctx, s, branchUUID); err != nil {
		return err
	}
	var branchType []string
	err = sqlx.SelectContext(ctx, s, &branchType, `SELECT branch_type FROM project_branches WHERE uuid = ?`, branchUUID)
	if err != nil {
		return fmt.Errorf("select branch %s: %w", branchUUID, err)
	}
	if len(branchType) == 0 {
		return newInvalidArgument("branch_uuid", branchUUID, "Couldn't find branch with uuid %s", branchUUID)
	}
	if BranchType(branchType[0]) == BranchTypeMain {
		return newInvalidArgument("branch_uuid", branchUUID, "branch %s is a main branch, delete the project instead", branchUUID)
	}

	profiler := NewProfiler(e.observer)
	if err := e.deleteRootComponent(ctx, s, profiler, branchUUID); err != nil {
		return err
	}
	e.logger.Info("branch deleted", "branch_uuid", branchUUID, "rows", profiler.Rows())
	return nil
}

func (e *Engine) deleteRootComponent(ctx context.Context, s Session, profiler *Profiler, rootUUID string) error {
	keys, err := e.resolveRootKeys(ctx, s, rootUUID)
	if err != nil {
		return err
	}
	return e.run(ctx, s, profiler, PlanRootDeletion(keys))
}

func (e *Engine) resolveRootKeys(ctx context.Context, s Session, rootUUID string) (RootKeys, error) {
	keys := RootKeys{RootUUID: rootUUID}

	descendants, err := Descendants(ctx, s, rootUUID)
	if err != nil {
		return keys, err
	}
	keys.ComponentUUIDs = uuidsOf(descendants)

	lookups := []struct {
		dest  *[]string
		what  string
		query string
		args  []any
	}{
		{&keys.AnalysisUUIDs, "analyses",
			`SELECT s.uuid FROM snapshots s
			 WHERE s.component_uuid IN (SELECT uuid FROM components WHERE root_uuid = ?)
			 ORDER BY s.uuid`,
			[]any{rootUUID}},
		{&keys.TaskUUIDs, "ce tasks",
			`SELECT uuid FROM ce_activity WHERE component_uuid = ? OR main_component_uuid = ?
			 UNION
			 SELECT uuid FROM ce_queue WHERE component_uuid = ? OR main_component_uuid = ?
			 ORDER BY 1`,
			[]any{rootUUID, rootUUID, rootUUID, rootUUID}},
		{&keys.IssueKeys, "issues",
			`SELECT kee FROM issues
			 WHERE project_uuid = ? OR component_uuid IN (SELECT uuid FROM components WHERE root_uuid = ?)
			 ORDER BY kee`,
			[]any{rootUUID, rootUUID}},
		{&keys.WebhookUUIDs, "webhooks",
			`SELECT uuid FROM webhooks WHERE project_uuid = ? ORDER BY uuid`,
			[]any{rootUUID}},
	}
	for _, l := range lookups {
		if err := sqlx.SelectContext(ctx, s, l.dest, l.query, l.args...); err != nil {
			return keys, fmt.Errorf("select %s of %s: %w", l.what, rootUUID, err)
		}
	}
	return keys, nil
}

// DeleteNonRootComponentsInView deletes the given descendants of a view.
// Roots in the input are ignored; unknown uuids are rejected.
func (e *Engine) DeleteNonRootComponentsInView(ctx context.Context, s Session, componentUUIDs []string) (err error) {
	uuids := uniqueSorted(componentUUIDs)
	if len(uuids) == 0 {
		return nil
	}

	ctx, span := e.startSpan(ctx, "purge.DeleteNonRootComponentsInView", attribute.Int("purge.components", len(uuids)))
	defer func() { endSpan(span, err) }()

	components, err := e.selectComponents(ctx, s, uuids)
	if err != nil {
		return err
	}
	found := make(map[string]Component, len(components))
	for _, c := range components {
		found[c.UUID] = c
	}

	var nonRoots, subviewsOrModules []string
	for _, u := range uuids {
		c, ok := found[u]
		if !ok {
			return newInvalidArgument("component_uuids", u, "Couldn't find component with uuid %s", u)
		}
		if c.IsRoot() {
			continue
		}
		nonRoots = append(nonRoots, u)
		if c.Scope == ScopeSubview || c.Scope == ScopeModule {
			subviewsOrModules = append(subviewsOrModules, u)
		}
	}
	if len(nonRoots) == 0 {
		return nil
	}

	analyses, err := e.selectAnalysesOf(ctx, s, nonRoots)
	if err != nil {
		return err
	}
	return e.run(ctx, s, NewProfiler(e.observer), PlanViewComponentsDeletion(nonRoots, subviewsOrModules, analyses))
}

func (e *Engine) selectComponents(ctx context.Context, s Session, uuids []string) ([]Component, error) {
	size, err := e.executor.ChunkSize(0)
	if err != nil {
		return nil, err
	}
	var out []Component
	for _, chunk := range Partition(uuids, size) {
		query, args, err := sqlx.In(`SELECT `+componentColumns+` FROM components c WHERE c.uuid IN (?)`, chunk)
		if err != nil {
			return nil, err
		}
		var part []Component
		if err := sqlx.SelectContext(ctx, s, &part, s.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("select components: %w", err)
		}
		out = append(out, part...)
	}
	return out, nil
}

// selectAnalysesOf returns the uuids of the analyses owned by the given
// components.
func (e *Engine) selectAnalysesOf(ctx context.Context, s Session, componentUUIDs []string) ([]string, error) {
	size, err := e.executor.ChunkSize(0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, chunk := range Partition(componentUUIDs, size) {
		query, args, err := sqlx.In(`SELECT uuid FROM snapshots WHERE component_uuid IN (?) ORDER BY uuid`, chunk)
		if err != nil {
			return nil, err
		}
		var part []string
		if err := sqlx.SelectContext(ctx, s, &part, s.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("select analyses of components: %w", err)
		}
		out = append(out, part...)
	}
	return out, nil
}

// DeleteAnalyses deletes analyses and the records they own. Unknown uuids
// are ignored, so the call can be repeated safely.
func (e *Engine) DeleteAnalyses(ctx context.Context, s Session, profiler *Profiler, analysisUUIDs []string) (err error) {
	uuids := uniqueSorted(analysisUUIDs)
	if len(uuids) == 0 {
		return nil
	}

	ctx, span := e.startSpan(ctx, "purge.DeleteAnalyses", attribute.Int("purge.analyses", len(uuids)))
	defer func() { endSpan(span, err) }()

	return e.run(ctx, s, e.profilerOrNew(profiler), PlanAnalysesDeletion(uuids))
}

// PurgeCeActivities deletes, across all projects, CE activities older than
// the activity threshold together with their child records.
func (e *Engine) PurgeCeActivities(ctx context.Context, s Session, profiler *Profiler) (err error) {
	ctx, span := e.startSpan(ctx, "purge.PurgeCeActivities")
	defer func() { endSpan(span, err) }()

	before := e.clock.Now().AddDate(0, 0, -e.thresholds.ActivityMaxAgeDays)
	uuids, err := selectOldCeActivities(ctx, s, before, "")
	if err != nil {
		return err
	}
	if err := e.run(ctx, s, e.profilerOrNew(profiler), PlanCeActivityDeletion(uuids)); err != nil {
		return err
	}
	e.logger.Info("ce activities purged", "count", len(uuids))
	return nil
}

// PurgeCeScannerContexts deletes, across all projects, scanner contexts
// older than the scanner context threshold.
func (e *Engine) PurgeCeScannerContexts(ctx context.Context, s Session, profiler *Profiler) (err error) {
	ctx, span := e.startSpan(ctx, "purge.PurgeCeScannerContexts")
	defer func() { endSpan(span, err) }()

	before := e.clock.Now().AddDate(0, 0, -e.thresholds.ScannerContextMaxAgeDays)
	uuids, err := selectOldScannerContexts(ctx, s, before, "")
	if err != nil {
		return err
	}
	if err := e.run(ctx, s, e.profilerOrNew(profiler), PlanScannerContextDeletion(uuids)); err != nil {
		return err
	}
	e.logger.Info("ce scanner contexts purged", "count", len(uuids))
	return nil
}

func (e *Engine) run(ctx context.Context, s Session, profiler *Profiler, plan Plan) error {
	if plan.Empty() {
		return nil
	}
	result, err := e.executor.Run(ctx, s, profiler, plan)
	if err != nil {
		return err
	}
	e.logger.Debug("plan executed", "plan", plan.Name, "rows", result.Rows)
	return nil
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func difference(in, exclude []string) []string {
	if len(exclude) == 0 {
		return in
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, v := range exclude {
		skip[v] = struct{}{}
	}
	var out []string
	for _, v := range in {
		if _, ok := skip[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
