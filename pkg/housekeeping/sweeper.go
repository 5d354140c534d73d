package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/sweeper/pkg/config"
	"mercator-hq/sweeper/pkg/purge"
	"mercator-hq/sweeper/pkg/store"
	"mercator-hq/sweeper/pkg/telemetry/logging"
	"mercator-hq/sweeper/pkg/telemetry/tracing"
)

// Job names.
const (
	JobProjects = "projects"
	JobCe       = "ce"
)

// Jobs lists the known jobs in scheduling order.
var Jobs = []string{JobProjects, JobCe}

// Recorder receives the outcome of every run. *metrics.Collector
// implements it.
type Recorder interface {
	RecordSweep(job string, duration time.Duration, err error)
	RecordSweepProjects(purged, failed int)
}

// Tracker remembers the last outcome of each job. *health.SweepTracker
// implements it.
type Tracker interface {
	Record(job string, at time.Time, err error)
}

// Progress follows a projects sweep root by root. *cli.SimpleProgress
// implements it.
type Progress interface {
	Start(total int64)
	Update(current int64)
	Finish()
}

// Root is a purgeable root component: a branch of a project or a view.
type Root struct {
	UUID        string `db:"root_uuid" json:"root_uuid"`
	ProjectUUID string `db:"project_uuid" json:"project_uuid"`
	Kind        string `db:"kind" json:"kind"`
	Rank        int    `db:"rank" json:"-"`
}

// RootFailure is a root whose purge was rolled back.
type RootFailure struct {
	Root  Root
	Error error
}

// Report summarizes one run of a job.
type Report struct {
	RunID    string
	Job      string
	Started  time.Time
	Duration time.Duration
	Roots    int
	Purged   int
	Rows     int64
	Failures []RootFailure
}

// Failed returns the number of roots that failed.
func (r Report) Failed() int {
	return len(r.Failures)
}

// Sweeper runs the housekeeping jobs against the analysis store. Each run
// reads the current configuration, so a reload applies from the next run.
type Sweeper struct {
	store    *store.Store
	config   func() *config.Config
	listener purge.Listener
	recorder Recorder
	tracker  Tracker
	observer purge.StepObserver
	progress Progress
	tracer   trace.Tracer
	clock    purge.Clock
	logger   *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer of run spans. The engine shares it.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Sweeper) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithListener sets the listener notified by project purges.
func WithListener(l purge.Listener) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.listener = l
		}
	}
}

// WithRecorder sets the run metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.recorder = r }
}

// WithTracker sets the last-outcome tracker read by the readiness check.
func WithTracker(t Tracker) Option {
	return func(s *Sweeper) { s.tracker = t }
}

// WithObserver sets the purge step observer.
func WithObserver(o purge.StepObserver) Option {
	return func(s *Sweeper) { s.observer = o }
}

// WithProgress sets the progress reporter of projects sweeps.
func WithProgress(p Progress) Option {
	return func(s *Sweeper) { s.progress = p }
}

// WithClock sets the clock of purge thresholds.
func WithClock(c purge.Clock) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewSweeper creates a sweeper. cfg is called at the start of every run.
func NewSweeper(st *store.Store, cfg func() *config.Config, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    st,
		config:   cfg,
		listener: purge.NopListener{},
		tracer:   noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		clock:    purge.SystemClock,
		logger:   slog.Default().With("component", "housekeeping.sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// engine builds a purge engine from the current configuration.
func (s *Sweeper) engine(cfg *config.Config) *purge.Engine {
	opts := append(cfg.EngineOptions(),
		purge.WithLogger(s.logger),
		purge.WithTracer(s.tracer),
		purge.WithClock(s.clock),
	)
	if s.observer != nil {
		opts = append(opts, purge.WithObserver(s.observer))
	}
	return purge.NewEngine(opts...)
}

// Run runs job by name.
func (s *Sweeper) Run(ctx context.Context, job string) (Report, error) {
	switch job {
	case JobProjects:
		return s.SweepProjects(ctx)
	case JobCe:
		return s.SweepCe(ctx)
	default:
		return Report{Job: job}, fmt.Errorf("unknown housekeeping job %q", job)
	}
}

// ListRoots returns every enabled branch and view, main branches first
// within a project.
func (s *Sweeper) ListRoots(ctx context.Context) ([]Root, error) {
	return listRoots(ctx, s.store.DB())
}

func listRoots(ctx context.Context, db sqlx.QueryerContext) ([]Root, error) {
	var roots []Root
	err := sqlx.SelectContext(ctx, db, &roots, `
SELECT pb.uuid AS root_uuid, pb.project_uuid AS project_uuid, pb.branch_type AS kind,
       CASE pb.branch_type WHEN 'MAIN' THEN 0 ELSE 1 END AS rank
FROM project_branches pb
JOIN components c ON c.uuid = pb.uuid
WHERE c.enabled = 1
UNION ALL
SELECT c.uuid AS root_uuid, c.uuid AS project_uuid, 'VIEW' AS kind, 0 AS rank
FROM components c
WHERE c.scope = 'VIEW' AND c.parent_uuid IS NULL AND c.enabled = 1
ORDER BY project_uuid, rank, root_uuid`)
	if err != nil {
		return nil, fmt.Errorf("list purgeable roots: %w", err)
	}
	return roots, nil
}

// begin opens the span and log context of a run.
func (s *Sweeper) begin(ctx context.Context, job string) (context.Context, trace.Span, Report) {
	report := Report{
		RunID:   uuid.NewString(),
		Job:     job,
		Started: time.Now(),
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	ctx = logging.WithOperation(ctx, "housekeeping."+job)
	ctx, span := s.tracer.Start(ctx, "housekeeping."+job,
		trace.WithAttributes(tracing.SweepAttributes(job, report.RunID)...))
	return ctx, span, report
}

// finish records the outcome of a run.
func (s *Sweeper) finish(span trace.Span, report *Report, err error) {
	report.Duration = time.Since(report.Started)
	tracing.SetStatus(span, err)
	span.End()

	if s.recorder != nil {
		s.recorder.RecordSweep(report.Job, report.Duration, err)
	}
	if s.tracker != nil {
		s.tracker.Record(report.Job, report.Started.Add(report.Duration), err)
	}
}

// SweepProjects purges every root, each in its own transaction. A failing
// root is rolled back and logged and the sweep moves on; the returned error
// joins every failure.
func (s *Sweeper) SweepProjects(ctx context.Context) (report Report, err error) {
	ctx, span, report := s.begin(ctx, JobProjects)
	defer func() { s.finish(span, &report, err) }()

	cfg := s.config()
	engine := s.engine(cfg)

	roots, err := s.ListRoots(ctx)
	if err != nil {
		return report, err
	}
	report.Roots = len(roots)
	s.logger.InfoContext(ctx, "project sweep started", "roots", len(roots))

	if s.progress != nil {
		s.progress.Start(int64(len(roots)))
		defer s.progress.Finish()
	}

	var errs []error
	for i, root := range roots {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		rctx := logging.WithRoot(logging.WithProject(ctx, root.ProjectUUID), root.UUID)
		conf := cfg.PurgeConfiguration(root.UUID, root.ProjectUUID)
		conf.Clock = s.clock
		profiler := purge.NewProfiler(s.observer)

		err := s.store.InTx(rctx, func(tx *sqlx.Tx) error {
			return engine.Purge(rctx, tx, conf, s.listener, profiler)
		})
		if s.progress != nil {
			s.progress.Update(int64(i + 1))
		}
		if err != nil {
			s.logger.ErrorContext(rctx, "purge failed, rolled back", "kind", root.Kind, "error", err)
			report.Failures = append(report.Failures, RootFailure{Root: root, Error: err})
			errs = append(errs, fmt.Errorf("root %s: %w", root.UUID, err))
			continue
		}
		report.Purged++
		report.Rows += profiler.Rows()
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrProjects, report.Roots),
		attribute.Int(tracing.AttrFailed, report.Failed()),
	)
	if s.recorder != nil {
		s.recorder.RecordSweepProjects(report.Purged, report.Failed())
	}

	s.logger.InfoContext(ctx, "project sweep finished",
		"roots", report.Roots,
		"purged", report.Purged,
		"failed", report.Failed(),
		"rows", report.Rows,
	)

	if len(errs) > 0 {
		return report, fmt.Errorf("%d of %d roots not purged: %w", len(errs), report.Roots, errors.Join(errs...))
	}
	return report, nil
}

// SweepCe deletes old compute engine activities and scanner contexts of
// every project in one transaction.
func (s *Sweeper) SweepCe(ctx context.Context) (report Report, err error) {
	ctx, span, report := s.begin(ctx, JobCe)
	defer func() { s.finish(span, &report, err) }()

	engine := s.engine(s.config())
	profiler := purge.NewProfiler(s.observer)

	err = s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := engine.PurgeCeActivities(ctx, tx, profiler); err != nil {
			return err
		}
		return engine.PurgeCeScannerContexts(ctx, tx, profiler)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "compute engine cleanup failed", "error", err)
		return report, err
	}

	report.Rows = profiler.Rows()
	s.logger.InfoContext(ctx, "compute engine cleanup finished", "rows", report.Rows)
	return report, nil
}
