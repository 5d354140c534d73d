package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/sweeper/pkg/config"
)

// Scheduler runs the housekeeping jobs on their cron schedules.
type Scheduler struct {
	sweeper *Sweeper
	config  config.HousekeepingConfig
	cron    *cron.Cron
	entries map[string]cron.EntryID
	mu      sync.Mutex
	logger  *slog.Logger
	running bool

	// stopWatch unregisters the Stop call tied to the context of the last
	// Start.
	stopWatch func() bool
}

// NewScheduler creates a scheduler for the jobs of sweeper.
func NewScheduler(sweeper *Sweeper, cfg config.HousekeepingConfig) *Scheduler {
	return &Scheduler{
		sweeper: sweeper,
		config:  cfg,
		cron:    newCron(),
		entries: make(map[string]cron.EntryID),
		logger:  slog.Default().With("component", "housekeeping.scheduler"),
	}
}

// A run still in progress when its next tick fires is not started twice.
func newCron() *cron.Cron {
	return cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
}

func (s *Scheduler) schedules() map[string]string {
	return map[string]string{
		JobProjects: s.config.ProjectSweepSchedule,
		JobCe:       s.config.CeSchedule,
	}
}

// Start schedules the jobs with standard five-field cron expressions:
//   - "0 2 * * *"    - Daily at 2 AM
//   - "0 */6 * * *"  - Every 6 hours
//
// A job with an empty schedule is not scheduled. When housekeeping is
// disabled or no job has a schedule, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("housekeeping disabled, skipping scheduler")
		return nil
	}

	schedules := s.schedules()
	for _, job := range Jobs {
		spec := schedules[job]
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, job, err)
		}
	}

	timeout := s.config.RunTimeout
	for _, job := range Jobs {
		spec := schedules[job]
		if spec == "" {
			s.logger.Info("job schedule not configured, skipping", "job", job)
			continue
		}
		id, err := s.cron.AddFunc(spec, func() {
			s.runScheduled(ctx, job, timeout)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job, err)
		}
		s.entries[job] = id
	}

	if len(s.entries) == 0 {
		s.logger.Info("no housekeeping job scheduled")
		return nil
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("housekeeping scheduler started",
		"project_sweep_schedule", s.config.ProjectSweepSchedule,
		"ce_schedule", s.config.CeSchedule,
		"run_timeout", s.config.RunTimeout,
	)

	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.stopWatch = context.AfterFunc(ctx, s.Stop)

	return nil
}

// runScheduled executes one tick of job. It does not take the lock, which
// Stop holds while waiting for running jobs.
func (s *Scheduler) runScheduled(ctx context.Context, job string, timeout time.Duration) {
	s.logger.Info("starting scheduled housekeeping", "job", job)

	report, err := s.run(ctx, job, timeout)
	if err != nil {
		s.logger.Error("scheduled housekeeping failed",
			"job", job,
			"run_id", report.RunID,
			"failed_roots", report.Failed(),
			"error", err,
		)
		return
	}

	s.logger.Info("scheduled housekeeping completed",
		"job", job,
		"run_id", report.RunID,
		"duration", report.Duration,
		"rows", report.Rows,
	)
}

// RunNow runs job immediately, bounded by the configured run timeout.
func (s *Scheduler) RunNow(ctx context.Context, job string) (Report, error) {
	s.mu.Lock()
	timeout := s.config.RunTimeout
	s.mu.Unlock()

	return s.run(ctx, job, timeout)
}

func (s *Scheduler) run(ctx context.Context, job string, timeout time.Duration) (Report, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.sweeper.Run(ctx, job)
}

// Stop stops the scheduler and waits for any running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("housekeeping scheduler stopped")
	}
}

// Reschedule replaces the schedules with cfg. Running jobs finish first.
// From then on the scheduler stops when ctx is done.
func (s *Scheduler) Reschedule(ctx context.Context, cfg config.HousekeepingConfig) error {
	s.mu.Lock()
	s.stopLocked()
	s.config = cfg
	s.cron = newCron()
	s.entries = make(map[string]cron.EntryID)
	s.mu.Unlock()

	return s.Start(ctx)
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled time of job, or nil when the job is
// not scheduled.
func (s *Scheduler) NextRun(job string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	id, ok := s.entries[job]
	if !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}
