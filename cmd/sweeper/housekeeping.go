package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/cli"
	"mercator-hq/sweeper/pkg/housekeeping"
)

var housekeepingFlags struct {
	progress bool
}

var housekeepingCmd = &cobra.Command{
	Use:   "housekeeping",
	Short: "Run or inspect the background sweeps",
	Long: `Run or inspect the housekeeping jobs that "sweeper serve" schedules.

Jobs:
  projects  - Purge every branch and view, one transaction each
  ce        - Delete old compute engine activities and scanner contexts

Examples:
  sweeper housekeeping run ce
  sweeper housekeeping run projects --progress
  sweeper housekeeping schedule`,
}

var housekeepingRunCmd = &cobra.Command{
	Use:       "run JOB",
	Short:     "Run a housekeeping job now",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: housekeeping.Jobs,
	RunE:      withApp(runHousekeeping),
}

var housekeepingScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the next run of each housekeeping job",
	Args:  cobra.NoArgs,
	RunE:  withApp(runSchedule),
}

func init() {
	rootCmd.AddCommand(housekeepingCmd)
	housekeepingCmd.AddCommand(housekeepingRunCmd, housekeepingScheduleCmd)

	housekeepingRunCmd.Flags().BoolVar(&housekeepingFlags.progress, "progress", false, "show progress on stderr for the projects job")
}

func runHousekeeping(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	job := args[0]

	var opts []housekeeping.Option
	if housekeepingFlags.progress && job == housekeeping.JobProjects {
		opts = append(opts, housekeeping.WithProgress(cli.NewProgressReporter(cmd.ErrOrStderr())))
	}

	scheduler := housekeeping.NewScheduler(a.sweeper(opts...), a.cfg.Housekeeping)
	report, err := scheduler.RunNow(ctx, job)
	if perr := a.print(cmd, newSweepResult(report)); perr != nil {
		return perr
	}
	if err != nil {
		return cli.NewCommandError("housekeeping "+job, err)
	}
	return nil
}

type scheduleEntry struct {
	Job      string     `json:"job"`
	Schedule string     `json:"schedule"`
	NextRun  *time.Time `json:"next_run,omitempty"`
}

type scheduleResult struct {
	Enabled bool            `json:"enabled"`
	Jobs    []scheduleEntry `json:"jobs"`
}

func (r scheduleResult) Header() []string { return []string{"JOB", "SCHEDULE", "NEXT RUN"} }

func (r scheduleResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		next := "-"
		if j.NextRun != nil {
			next = j.NextRun.Format(time.RFC3339)
		}
		schedule := j.Schedule
		if schedule == "" {
			schedule = "-"
		}
		rows = append(rows, []string{j.Job, schedule, next})
	}
	return rows
}

func (r scheduleResult) Summary() string {
	if !r.Enabled {
		return "housekeeping disabled"
	}
	scheduled := make([]string, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		if j.NextRun != nil {
			scheduled = append(scheduled, j.Job)
		}
	}
	return fmt.Sprintf("housekeeping enabled, scheduled: %s", strings.Join(scheduled, ", "))
}

func runSchedule(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	hk := a.cfg.Housekeeping
	scheduler := housekeeping.NewScheduler(a.sweeper(), hk)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("housekeeping", err.Error())
	}
	defer scheduler.Stop()

	specs := map[string]string{
		housekeeping.JobProjects: hk.ProjectSweepSchedule,
		housekeeping.JobCe:       hk.CeSchedule,
	}
	res := scheduleResult{Enabled: hk.Enabled}
	for _, job := range housekeeping.Jobs {
		res.Jobs = append(res.Jobs, scheduleEntry{Job: job, Schedule: specs[job], NextRun: scheduler.NextRun(job)})
	}
	return a.print(cmd, res)
}
