package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/cli"
	"mercator-hq/sweeper/pkg/housekeeping"
	"mercator-hq/sweeper/pkg/purge"
	"mercator-hq/sweeper/pkg/telemetry/logging"
)

var purgeFlags struct {
	root     string
	project  string
	disabled []string
	all      bool
	progress bool
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Apply the retention rules to a branch or view",
	Long: `Apply the configured retention rules to one root component.

A purge deletes aborted and expired analyses, drops the history of metrics
flagged for historical data deletion, cleans disabled components, deletes
old closed issues and compute engine records, and removes the branches of
the project that have been inactive for too long. Everything happens in one
transaction: on error nothing is changed.

Examples:
  # Purge the main branch of a project
  sweeper purge --root 1a2b...

  # Purge a branch and report components the analyzer no longer sees
  sweeper purge --root 7f3c... --disabled 9e8d...,5c4b...

  # Purge every branch and view, one transaction each
  sweeper purge --all --progress`,
	RunE: withApp(runPurge),
}

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().StringVar(&purgeFlags.root, "root", "", "root component uuid (branch or view)")
	purgeCmd.Flags().StringVar(&purgeFlags.project, "project", "", "project uuid (resolved from the root when empty)")
	purgeCmd.Flags().StringSliceVar(&purgeFlags.disabled, "disabled", nil, "uuids of components to disable")
	purgeCmd.Flags().BoolVar(&purgeFlags.all, "all", false, "purge every branch and view")
	purgeCmd.Flags().BoolVar(&purgeFlags.progress, "progress", false, "show progress on stderr with --all")
	purgeCmd.MarkFlagsMutuallyExclusive("root", "all")
	purgeCmd.MarkFlagsOneRequired("root", "all")
}

// purgeResult is the outcome of a single-root purge.
type purgeResult struct {
	RootUUID    string            `json:"root_uuid"`
	ProjectUUID string            `json:"project_uuid"`
	TotalRows   int64             `json:"rows"`
	Steps       []purge.StepTotal `json:"steps"`
}

func (r purgeResult) Header() []string { return []string{"STEP", "BATCHES", "ROWS", "ELAPSED"} }

func (r purgeResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		rows = append(rows, []string{s.Step, strconv.Itoa(s.Batches), strconv.FormatInt(s.Rows, 10), s.Elapsed.String()})
	}
	return rows
}

func (r purgeResult) Summary() string {
	return fmt.Sprintf("purged root %s of project %s: %d rows in %d steps", r.RootUUID, r.ProjectUUID, r.TotalRows, len(r.Steps))
}

// sweepResult is the outcome of a purge --all.
type sweepResult struct {
	RunID     string       `json:"run_id"`
	Roots     int          `json:"roots"`
	Purged    int          `json:"purged"`
	TotalRows int64        `json:"rows"`
	Failures  []rootResult `json:"failures,omitempty"`
}

type rootResult struct {
	RootUUID    string `json:"root_uuid"`
	ProjectUUID string `json:"project_uuid"`
	Error       string `json:"error"`
}

func newSweepResult(report housekeeping.Report) sweepResult {
	res := sweepResult{RunID: report.RunID, Roots: report.Roots, Purged: report.Purged, TotalRows: report.Rows}
	for _, f := range report.Failures {
		res.Failures = append(res.Failures, rootResult{
			RootUUID:    f.Root.UUID,
			ProjectUUID: f.Root.ProjectUUID,
			Error:       f.Error.Error(),
		})
	}
	return res
}

func (r sweepResult) Header() []string { return []string{"ROOT", "PROJECT", "ERROR"} }

func (r sweepResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		rows = append(rows, []string{f.RootUUID, f.ProjectUUID, f.Error})
	}
	return rows
}

func (r sweepResult) Summary() string {
	return fmt.Sprintf("run %s: purged %d of %d roots, %d rows, %d failed", r.RunID, r.Purged, r.Roots, r.TotalRows, len(r.Failures))
}

func runPurge(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	if purgeFlags.all {
		var opts []housekeeping.Option
		if purgeFlags.progress {
			opts = append(opts, housekeeping.WithProgress(cli.NewProgressReporter(cmd.ErrOrStderr())))
		}
		report, err := a.sweeper(opts...).SweepProjects(ctx)
		if perr := a.print(cmd, newSweepResult(report)); perr != nil {
			return perr
		}
		if err != nil {
			return cli.NewCommandError("purge", err)
		}
		return nil
	}

	ctx = logging.WithRunID(ctx, newRunID())
	ctx = logging.WithRoot(ctx, purgeFlags.root)

	engine := a.engine()
	profiler := purge.NewProfiler(a.tel.Metrics())
	res := purgeResult{RootUUID: purgeFlags.root, ProjectUUID: purgeFlags.project}

	err := a.operation(ctx, "purge", func(tx *sqlx.Tx) error {
		root, err := purge.RequireRoot(ctx, tx, purgeFlags.root)
		if err != nil {
			return err
		}
		if res.ProjectUUID == "" {
			res.ProjectUUID = projectOf(root)
		}

		conf := a.cfg.PurgeConfiguration(root.UUID, res.ProjectUUID)
		conf.DisabledComponentUUIDs = purgeFlags.disabled
		listener := purge.NewLoggingListener(a.tel.Logger().Slog())
		return engine.Purge(logging.WithProject(ctx, res.ProjectUUID), tx, conf, listener, profiler)
	})
	if err != nil {
		return err
	}

	res.TotalRows = profiler.Rows()
	res.Steps = profiler.Totals()
	return a.print(cmd, res)
}

// projectOf returns the project owning a root: the project of a branch, or
// the root itself for a main branch or a view.
func projectOf(root purge.Component) string {
	if root.MainBranchProjectUUID != "" {
		return root.MainBranchProjectUUID
	}
	return root.UUID
}
