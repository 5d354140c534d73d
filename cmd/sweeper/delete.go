package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/cli"
	"mercator-hq/sweeper/pkg/purge"
	"mercator-hq/sweeper/pkg/telemetry/logging"
)

var deleteFlags struct {
	yes bool
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete projects, branches, analyses or view components",
	Long: `Delete data together with every row that depends on it.

Each deletion runs in one transaction and requires --yes.

Subcommands:
  project          - Delete a project or view with all its branches
  branch           - Delete a non-main branch or pull request
  analyses         - Delete analyses and the records they own
  view-components  - Delete sub-views and project copies of a view

Examples:
  sweeper delete project 1a2b... --yes
  sweeper delete branch 7f3c... --yes
  sweeper delete analyses 0c1d... 2e3f... --yes`,
}

var deleteProjectCmd = &cobra.Command{
	Use:   "project ROOT_UUID",
	Short: "Delete a project or view with all its branches",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		return runDelete(ctx, cmd, a, "delete_project", args, func(ctx context.Context, e *purge.Engine, tx *sqlx.Tx) error {
			return e.DeleteProject(ctx, tx, args[0])
		})
	}),
}

var deleteBranchCmd = &cobra.Command{
	Use:   "branch BRANCH_UUID",
	Short: "Delete a non-main branch or pull request",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		return runDelete(ctx, cmd, a, "delete_branch", args, func(ctx context.Context, e *purge.Engine, tx *sqlx.Tx) error {
			return e.DeleteBranch(ctx, tx, args[0])
		})
	}),
}

var deleteAnalysesCmd = &cobra.Command{
	Use:   "analyses ANALYSIS_UUID...",
	Short: "Delete analyses and the records they own",
	Long: `Delete analyses with their measures, events, duplications and
scanner data. Unknown uuids are ignored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		return runDelete(ctx, cmd, a, "delete_analyses", args, func(ctx context.Context, e *purge.Engine, tx *sqlx.Tx) error {
			return e.DeleteAnalyses(ctx, tx, purge.NewProfiler(a.tel.Metrics()), args)
		})
	}),
}

var deleteViewComponentsCmd = &cobra.Command{
	Use:   "view-components COMPONENT_UUID...",
	Short: "Delete sub-views and project copies of a view",
	Long: `Delete descendants of a view. Root components in the list are
skipped and unknown uuids are rejected.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		return runDelete(ctx, cmd, a, "delete_view_components", args, func(ctx context.Context, e *purge.Engine, tx *sqlx.Tx) error {
			return e.DeleteNonRootComponentsInView(ctx, tx, args)
		})
	}),
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.AddCommand(deleteProjectCmd, deleteBranchCmd, deleteAnalysesCmd, deleteViewComponentsCmd)

	deleteCmd.PersistentFlags().BoolVarP(&deleteFlags.yes, "yes", "y", false, "confirm the deletion")
}

// deleteResult reports a finished deletion.
type deleteResult struct {
	Operation string   `json:"operation"`
	UUIDs     []string `json:"uuids"`
}

func (r deleteResult) Header() []string { return []string{"OPERATION", "UUID"} }

func (r deleteResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.UUIDs))
	for _, u := range r.UUIDs {
		rows = append(rows, []string{r.Operation, u})
	}
	return rows
}

func (r deleteResult) Summary() string {
	return fmt.Sprintf("%s: %s", strings.ReplaceAll(r.Operation, "_", " "), strings.Join(r.UUIDs, ", "))
}

func runDelete(ctx context.Context, cmd *cobra.Command, a *app, operation string, uuids []string,
	fn func(ctx context.Context, e *purge.Engine, tx *sqlx.Tx) error) error {
	if !deleteFlags.yes {
		return cli.NewConfigError("yes", "refusing to delete without --yes")
	}

	ctx = logging.WithRunID(ctx, newRunID())
	ctx = logging.WithOperation(ctx, operation)
	engine := a.engine()

	if err := a.operation(ctx, operation, func(tx *sqlx.Tx) error {
		return fn(ctx, engine, tx)
	}); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "deletion committed", "uuids", len(uuids))
	return a.print(cmd, deleteResult{Operation: operation, UUIDs: uuids})
}
