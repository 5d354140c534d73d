package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/purge"
)

var branchesCmd = &cobra.Command{
	Use:   "branches PROJECT_UUID",
	Short: "List the branches of a project",
	Long: `List the branches and pull requests of a project with their last
analysis date and whether they are excluded from purge.

Example:
  sweeper branches 1a2b... -o csv`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runBranches),
}

func init() {
	rootCmd.AddCommand(branchesCmd)
}

type branchesResult struct {
	ProjectUUID string         `json:"project_uuid"`
	Branches    []purge.Branch `json:"branches"`
}

func (r branchesResult) Header() []string {
	return []string{"UUID", "KEY", "TYPE", "EXCLUDED", "LAST ANALYSIS"}
}

func (r branchesResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Branches))
	for _, b := range r.Branches {
		rows = append(rows, []string{
			b.UUID,
			b.Key,
			string(b.Type),
			strconv.FormatBool(b.ExcludeFromPurge),
			b.LastAnalysis().UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func (r branchesResult) Summary() string {
	return fmt.Sprintf("%d branches in project %s", len(r.Branches), r.ProjectUUID)
}

func runBranches(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	res := branchesResult{ProjectUUID: args[0]}

	err := a.operation(ctx, "list_branches", func(tx *sqlx.Tx) error {
		var err error
		res.Branches, err = purge.ProjectBranches(ctx, tx, args[0])
		return err
	})
	if err != nil {
		return err
	}
	return a.print(cmd, res)
}
