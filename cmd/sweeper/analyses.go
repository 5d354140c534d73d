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

var analysesFlags struct {
	root    string
	project string
}

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "List the analyses the retention rules consider",
	Long: `List the processed analyses of a root component with the flags the
retention rules look at: whether the analysis is the last one, whether it
carries events and which version it names. Nothing is deleted.

Examples:
  sweeper analyses --root 1a2b...
  sweeper analyses --root 1a2b... -o json`,
	RunE: withApp(runAnalyses),
}

func init() {
	rootCmd.AddCommand(analysesCmd)

	analysesCmd.Flags().StringVar(&analysesFlags.root, "root", "", "root component uuid (branch or view)")
	analysesCmd.Flags().StringVar(&analysesFlags.project, "project", "", "project uuid (resolved from the root when empty)")
	_ = analysesCmd.MarkFlagRequired("root")
}

type analysesResult struct {
	RootUUID string                    `json:"root_uuid"`
	Analyses []purge.PurgeableAnalysis `json:"analyses"`
}

func (r analysesResult) Header() []string {
	return []string{"ANALYSIS", "DATE", "LAST", "EVENTS", "VERSION"}
}

func (r analysesResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Analyses))
	for _, a := range r.Analyses {
		rows = append(rows, []string{
			a.AnalysisUUID,
			a.Date().UTC().Format(time.RFC3339),
			strconv.FormatBool(a.IsLast),
			strconv.FormatBool(a.HasEvents),
			a.Version,
		})
	}
	return rows
}

func (r analysesResult) Summary() string {
	return fmt.Sprintf("%d analyses on root %s", len(r.Analyses), r.RootUUID)
}

func runAnalyses(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	res := analysesResult{RootUUID: analysesFlags.root}

	err := a.operation(ctx, "select_purgeable_analyses", func(tx *sqlx.Tx) error {
		root, err := purge.RequireRoot(ctx, tx, analysesFlags.root)
		if err != nil {
			return err
		}
		project := analysesFlags.project
		if project == "" {
			project = projectOf(root)
		}

		evaluator := purge.NewEvaluator(a.cfg.PurgeConfiguration(root.UUID, project))
		res.Analyses, err = evaluator.SelectPurgeableAnalyses(ctx, tx, root.UUID)
		return err
	})
	if err != nil {
		return err
	}
	return a.print(cmd, res)
}
