package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/cli"
	"mercator-hq/sweeper/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Create the analysis database schema when it does not exist and check
the recorded schema version.

Example:
  SWEEPER_DATABASE_PATH=/var/lib/sweeper/sweeper.db sweeper migrate`,
	Args: cobra.NoArgs,
	RunE: withApp(runMigrate),
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

type migrateResult struct {
	Driver  string `json:"driver"`
	Path    string `json:"path"`
	Version int    `json:"schema_version"`
}

func (r migrateResult) Summary() string {
	return fmt.Sprintf("schema version %d at %s (%s)", r.Version, r.Path, r.Driver)
}

// The schema is applied by store.Open; migrate only checks the result.
func runMigrate(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	var version int
	if err := a.store.DB().GetContext(ctx, &version, store.GetSchemaVersion); err != nil {
		return cli.NewCommandError("migrate", err)
	}
	return a.print(cmd, migrateResult{
		Driver:  a.store.Driver(),
		Path:    a.cfg.Database.Path,
		Version: version,
	})
}
