package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Sweeper - retention and cascading purge for analysis data",
	Long: `Sweeper keeps a code analysis database within its retention rules.

It provides:
  - Per-branch purges of expired analyses, flagged metric history,
    disabled components and old closed issues
  - Cascading deletion of projects, branches, analyses and view components
  - Scheduled housekeeping with Prometheus metrics and health endpoints

Configuration is read from the file given with --config, then overridden
by SWEEPER_* environment variables.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code of its error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
}
