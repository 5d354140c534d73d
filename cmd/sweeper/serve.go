package main

import (
	"context"

	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/cli"
	"mercator-hq/sweeper/pkg/config"
	"mercator-hq/sweeper/pkg/housekeeping"
	"mercator-hq/sweeper/pkg/server"
	"mercator-hq/sweeper/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the housekeeping scheduler with health and metrics endpoints",
	Long: `Run the housekeeping jobs on their cron schedules and serve health
probes and Prometheus metrics over HTTP.

The configuration is reloaded on SIGHUP, and when server.watch_config is
set, whenever the configuration file changes. A reload replaces the
schedules and the retention rules of the next runs.

Examples:
  sweeper serve --config /etc/sweeper/config.yaml
  sweeper serve --listen 0.0.0.0:9090`,
	Args: cobra.NoArgs,
	RunE: withApp(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	srvCfg := a.cfg.Server
	if serveFlags.listenAddress != "" {
		srvCfg.ListenAddress = serveFlags.listenAddress
	}

	tracker := health.NewSweepTracker()
	checker := a.tel.Health()
	checker.RegisterCheck("database", health.DatabaseCheck(a.store))
	checker.RegisterCheck("housekeeping", tracker.Check())

	scheduler := housekeeping.NewScheduler(a.sweeper(housekeeping.WithTracker(tracker)), a.cfg.Housekeeping)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("housekeeping", err.Error())
	}
	defer scheduler.Stop()

	defer config.OnReload(func(cfg *config.Config) {
		if err := scheduler.Reschedule(ctx, cfg.Housekeeping); err != nil {
			a.logger.Error("failed to reschedule housekeeping", "error", err)
			return
		}
		a.logger.Info("configuration reloaded", "path", cfgFile)
	})()
	reload := func() error { return config.ReloadConfig(cfgFile) }

	if srvCfg.WatchConfig && cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, config.DefaultDebounceInterval, a.logger)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx, reload); err != nil {
				a.logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	hup, stopHup := cli.ReloadSignals()
	defer stopHup()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := reload(); err != nil {
					a.logger.Error("configuration reload failed", "error", err)
				}
			}
		}
	}()

	srv := server.New(srvCfg, server.Options{
		Checker:   checker,
		Metrics:   a.tel.Metrics().Handler(),
		Telemetry: a.cfg.Telemetry,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
		Logger:    a.logger,
	})

	a.logger.Info("sweeper serving",
		"address", srvCfg.ListenAddress,
		"version", Version,
		"housekeeping", scheduler.IsRunning(),
	)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
