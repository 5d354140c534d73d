package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"mercator-hq/sweeper/pkg/cli"
	"mercator-hq/sweeper/pkg/config"
	"mercator-hq/sweeper/pkg/housekeeping"
	"mercator-hq/sweeper/pkg/purge"
	"mercator-hq/sweeper/pkg/store"
	"mercator-hq/sweeper/pkg/telemetry"
)

// app is what every data command needs: configuration, telemetry and an
// open store.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	store  *store.Store
	format cli.OutputFormat
	logger *slog.Logger
}

// loadConfig reads --config with environment overrides and publishes it as
// the global configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	config.SetConfig(cfg)
	return cfg, nil
}

// newApp loads the configuration, starts telemetry and opens the store.
func newApp(cmd *cobra.Command) (*app, error) {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(&cfg.Telemetry, cmd.ErrOrStderr())
	if err != nil {
		return nil, cli.NewConfigError("telemetry", err.Error())
	}

	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, cli.NewCommandError(cmd.Name(), err)
	}

	return &app{
		cfg:    cfg,
		tel:    tel,
		store:  st,
		format: format,
		logger: tel.Logger().Slog().With("component", "cli."+cmd.Name()),
	}, nil
}

// Close closes the store and flushes telemetry.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush telemetry", "error", err)
	}
}

// engine builds a purge engine wired to telemetry.
func (a *app) engine() *purge.Engine {
	opts := append(a.cfg.EngineOptions(),
		purge.WithLogger(a.tel.Logger().Slog()),
		purge.WithTracer(a.tel.Tracer().Tracer()),
		purge.WithObserver(a.tel.Metrics()),
	)
	return purge.NewEngine(opts...)
}

// sweeper builds a housekeeping sweeper wired to telemetry.
func (a *app) sweeper(opts ...housekeeping.Option) *housekeeping.Sweeper {
	opts = append([]housekeeping.Option{
		housekeeping.WithLogger(a.tel.Logger().Slog()),
		housekeeping.WithTracer(a.tel.Tracer().Tracer()),
		housekeeping.WithObserver(a.tel.Metrics()),
		housekeeping.WithRecorder(a.tel.Metrics()),
		housekeeping.WithListener(purge.NewLoggingListener(a.tel.Logger().Slog())),
	}, opts...)
	return housekeeping.NewSweeper(a.store, config.GetConfig, opts...)
}

// operation runs fn in one transaction and records it as operation.
func (a *app) operation(ctx context.Context, operation string, fn func(tx *sqlx.Tx) error) error {
	start := time.Now()
	err := a.store.InTx(ctx, fn)
	a.tel.Metrics().RecordOperation(operation, time.Since(start), err)
	if err != nil {
		return cli.NewCommandError(operation, err)
	}
	return nil
}

// print writes v to the command output in the selected format.
func (a *app) print(cmd *cobra.Command, v any) error {
	if err := cli.NewFormatter(a.format).FormatTo(cmd.OutOrStdout(), v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// withApp wraps a command body with app setup, signal handling and
// teardown.
func withApp(run func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := cli.SignalContext(cmd.Context())
		defer stop()

		return run(ctx, cmd, a, args)
	}
}

func newRunID() string {
	return uuid.NewString()
}
