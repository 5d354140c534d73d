// Package telemetry bundles the observability of the sweeper.
//
// # Components
//
//   - logging: structured logging carrying run, project and trace fields
//   - metrics: Prometheus metrics for purge steps and housekeeping sweeps
//   - tracing: OpenTelemetry tracing of engine operations
//   - health: liveness and readiness endpoints
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	engine := purge.NewEngine(
//	    purge.WithLogger(tel.Logger().Slog()),
//	    purge.WithTracer(tel.Tracer().Tracer()),
//	    purge.WithObserver(tel.Metrics()),
//	)
package telemetry
