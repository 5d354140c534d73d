// Package tracing provides OpenTelemetry tracing for the sweeper.
//
// The purge engine opens one span per operation (purge.Purge,
// purge.DeleteProject, ...) and one child span per plan step. This package
// builds the tracer provider those spans are recorded with and exports them
// to an OTLP gRPC collector:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	engine := purge.NewEngine(purge.WithTracer(tracer.Tracer()))
//
// When tracing is disabled a noop tracer is returned.
//
// # Sampling Strategies
//
//   - always: Sample all runs
//   - never: Sample no runs
//   - ratio: Sample a fraction of runs by trace ID
package tracing
