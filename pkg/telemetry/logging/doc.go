// Package logging provides structured logging for the sweeper.
//
// The logger wraps log/slog with JSON or text output and a handler that
// copies run fields from the context into every record:
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json"})
//	logger.SetDefault()
//
//	ctx = logging.WithRunID(ctx, uuid.NewString())
//	ctx = logging.WithProject(ctx, projectUUID)
//	logger.InfoContext(ctx, "Purge finished", "rows", n)
//	// {"msg":"Purge finished","rows":12,"run_id":"...","project_uuid":"..."}
//
// When the context carries an OpenTelemetry span, its trace_id and span_id
// are added too, which lets a log line be matched with the purge trace.
package logging
