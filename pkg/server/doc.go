// Package server serves the operations endpoints of `sweeper serve`:
// liveness and readiness probes, build information and Prometheus metrics.
//
// Requests pass through the following middleware (innermost to outermost):
//  1. Recovery: turns a handler panic into a 500 response
//  2. Logging: logs the request with its status and latency
//  3. RequestID: keeps or generates X-Request-ID
//
// Usage:
//
//	srv := server.New(cfg.Server, server.Options{
//	    Checker:   tel.Health(),
//	    Metrics:   tel.Metrics().Handler(),
//	    Telemetry: cfg.Telemetry,
//	    Version:   version,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start blocks until ctx is cancelled and then shuts down gracefully within
// the configured shutdown timeout.
package server
