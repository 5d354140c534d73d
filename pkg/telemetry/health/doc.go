// Package health provides the liveness, readiness and version endpoints
// served by `sweeper serve`.
//
// Readiness aggregates the registered checks. The command registers two:
//
//   - database: pings the analysis database
//   - housekeeping: fails while the last run of a scheduled sweep failed
//
// Usage:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("database", health.DatabaseCheck(st))
//	checker.RegisterCheck("housekeeping", tracker.Check())
//
//	health.Register(mux, checker, health.Paths{
//	    Liveness:  "/healthz",
//	    Readiness: "/readyz",
//	    Version:   "/version",
//	}, version, commit, buildTime)
package health
