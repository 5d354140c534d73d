// Package housekeeping runs the retention purge in the background.
//
// Two jobs exist. The projects job lists every enabled branch and view and
// purges each in its own transaction, so one failing root is rolled back
// without stopping the sweep. The ce job deletes old compute engine
// activities and scanner contexts across all projects.
//
//	sweeper := housekeeping.NewSweeper(st, config.GetConfig,
//		housekeeping.WithRecorder(tel.Metrics()),
//		housekeeping.WithObserver(tel.Metrics()),
//		housekeeping.WithTracker(tracker),
//	)
//	scheduler := housekeeping.NewScheduler(sweeper, cfg.Housekeeping)
//	if err := scheduler.Start(ctx); err != nil {
//		return err
//	}
//	defer scheduler.Stop()
//
// Every run gets a run id that is attached to its log lines and its span.
package housekeeping
