/*
Package cli provides command-line helpers for the sweeper command.

Output Formatting:

Command results render as text, JSON or CSV. Results that implement Table
are aligned in columns in text mode and are the only ones CSV accepts:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, branches); err != nil {
		return err
	}

Progress Reporting:

A sweep over every root reports its progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(roots)))
	for i := range roots {
		// Purge the root
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signals and Exit Codes:

SignalContext cancels on SIGINT/SIGTERM, which rolls back the purge in
progress. ExitCode maps a command error to the process exit status.
*/
package cli
