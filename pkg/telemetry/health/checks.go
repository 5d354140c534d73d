package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pinger is implemented by the analysis store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck fails when the analysis database cannot be reached.
func DatabaseCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		return nil
	}
}

// SweepTracker remembers the outcome of the last run of each housekeeping
// job. The scheduler reports to it and the readiness endpoint reads it.
type SweepTracker struct {
	mu   sync.RWMutex
	last map[string]sweepOutcome
}

type sweepOutcome struct {
	at  time.Time
	err error
}

// NewSweepTracker creates an empty tracker.
func NewSweepTracker() *SweepTracker {
	return &SweepTracker{last: make(map[string]sweepOutcome)}
}

// Record stores the outcome of a finished run of job.
func (t *SweepTracker) Record(job string, at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[job] = sweepOutcome{at: at, err: err}
}

// Check fails while the last run of any job failed. Jobs that have not run
// yet are healthy.
func (t *SweepTracker) Check() CheckFunc {
	return func(ctx context.Context) error {
		t.mu.RLock()
		defer t.mu.RUnlock()

		for job, o := range t.last {
			if o.err != nil {
				return fmt.Errorf("last %s sweep at %s failed: %v", job, o.at.UTC().Format(time.RFC3339), o.err)
			}
		}
		return nil
	}
}
