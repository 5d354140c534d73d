package purge

import (
	"log/slog"
	"sort"
	"time"
)

// Measurement is the record of one profiled batch.
type Measurement struct {
	Step    string
	Elapsed time.Duration
	Rows    int64
}

// StepTotal aggregates the measurements of one step.
type StepTotal struct {
	Step    string        `json:"step"`
	Batches int           `json:"batches"`
	Rows    int64         `json:"rows"`
	Elapsed time.Duration `json:"elapsed"`
}

// StepObserver receives every measurement as it is taken.
type StepObserver interface {
	ObserveStep(step string, elapsed time.Duration, rows int64, err error)
}

// Profiler records how long each batch of a purge call takes. It only
// observes: errors and panics of the profiled code pass through untouched.
// A Profiler belongs to a single call and is not safe for concurrent use.
// A nil *Profiler is valid and records nothing.
type Profiler struct {
	records  []Measurement
	observer StepObserver
}

// NewProfiler creates a profiler. observer may be nil.
func NewProfiler(observer StepObserver) *Profiler {
	return &Profiler{observer: observer}
}

// Measure runs fn and records its duration and affected rows under step.
func (p *Profiler) Measure(step string, fn func() (int64, error)) (rows int64, err error) {
	if p == nil {
		return fn()
	}

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		p.records = append(p.records, Measurement{Step: step, Elapsed: elapsed, Rows: rows})
		if p.observer != nil {
			p.observer.ObserveStep(step, elapsed, rows, err)
		}
	}()

	return fn()
}

// Records returns the measurements in the order they were taken.
func (p *Profiler) Records() []Measurement {
	if p == nil {
		return nil
	}
	out := make([]Measurement, len(p.records))
	copy(out, p.records)
	return out
}

// Totals aggregates measurements per step, slowest first.
func (p *Profiler) Totals() []StepTotal {
	if p == nil {
		return nil
	}
	index := make(map[string]int)
	var totals []StepTotal
	for _, m := range p.records {
		i, ok := index[m.Step]
		if !ok {
			i = len(totals)
			index[m.Step] = i
			totals = append(totals, StepTotal{Step: m.Step})
		}
		totals[i].Batches++
		totals[i].Rows += m.Rows
		totals[i].Elapsed += m.Elapsed
	}
	sort.SliceStable(totals, func(a, b int) bool {
		return totals[a].Elapsed > totals[b].Elapsed
	})
	return totals
}

// Rows returns the total of affected rows.
func (p *Profiler) Rows() int64 {
	var n int64
	for _, m := range p.Records() {
		n += m.Rows
	}
	return n
}

// Reset drops all measurements.
func (p *Profiler) Reset() {
	if p != nil {
		p.records = nil
	}
}

// Dump logs the limit slowest steps at debug level. A limit of 0 logs all.
func (p *Profiler) Dump(logger *slog.Logger, limit int) {
	if p == nil || logger == nil {
		return
	}
	totals := p.Totals()
	if limit > 0 && len(totals) > limit {
		totals = totals[:limit]
	}
	for _, t := range totals {
		logger.Debug("purge step profile",
			"step", t.Step,
			"batches", t.Batches,
			"rows", t.Rows,
			"elapsed_ms", t.Elapsed.Milliseconds(),
		)
	}
}
