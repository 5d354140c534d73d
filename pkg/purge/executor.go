package purge

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Batching defaults. SQLite builds before 3.32 cap bound parameters at 999.
const (
	DefaultMaxParams = 999
	DefaultBatchSize = 1000
)

// StepResult reports what one step of a plan did.
type StepResult struct {
	Name   string
	Entity Entity
	Chunks int
	Rows   int64
}

// Result reports what a plan did.
type Result struct {
	Steps []StepResult
	Rows  int64
}

// Executor runs plans in the caller's session, one statement per key
// chunk. It never opens a transaction and runs chunks sequentially in key
// order.
type Executor struct {
	maxParams int
	batchSize int
	tracer    trace.Tracer
}

// NewExecutor creates an executor. maxParams is the store's bound parameter
// limit per statement and batchSize the preferred number of keys per chunk;
// zero values select the defaults.
func NewExecutor(maxParams, batchSize int) *Executor {
	if maxParams <= 0 {
		maxParams = DefaultMaxParams
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Executor{
		maxParams: maxParams,
		batchSize: batchSize,
		tracer:    noop.NewTracerProvider().Tracer(""),
	}
}

// SetTracer makes the executor open one span per executed step.
func (x *Executor) SetTracer(t trace.Tracer) {
	if t != nil {
		x.tracer = t
	}
}

// ChunkSize returns how many keys fit in one statement that also binds
// extra other parameters.
func (x *Executor) ChunkSize(extra int) (int, error) {
	size := x.batchSize
	if limit := x.maxParams - extra; limit < size {
		size = limit
	}
	if size < 1 {
		return 0, fmt.Errorf("statement binds %d parameters besides its keys, limit is %d", extra, x.maxParams)
	}
	return size, nil
}

// Partition splits keys into consecutive chunks of at most size keys.
func Partition(keys []string, size int) [][]string {
	if len(keys) == 0 || size < 1 {
		return nil
	}
	chunks := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

// Run executes every step of plan in order.
func (x *Executor) Run(ctx context.Context, s Session, p *Profiler, plan Plan) (Result, error) {
	var result Result
	for _, step := range plan.Steps {
		sr, err := x.RunStep(ctx, s, p, step)
		result.Steps = append(result.Steps, sr)
		result.Rows += sr.Rows
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// RunStep executes one step over all its key chunks and returns the
// aggregate affected row count. A step without keys issues no statement.
func (x *Executor) RunStep(ctx context.Context, s Session, p *Profiler, step Step) (StepResult, error) {
	sr := StepResult{Name: step.Name, Entity: step.Entity}
	if len(step.Selector.Keys) == 0 {
		return sr, nil
	}

	size, err := x.ChunkSize(step.ExtraParams())
	if err != nil {
		return sr, &StepError{Step: step.Name, Cause: err}
	}

	ctx, span := x.tracer.Start(ctx, "purge.step", trace.WithAttributes(
		attribute.String("purge.step", step.Name),
		attribute.String("purge.entity", string(step.Entity)),
		attribute.Int("purge.keys", len(step.Selector.Keys)),
	))
	defer span.End()

	for _, chunk := range Partition(step.Selector.Keys, size) {
		rows, err := p.Measure(step.Name, func() (int64, error) {
			return x.exec(ctx, s, step, chunk)
		})
		sr.Chunks++
		sr.Rows += rows
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return sr, &StepError{Step: step.Name, Cause: err}
		}
	}

	span.SetAttributes(attribute.Int64("purge.rows", sr.Rows), attribute.Int("purge.chunks", sr.Chunks))
	return sr, nil
}

func (x *Executor) exec(ctx context.Context, s Session, step Step, chunk []string) (int64, error) {
	query, args, err := sqlx.In(step.Query(), step.args(chunk)...)
	if err != nil {
		return 0, err
	}
	res, err := s.ExecContext(ctx, s.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SelectIn runs a single-column query whose only IN placeholder receives
// keys, chunk by chunk, and concatenates the results.
func (x *Executor) SelectIn(ctx context.Context, s Session, query string, keys []string) ([]string, error) {
	size, err := x.ChunkSize(0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, chunk := range Partition(keys, size) {
		q, args, err := sqlx.In(query, chunk)
		if err != nil {
			return nil, err
		}
		var part []string
		if err := sqlx.SelectContext(ctx, s, &part, s.Rebind(q), args...); err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}
