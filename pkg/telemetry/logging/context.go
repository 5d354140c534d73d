package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for the id of a purge or sweep run.
	RunIDKey contextKey = "run_id"

	// ProjectKey is the context key for the project being purged.
	ProjectKey contextKey = "project_uuid"

	// RootKey is the context key for the root component being purged.
	RootKey contextKey = "root_uuid"

	// OperationKey is the context key for the engine operation name.
	OperationKey contextKey = "operation"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// WithProject adds a project UUID to the context.
func WithProject(ctx context.Context, projectUUID string) context.Context {
	return context.WithValue(ctx, ProjectKey, projectUUID)
}

// GetProject retrieves the project UUID from the context.
func GetProject(ctx context.Context) string {
	if p, ok := ctx.Value(ProjectKey).(string); ok {
		return p
	}
	return ""
}

// WithRoot adds a root component UUID to the context.
func WithRoot(ctx context.Context, rootUUID string) context.Context {
	return context.WithValue(ctx, RootKey, rootUUID)
}

// GetRoot retrieves the root component UUID from the context.
func GetRoot(ctx context.Context) string {
	if r, ok := ctx.Value(RootKey).(string); ok {
		return r
	}
	return ""
}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

// GetOperation retrieves the operation name from the context.
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(OperationKey).(string); ok {
		return op
	}
	return ""
}

// contextAttrs extracts the log fields carried by ctx, including the ids
// of the active trace span.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if v := GetRunID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RunIDKey), v))
	}
	if v := GetOperation(ctx); v != "" {
		attrs = append(attrs, slog.String(string(OperationKey), v))
	}
	if v := GetProject(ctx); v != "" {
		attrs = append(attrs, slog.String(string(ProjectKey), v))
	}
	if v := GetRoot(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RootKey), v))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return attrs
}
