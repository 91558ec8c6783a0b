package types

import "context"

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID stores the pipeline run ID in the context. Outbound HTTP calls
// propagate it as a trace header and log lines carry it as run_id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the run ID from the context, or "" if none was set.
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
