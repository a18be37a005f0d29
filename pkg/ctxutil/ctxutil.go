package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	runIDKey   ctxKey = "run_id"
	datasetKey ctxKey = "dataset"
)

// WithRunID stores the load run ID in the context.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromCtx extracts the load run ID from the context.
// Returns uuid.Nil and false if the value is missing, nil UUID, or wrong type.
func RunIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithDataset stores the name of the dataset being loaded in the context.
func WithDataset(ctx context.Context, dataset string) context.Context {
	return context.WithValue(ctx, datasetKey, dataset)
}

// DatasetFromCtx extracts the dataset name from the context.
// Returns an empty string if absent.
func DatasetFromCtx(ctx context.Context) string {
	ds, _ := ctx.Value(datasetKey).(string)
	return ds
}

// LogAttrs returns the run attributes found in ctx, for adapters that log
// outside the pipeline's own logger.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id, ok := RunIDFromCtx(ctx); ok {
		attrs = append(attrs, "run_id", id.String())
	}
	if ds := DatasetFromCtx(ctx); ds != "" {
		attrs = append(attrs, "dataset", ds)
	}
	return attrs
}
