package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/names-loader/internal/domain"
)

// FlushFunc delivers one batch to the destination.
type FlushFunc[T any] func(ctx context.Context, batch []T) (domain.WriteResult, error)

// BulkWriter buffers items and hands them to its FlushFunc in batches of at
// most size. A flush completes before Add accepts the next item.
type BulkWriter[T any] struct {
	size  int
	buf   []T
	flush FlushFunc[T]
	total domain.WriteResult
}

// NewBulkWriter creates a BulkWriter. size must be positive.
func NewBulkWriter[T any](size int, flush FlushFunc[T]) *BulkWriter[T] {
	if size <= 0 {
		panic(fmt.Sprintf("loader: batch size must be positive, got %d", size))
	}
	return &BulkWriter[T]{size: size, buf: make([]T, 0, size), flush: flush}
}

// Add buffers item and flushes when the batch is full. The returned result
// is that of the flush, or empty when none happened.
func (w *BulkWriter[T]) Add(ctx context.Context, item T) (domain.WriteResult, error) {
	w.buf = append(w.buf, item)
	if len(w.buf) < w.size {
		return domain.WriteResult{}, nil
	}
	return w.Flush(ctx)
}

// Flush delivers whatever is buffered.
func (w *BulkWriter[T]) Flush(ctx context.Context) (domain.WriteResult, error) {
	if len(w.buf) == 0 {
		return domain.WriteResult{}, nil
	}
	res, err := w.flush(ctx, w.buf)
	w.buf = w.buf[:0]
	w.total.Merge(res)
	return res, err
}

// Pending returns the number of buffered items.
func (w *BulkWriter[T]) Pending() int {
	return len(w.buf)
}

// Total returns the merged result of every flush so far.
func (w *BulkWriter[T]) Total() domain.WriteResult {
	return w.total
}

// DiscardWriter accepts and drops everything. Used for dry runs.
type DiscardWriter struct {
	log *slog.Logger
}

// NewDiscardWriter creates a DiscardWriter.
func NewDiscardWriter(log *slog.Logger) *DiscardWriter {
	return &DiscardWriter{log: log}
}

func (w *DiscardWriter) WriteRecords(_ context.Context, records []domain.Record) (domain.WriteResult, error) {
	w.log.Debug("dry run: batch discarded", slog.Int("rows", len(records)))
	return domain.WriteResult{Written: len(records)}, nil
}

func (w *DiscardWriter) WriteRows(_ context.Context, _ []domain.Column, rows []domain.WideRow) (int, error) {
	w.log.Debug("dry run: census batch discarded", slog.Int("rows", len(rows)))
	return len(rows), nil
}

// DiscardSchema is a Schema that touches nothing. Used for dry runs.
type DiscardSchema struct{}

func (DiscardSchema) PrepareFirstnames(context.Context, domain.RebuildPolicy) error { return nil }
func (DiscardSchema) CreateFirstnameIndexes(context.Context) error                  { return nil }
func (DiscardSchema) PrepareSurnames(context.Context, []domain.Column) error        { return nil }
func (DiscardSchema) Grant(context.Context, string) error                           { return nil }
func (DiscardSchema) RecordRun(context.Context, *domain.Report) error               { return nil }

func (DiscardSchema) FirstnameSummary(context.Context) ([]domain.YearSummary, error) {
	return nil, nil
}
