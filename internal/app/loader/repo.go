// Package loader orchestrates a names load: reading a dataset, ranking it,
// delivering it to the destination in batches and reporting the outcome.
package loader

import (
	"context"
	"time"

	"github.com/heartmarshall/names-loader/internal/domain"
)

// RecordWriter delivers first-name records to the destination.
// Per-row rejections are returned in the result; a non-nil error is fatal.
// Implemented by names.CopyWriter, names.RowWriter and sqlite.Store.
type RecordWriter interface {
	WriteRecords(ctx context.Context, records []domain.Record) (domain.WriteResult, error)
}

// CensusWriter delivers wide census rows. Implemented by names.CensusWriter and sqlite.Store.
type CensusWriter interface {
	WriteRows(ctx context.Context, columns []domain.Column, rows []domain.WideRow) (int, error)
}

// Schema owns the destination tables around a load.
// Implemented by postgres.Schema and sqlite.Store.
type Schema interface {
	PrepareFirstnames(ctx context.Context, policy domain.RebuildPolicy) error
	CreateFirstnameIndexes(ctx context.Context) error
	PrepareSurnames(ctx context.Context, columns []domain.Column) error
	Grant(ctx context.Context, role string) error
	FirstnameSummary(ctx context.Context) ([]domain.YearSummary, error)
	RecordRun(ctx context.Context, r *domain.Report) error
}

// Recorder receives run metrics. Implemented by metrics.Metrics.
type Recorder interface {
	RowRead(dataset string)
	RowsWritten(dataset string, n int)
	RowSkipped(dataset string, kind domain.SkipKind)
	OrderWarning(dataset string)
	ObserveFlush(dataset string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RowRead(string)                     {}
func (nopRecorder) RowsWritten(string, int)            {}
func (nopRecorder) RowSkipped(string, domain.SkipKind) {}
func (nopRecorder) OrderWarning(string)                {}
func (nopRecorder) ObserveFlush(string, time.Duration) {}
