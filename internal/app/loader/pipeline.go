package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/heartmarshall/names-loader/internal/app/loader/firstnames"
	"github.com/heartmarshall/names-loader/internal/app/loader/ranking"
	"github.com/heartmarshall/names-loader/internal/app/loader/surnames"
	"github.com/heartmarshall/names-loader/internal/config"
	"github.com/heartmarshall/names-loader/internal/domain"
	"github.com/heartmarshall/names-loader/pkg/ctxutil"
)

// Dataset names used in reports and metric labels.
const (
	DatasetFirstnames = "firstnames"
	DatasetSurnames   = "surnames"
)

// Pipeline runs loads against one destination.
type Pipeline struct {
	log     *slog.Logger
	cfg     config.LoaderConfig
	schema  Schema
	records RecordWriter
	census  CensusWriter
	metrics Recorder
}

// NewPipeline creates a Pipeline. metrics may be nil.
func NewPipeline(log *slog.Logger, cfg config.LoaderConfig, schema Schema, records RecordWriter, census CensusWriter, metrics Recorder) *Pipeline {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Pipeline{
		log:     log,
		cfg:     cfg,
		schema:  schema,
		records: records,
		census:  census,
		metrics: metrics,
	}
}

// RunFirstnames loads every yearly file, then the cumulative year-0 rows.
// Row-level problems are counted in the returned report; any other error
// aborts the run and is returned together with the partial report.
func (p *Pipeline) RunFirstnames(ctx context.Context) (*domain.Report, error) {
	start := time.Now()
	report := domain.NewReport(DatasetFirstnames, p.cfg.SampleSize)
	log := p.log.With(slog.String("run_id", report.RunID.String()), slog.String("dataset", DatasetFirstnames))
	ctx = ctxutil.WithDataset(ctxutil.WithRunID(ctx, report.RunID), DatasetFirstnames)
	defer func() { report.Duration = time.Since(start) }()

	ds, err := firstnames.Open(p.cfg.FirstnamesDir, log)
	if err != nil {
		return report, err
	}
	if len(ds.Files()) == 0 {
		log.Warn("no year files found", slog.String("dir", p.cfg.FirstnamesDir))
	}

	if err := p.schema.PrepareFirstnames(ctx, p.cfg.RebuildPolicy()); err != nil {
		return report, fmt.Errorf("prepare firstnames: %w", err)
	}

	var (
		ranker  = ranking.NewYearRanker()
		checker = ranking.NewOrderChecker(p.cfg.OrderPolicy())
		index   = ranking.NewCumulativeIndex()
		bulk    = NewBulkWriter(p.cfg.BatchSize, p.flushRecords)
		seen    = make(map[domain.Key]struct{})
		year    = -1
	)

	for rec, err := range ds.Records(ctx) {
		if err != nil {
			if !domain.IsRowError(err) {
				return report, err
			}
			report.Processed++
			p.metrics.RowRead(DatasetFirstnames)
			p.skip(log, report, err)
			continue
		}
		report.Processed++
		p.metrics.RowRead(DatasetFirstnames)

		// One record per (name, gender, year): repeats inside a file are
		// dropped before they consume a rank.
		if rec.Year != year {
			year = rec.Year
			clear(seen)
		}
		if _, dup := seen[rec.Key()]; dup {
			p.skip(log, report, &domain.DuplicateKeyError{Key: rec.Key(), Year: rec.Year})
			continue
		}

		if err := ranker.Assign(&rec); err != nil {
			p.skip(log, report, err)
			continue
		}
		seen[rec.Key()] = struct{}{}

		violation, err := checker.Check(rec)
		if violation {
			report.OrderWarnings++
			p.metrics.OrderWarning(DatasetFirstnames)
			if report.OrderWarnings <= p.cfg.SampleSize {
				log.Warn("input not sorted by count",
					slog.String("name", rec.Name),
					slog.String("gender", rec.Gender.String()),
					slog.Int("year", rec.Year),
					slog.Int("rank", rec.Rank),
					slog.Int("count", rec.Count),
				)
			}
		}
		if err != nil {
			return report, err
		}

		if err := p.deliver(ctx, log, report, bulk, rec); err != nil {
			return report, err
		}
		if err := index.Add(rec); err != nil {
			return report, err
		}
	}

	if err := p.flush(ctx, log, report, bulk); err != nil {
		return report, err
	}

	log.Info("computing cumulative ranks", slog.Int("names", index.Len()))
	cumulative, err := index.Finalize()
	if err != nil {
		return report, err
	}
	report.Cumulative = len(cumulative)
	for _, rec := range cumulative {
		if err := p.deliver(ctx, log, report, bulk, rec); err != nil {
			return report, err
		}
	}
	if err := p.flush(ctx, log, report, bulk); err != nil {
		return report, err
	}

	if err := p.schema.CreateFirstnameIndexes(ctx); err != nil {
		log.Warn("create indexes failed", slog.String("error", err.Error()))
	}
	p.finish(ctx, log, report, start)
	p.logSummary(ctx, log)
	return report, nil
}

// RunSurnames recreates the surnames table from the census file header and
// copies its rows in batches.
func (p *Pipeline) RunSurnames(ctx context.Context) (*domain.Report, error) {
	start := time.Now()
	report := domain.NewReport(DatasetSurnames, p.cfg.SampleSize)
	log := p.log.With(slog.String("run_id", report.RunID.String()), slog.String("dataset", DatasetSurnames))
	ctx = ctxutil.WithDataset(ctxutil.WithRunID(ctx, report.RunID), DatasetSurnames)
	defer func() { report.Duration = time.Since(start) }()

	ds, err := surnames.Open(p.cfg.SurnamesPath, log)
	if err != nil {
		return report, err
	}
	columns := ds.Columns()

	if err := p.schema.PrepareSurnames(ctx, columns); err != nil {
		return report, fmt.Errorf("prepare surnames: %w", err)
	}

	bulk := NewBulkWriter(p.cfg.BatchSize, func(ctx context.Context, rows []domain.WideRow) (domain.WriteResult, error) {
		start := time.Now()
		n, err := p.census.WriteRows(ctx, columns, rows)
		p.metrics.ObserveFlush(DatasetSurnames, time.Since(start))
		return domain.WriteResult{Written: n}, err
	})

	for row, err := range ds.Rows(ctx) {
		if err != nil && !domain.IsRowError(err) {
			return report, err
		}
		report.Processed++
		p.metrics.RowRead(DatasetSurnames)
		if err != nil {
			p.skip(log, report, err)
			continue
		}

		res, err := bulk.Add(ctx, row)
		p.apply(report, res)
		if err != nil {
			return report, err
		}
	}

	res, err := bulk.Flush(ctx)
	p.apply(report, res)
	if err != nil {
		return report, err
	}

	p.finish(ctx, log, report, start)
	return report, nil
}

// flushRecords is the FlushFunc of the firstnames BulkWriter.
func (p *Pipeline) flushRecords(ctx context.Context, batch []domain.Record) (domain.WriteResult, error) {
	start := time.Now()
	res, err := p.records.WriteRecords(ctx, batch)
	p.metrics.ObserveFlush(DatasetFirstnames, time.Since(start))
	return res, err
}

func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, report *domain.Report, bulk *BulkWriter[domain.Record], rec domain.Record) error {
	res, err := bulk.Add(ctx, rec)
	p.applyLogged(log, report, res)
	return err
}

func (p *Pipeline) flush(ctx context.Context, log *slog.Logger, report *domain.Report, bulk *BulkWriter[domain.Record]) error {
	res, err := bulk.Flush(ctx)
	p.applyLogged(log, report, res)
	return err
}

func (p *Pipeline) applyLogged(log *slog.Logger, report *domain.Report, res domain.WriteResult) {
	if res.Written == 0 && len(res.Failures) == 0 {
		return
	}
	p.apply(report, res)
	log.Debug("batch flushed",
		slog.Int("written", res.Written),
		slog.Int("failed", len(res.Failures)),
		slog.Int("total_written", report.Written),
	)
}

// apply folds a write result into the report and metrics.
func (p *Pipeline) apply(report *domain.Report, res domain.WriteResult) {
	report.AddWriteResult(res)
	p.metrics.RowsWritten(report.Dataset, res.Written)
	for _, f := range res.Failures {
		p.metrics.RowSkipped(report.Dataset, domain.ClassifySkip(f.Reason))
	}
}

func (p *Pipeline) skip(log *slog.Logger, report *domain.Report, err error) {
	report.Skip(err)
	p.metrics.RowSkipped(report.Dataset, domain.ClassifySkip(err))
	log.Debug("row skipped", slog.String("error", err.Error()))
}

// finish runs the post-load steps whose failure does not invalidate the data.
func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, report *domain.Report, start time.Time) {
	report.Duration = time.Since(start)
	if err := p.schema.Grant(ctx, p.cfg.GrantRole); err != nil {
		log.Warn("grant failed", slog.String("role", p.cfg.GrantRole), slog.String("error", err.Error()))
	}
	if err := p.schema.RecordRun(ctx, report); err != nil {
		log.Warn("record run failed", slog.String("error", err.Error()))
	}
}

func (p *Pipeline) logSummary(ctx context.Context, log *slog.Logger) {
	summary, err := p.schema.FirstnameSummary(ctx)
	if err != nil {
		log.Warn("summary query failed", slog.String("error", err.Error()))
		return
	}
	for _, s := range summary {
		year := strconv.Itoa(s.Year)
		if s.Year == domain.CumulativeYear {
			year = "cumulative"
		}
		log.Info("rows stored",
			slog.String("year", year),
			slog.String("gender", s.Gender.String()),
			slog.Int("rows", s.Rows),
		)
	}
}

// LogReport writes the user-visible summary of a run.
func LogReport(log *slog.Logger, r *domain.Report) {
	attrs := []any{
		slog.String("run_id", r.RunID.String()),
		slog.String("dataset", r.Dataset),
		slog.Int("processed", r.Processed),
		slog.Int("written", r.Written),
		slog.Int("skipped", r.Skipped),
		slog.Duration("duration", r.Duration),
	}
	if r.Cumulative > 0 {
		attrs = append(attrs, slog.Int("cumulative", r.Cumulative))
	}
	if r.OrderWarnings > 0 {
		attrs = append(attrs, slog.Int("order_warnings", r.OrderWarnings))
	}
	for kind, n := range r.SkippedByKind {
		attrs = append(attrs, slog.Int("skipped_"+string(kind), n))
	}
	log.Info("load finished", attrs...)

	for _, s := range r.Samples {
		log.Info("skipped row", slog.String("reason", s))
	}
}
