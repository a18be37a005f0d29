package names

import (
	"context"
	"encoding/csv"
	"log/slog"
	"strconv"
	"time"

	postgres "github.com/heartmarshall/names-loader/internal/adapter/postgres"
	"github.com/heartmarshall/names-loader/internal/domain"
	"github.com/heartmarshall/names-loader/pkg/ctxutil"
)

const copyFirstnamesSQL = `COPY firstnames (name, gender, count, rank, year) FROM STDIN WITH (FORMAT csv)`

// CopyWriter writes each batch of records with a single COPY. A batch is
// atomic: if the server rejects any row, none of the batch is stored.
type CopyWriter struct {
	c   Copier
	log *slog.Logger
}

// NewCopyWriter creates a CopyWriter sending batches through c.
func NewCopyWriter(c Copier, log *slog.Logger) *CopyWriter {
	return &CopyWriter{c: c, log: log}
}

// WriteRecords copies records as one batch. On failure every record is
// reported as a failure and a *domain.BatchError is returned.
func (w *CopyWriter) WriteRecords(ctx context.Context, records []domain.Record) (domain.WriteResult, error) {
	if len(records) == 0 {
		return domain.WriteResult{}, nil
	}

	start := time.Now()
	n, err := copyCSV(ctx, w.c, copyFirstnamesSQL, func(cw *csv.Writer) error {
		return encodeRecords(cw, records)
	})
	if err != nil {
		mapped := postgres.MapError(err, "copy firstnames")
		res := domain.WriteResult{Failures: make([]domain.WriteFailure, len(records))}
		for i, rec := range records {
			res.Failures[i] = domain.WriteFailure{Record: rec, Reason: mapped}
		}
		return res, &domain.BatchError{Size: len(records), Err: mapped}
	}

	w.log.With(ctxutil.LogAttrs(ctx)...).Debug("batch copied",
		slog.Int("rows", int(n)),
		slog.Duration("duration", time.Since(start)),
	)
	return domain.WriteResult{Written: int(n)}, nil
}

func encodeRecords(cw *csv.Writer, records []domain.Record) error {
	row := make([]string, 5)
	for _, rec := range records {
		row[0] = rec.Name
		row[1] = string(rec.Gender)
		row[2] = strconv.Itoa(rec.Count)
		row[3] = strconv.Itoa(rec.Rank)
		row[4] = strconv.Itoa(rec.Year)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}
