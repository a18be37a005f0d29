package names

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	postgres "github.com/heartmarshall/names-loader/internal/adapter/postgres"
	"github.com/heartmarshall/names-loader/internal/domain"
	"github.com/heartmarshall/names-loader/pkg/ctxutil"
)

// Execer runs a single statement. Implemented by postgres.Session and by pgxmock.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// RowWriter inserts records one statement at a time. Rows that collide with
// an existing (name, gender, year) are skipped and reported; the rest of the
// batch still goes in.
type RowWriter struct {
	q   Execer
	log *slog.Logger
}

// NewRowWriter creates a RowWriter executing through q.
func NewRowWriter(q Execer, log *slog.Logger) *RowWriter {
	return &RowWriter{q: q, log: log}
}

// WriteRecords inserts every record. Per-row rejections land in the result's
// failures; a connection or context error stops the batch and is returned.
func (w *RowWriter) WriteRecords(ctx context.Context, records []domain.Record) (domain.WriteResult, error) {
	var res domain.WriteResult
	for _, rec := range records {
		query, args, err := insertFirstname(rec).ToSql()
		if err != nil {
			return res, fmt.Errorf("build insert: %w", err)
		}

		// Under a single load transaction a rejected row must not abort it.
		var tag pgconn.CommandTag
		err = postgres.Guarded(ctx, w.q, func(ctx context.Context) error {
			var err error
			tag, err = w.q.Exec(ctx, query, args...)
			return err
		})
		if err != nil {
			mapped := postgres.MapError(err, "insert firstname")
			if !domain.IsRowError(mapped) {
				return res, mapped
			}
			if errors.Is(mapped, domain.ErrDuplicateKey) {
				mapped = &domain.DuplicateKeyError{Key: rec.Key(), Year: rec.Year}
			}
			w.reject(ctx, &res, rec, mapped)
			continue
		}
		if tag.RowsAffected() == 0 {
			w.reject(ctx, &res, rec, &domain.DuplicateKeyError{Key: rec.Key(), Year: rec.Year})
			continue
		}
		res.Written++
	}
	return res, nil
}

func (w *RowWriter) reject(ctx context.Context, res *domain.WriteResult, rec domain.Record, reason error) {
	w.log.With(ctxutil.LogAttrs(ctx)...).Warn("row rejected",
		slog.String("name", rec.Name),
		slog.String("gender", string(rec.Gender)),
		slog.Int("year", rec.Year),
		slog.String("error", reason.Error()),
	)
	res.Failures = append(res.Failures, domain.WriteFailure{Record: rec, Reason: reason})
}

func insertFirstname(rec domain.Record) sq.InsertBuilder {
	return psql.Insert("firstnames").
		Columns("name", "gender", "count", "rank", "year").
		Values(rec.Name, string(rec.Gender), rec.Count, rec.Rank, rec.Year).
		Suffix("ON CONFLICT (name, gender, year) DO NOTHING")
}
