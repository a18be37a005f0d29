// Package sqlite is a single-file destination for running the loader without
// a PostgreSQL server. It inserts row by row and mirrors the PostgreSQL schema.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/heartmarshall/names-loader/internal/domain"
)

const ddl = `
CREATE TABLE IF NOT EXISTS firstnames (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT    NOT NULL CHECK (length(name) <= 30),
	gender TEXT    NOT NULL CHECK (gender IN ('M', 'F')),
	count  INTEGER NOT NULL CHECK (count >= 0),
	rank   INTEGER,
	year   INTEGER NOT NULL,
	UNIQUE (name, gender, year)
);
CREATE TABLE IF NOT EXISTS load_runs (
	run_id      TEXT PRIMARY KEY,
	dataset     TEXT    NOT NULL,
	processed   INTEGER NOT NULL,
	written     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	cumulative  INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL,
	finished_at TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

var firstnameIndexes = []struct{ name, columns string }{
	{"idx_firstnames_year_gender", "year, gender"},
	{"idx_firstnames_name_year", "name, year"},
}

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Store is a SQLite-backed destination.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the database at path and ensures the base tables exist.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PrepareFirstnames empties firstnames under the rebuild policy.
func (s *Store) PrepareFirstnames(ctx context.Context, policy domain.RebuildPolicy) error {
	if policy != domain.RebuildPolicyRebuild {
		return nil
	}
	for _, idx := range firstnameIndexes {
		if _, err := s.db.ExecContext(ctx, "DROP INDEX IF EXISTS "+idx.name); err != nil {
			return fmt.Errorf("drop index %s: %w", idx.name, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM firstnames"); err != nil {
		return fmt.Errorf("empty firstnames: %w", err)
	}
	// Resets the AUTOINCREMENT counter the way RESTART IDENTITY does.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'firstnames'"); err != nil {
		return fmt.Errorf("reset firstnames sequence: %w", err)
	}
	return nil
}

// CreateFirstnameIndexes builds the lookup indexes.
func (s *Store) CreateFirstnameIndexes(ctx context.Context) error {
	for _, idx := range firstnameIndexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON firstnames (%s)", idx.name, idx.columns)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// PrepareSurnames drops and recreates surnames with one column per census field.
func (s *Store) PrepareSurnames(ctx context.Context, columns []domain.Column) error {
	if len(columns) == 0 {
		return domain.NewValidationError("columns", "at least one column required")
	}
	defs := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}
	for i, c := range columns {
		typ := "REAL"
		switch {
		case i == 0:
			typ = "TEXT NOT NULL"
		case c.Type == domain.ColumnTypeInteger:
			typ = "INTEGER NOT NULL"
		case c.Type == domain.ColumnTypeText:
			typ = "TEXT"
		}
		defs = append(defs, quoteIdent(c.Name)+" "+typ)
	}

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS surnames"); err != nil {
		return fmt.Errorf("drop surnames: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE surnames ("+strings.Join(defs, ", ")+")"); err != nil {
		return fmt.Errorf("create surnames: %w", err)
	}
	return nil
}

// Grant is a no-op: SQLite has no roles.
func (s *Store) Grant(_ context.Context, role string) error {
	if role != "" {
		s.log.Debug("grant skipped for sqlite destination", slog.String("role", role))
	}
	return nil
}

// FirstnameSummary counts stored rows per (year, gender).
func (s *Store) FirstnameSummary(ctx context.Context) ([]domain.YearSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, gender, COUNT(*) FROM firstnames GROUP BY year, gender ORDER BY year, gender`)
	if err != nil {
		return nil, fmt.Errorf("firstname summary: %w", err)
	}
	defer rows.Close()

	var out []domain.YearSummary
	for rows.Next() {
		var (
			ys     domain.YearSummary
			gender string
		)
		if err := rows.Scan(&ys.Year, &gender, &ys.Rows); err != nil {
			return nil, fmt.Errorf("scan firstname summary: %w", err)
		}
		ys.Gender = domain.Gender(gender)
		out = append(out, ys)
	}
	return out, rows.Err()
}

// RecordRun stores the outcome of a finished load.
func (s *Store) RecordRun(ctx context.Context, r *domain.Report) error {
	query, args, err := qb.Insert("load_runs").
		Columns("run_id", "dataset", "processed", "written", "skipped", "cumulative", "duration_ms").
		Values(r.RunID.String(), r.Dataset, r.Processed, r.Written, r.Skipped, r.Cumulative, r.Duration.Milliseconds()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// WriteRecords inserts a batch inside one transaction. Rows violating a
// constraint are reported as failures; the rest of the batch commits.
func (s *Store) WriteRecords(ctx context.Context, records []domain.Record) (domain.WriteResult, error) {
	var res domain.WriteResult
	if len(records) == 0 {
		return res, nil
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			query, args, err := qb.Insert("firstnames").
				Columns("name", "gender", "count", "rank", "year").
				Values(rec.Name, string(rec.Gender), rec.Count, rec.Rank, rec.Year).
				Suffix("ON CONFLICT (name, gender, year) DO NOTHING").
				ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}

			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				mapped := mapError(err)
				if !domain.IsRowError(mapped) {
					return mapped
				}
				res.Failures = append(res.Failures, domain.WriteFailure{Record: rec, Reason: mapped})
				continue
			}
			if n, _ := result.RowsAffected(); n == 0 {
				res.Failures = append(res.Failures, domain.WriteFailure{
					Record: rec,
					Reason: &domain.DuplicateKeyError{Key: rec.Key(), Year: rec.Year},
				})
				continue
			}
			res.Written++
		}
		return nil
	})
	if err != nil {
		return domain.WriteResult{}, err
	}
	return res, nil
}

// WriteRows inserts census rows inside one transaction. Empty fields become NULL.
func (s *Store) WriteRows(ctx context.Context, columns []domain.Column, rows []domain.WideRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quoteIdent(c.Name)
	}

	written := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if len(r.Fields) != len(columns) {
				return fmt.Errorf("line %d: %d fields for %d columns: %w",
					r.Line, len(r.Fields), len(columns), domain.ErrMalformedInput)
			}
			values := make([]any, len(r.Fields))
			for i, f := range r.Fields {
				if f == "" {
					values[i] = nil
				} else {
					values[i] = f
				}
			}
			query, args, err := qb.Insert("surnames").Columns(names...).Values(values...).ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert surname line %d: %w", r.Line, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, &domain.BatchError{Size: len(rows), Err: err}
	}
	return written, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mapError converts SQLite constraint errors to domain errors.
func mapError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch code := se.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("insert firstname: %w", domain.ErrDuplicateKey)
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("insert firstname: %s: %w", se.Error(), domain.ErrValidation)
		}
	}
	return fmt.Errorf("insert firstname: %w", err)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
