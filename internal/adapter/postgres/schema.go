package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/heartmarshall/names-loader/internal/domain"
	"github.com/heartmarshall/names-loader/migrations"
)

// Migrate applies the embedded goose migrations to the database at connString.
// goose requires *sql.DB, so a short-lived database/sql handle is opened
// through the pgx driver.
func Migrate(ctx context.Context, connString string, log *slog.Logger) error {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		log.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.String("path", r.Source.Path),
			slog.Duration("duration", r.Duration),
		)
	}
	if len(results) == 0 {
		log.Debug("schema up to date")
	}
	return nil
}

// Schema prepares destination tables around a load.
type Schema struct {
	q   Querier
	log *slog.Logger
}

// NewSchema creates a Schema issuing its statements through q.
func NewSchema(q Querier, log *slog.Logger) *Schema {
	return &Schema{q: q, log: log}
}

var firstnameIndexes = []struct{ name, columns string }{
	{"idx_firstnames_year_gender", "year, gender"},
	{"idx_firstnames_name_year", "name, year"},
}

// PrepareFirstnames readies the firstnames table for a load. Under the
// rebuild policy all rows are removed, the id sequence restarts and the
// secondary indexes are dropped until CreateFirstnameIndexes.
func (s *Schema) PrepareFirstnames(ctx context.Context, policy domain.RebuildPolicy) error {
	if policy != domain.RebuildPolicyRebuild {
		s.log.Info("appending to existing firstnames table")
		return nil
	}

	for _, idx := range firstnameIndexes {
		if _, err := s.q.Exec(ctx, "DROP INDEX IF EXISTS "+idx.name); err != nil {
			return MapError(err, "drop index "+idx.name)
		}
	}
	if _, err := s.q.Exec(ctx, "TRUNCATE firstnames RESTART IDENTITY"); err != nil {
		return MapError(err, "truncate firstnames")
	}
	s.log.Info("firstnames table emptied")
	return nil
}

// CreateFirstnameIndexes builds the lookup indexes once the data is in.
// Each index is built under its own savepoint, so a failure leaves an
// enclosing load transaction intact.
func (s *Schema) CreateFirstnameIndexes(ctx context.Context) error {
	for _, idx := range firstnameIndexes {
		start := time.Now()
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON firstnames (%s)", idx.name, idx.columns)
		err := Guarded(ctx, s.q, func(ctx context.Context) error {
			_, err := s.q.Exec(ctx, stmt)
			return err
		})
		if err != nil {
			return MapError(err, "create index "+idx.name)
		}
		s.log.Info("index created", slog.String("index", idx.name), slog.Duration("duration", time.Since(start)))
	}
	return nil
}

// PrepareSurnames drops and recreates the surnames table with one column per
// census header field.
func (s *Schema) PrepareSurnames(ctx context.Context, columns []domain.Column) error {
	if len(columns) == 0 {
		return domain.NewValidationError("columns", "at least one column required")
	}

	if _, err := s.q.Exec(ctx, "DROP TABLE IF EXISTS surnames"); err != nil {
		return MapError(err, "drop surnames")
	}
	if _, err := s.q.Exec(ctx, SurnamesDDL(columns)); err != nil {
		return MapError(err, "create surnames")
	}

	for _, c := range columns {
		if c.Name != "prop100k" && c.Name != "pctnative" {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX idx_surnames_%s ON surnames (%s)", c.Name, pgx.Identifier{c.Name}.Sanitize())
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return MapError(err, "create surnames index")
		}
	}

	s.log.Info("surnames table created", slog.Int("columns", len(columns)))
	return nil
}

// SurnamesDDL returns the CREATE TABLE statement for the given census columns.
func SurnamesDDL(columns []domain.Column) string {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, "id SERIAL PRIMARY KEY")
	for i, c := range columns {
		defs = append(defs, pgx.Identifier{c.Name}.Sanitize()+" "+columnType(c, i == 0))
	}
	return "CREATE TABLE surnames (" + strings.Join(defs, ", ") + ")"
}

func columnType(c domain.Column, isName bool) string {
	switch {
	case isName:
		return fmt.Sprintf("VARCHAR(%d) NOT NULL", domain.MaxNameLength)
	case c.Type == domain.ColumnTypeInteger:
		return "INTEGER NOT NULL"
	case c.Type == domain.ColumnTypeText:
		return "TEXT"
	default:
		return "DECIMAL"
	}
}

// Grant gives role full privileges on the public tables and sequences.
// An empty role is a no-op.
func (s *Schema) Grant(ctx context.Context, role string) error {
	if role == "" {
		return nil
	}
	ident := pgx.Identifier{role}.Sanitize()
	err := Guarded(ctx, s.q, func(ctx context.Context) error {
		for _, stmt := range []string{
			"GRANT ALL PRIVILEGES ON ALL TABLES IN SCHEMA public TO " + ident,
			"GRANT ALL PRIVILEGES ON ALL SEQUENCES IN SCHEMA public TO " + ident,
		} {
			if _, err := s.q.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return MapError(err, "grant privileges")
	}
	s.log.Info("privileges granted", slog.String("role", role))
	return nil
}

// FirstnameSummary counts stored rows per (year, gender), ordered by year.
func (s *Schema) FirstnameSummary(ctx context.Context) ([]domain.YearSummary, error) {
	var out []domain.YearSummary
	err := Guarded(ctx, s.q, func(ctx context.Context) error {
		var err error
		out, err = s.firstnameSummary(ctx)
		return err
	})
	return out, err
}

func (s *Schema) firstnameSummary(ctx context.Context) ([]domain.YearSummary, error) {
	rows, err := s.q.Query(ctx,
		`SELECT year, gender, COUNT(*) FROM firstnames GROUP BY year, gender ORDER BY year, gender`)
	if err != nil {
		return nil, MapError(err, "firstname summary")
	}
	defer rows.Close()

	var out []domain.YearSummary
	for rows.Next() {
		var (
			ys     domain.YearSummary
			gender string
		)
		if err := rows.Scan(&ys.Year, &gender, &ys.Rows); err != nil {
			return nil, MapError(err, "scan firstname summary")
		}
		ys.Gender = domain.Gender(gender)
		out = append(out, ys)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err, "firstname summary")
	}
	return out, nil
}

// RecordRun stores the outcome of a finished load in load_runs.
func (s *Schema) RecordRun(ctx context.Context, r *domain.Report) error {
	err := Guarded(ctx, s.q, func(ctx context.Context) error {
		_, err := s.q.Exec(ctx,
			`INSERT INTO load_runs (run_id, dataset, processed, written, skipped, cumulative, duration_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.RunID, r.Dataset, r.Processed, r.Written, r.Skipped, r.Cumulative, r.Duration.Milliseconds(),
		)
		return err
	})
	if err != nil {
		return MapError(err, "record run")
	}
	return nil
}
