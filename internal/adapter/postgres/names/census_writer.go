package names

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	postgres "github.com/heartmarshall/names-loader/internal/adapter/postgres"
	"github.com/heartmarshall/names-loader/internal/domain"
)

// CensusWriter copies wide census rows into the surnames table.
type CensusWriter struct {
	c   Copier
	log *slog.Logger
}

// NewCensusWriter creates a CensusWriter sending batches through c.
func NewCensusWriter(c Copier, log *slog.Logger) *CensusWriter {
	return &CensusWriter{c: c, log: log}
}

// WriteRows copies rows as one batch using columns as the target column
// list. Empty fields are stored as NULL. Any failure returns a *domain.BatchError.
func (w *CensusWriter) WriteRows(ctx context.Context, columns []domain.Column, rows []domain.WideRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := copyCSV(ctx, w.c, copySurnamesSQL(columns), func(cw *csv.Writer) error {
		for _, r := range rows {
			if len(r.Fields) != len(columns) {
				return fmt.Errorf("line %d: %d fields for %d columns: %w",
					r.Line, len(r.Fields), len(columns), domain.ErrMalformedInput)
			}
			if err := cw.Write(r.Fields); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, &domain.BatchError{Size: len(rows), Err: postgres.MapError(err, "copy surnames")}
	}
	w.log.Debug("census batch copied", slog.Int("rows", int(n)))
	return int(n), nil
}

func copySurnamesSQL(columns []domain.Column) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = pgx.Identifier{c.Name}.Sanitize()
	}
	return "COPY surnames (" + strings.Join(names, ", ") + ") FROM STDIN WITH (FORMAT csv)"
}
