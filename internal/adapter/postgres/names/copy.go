// Package names writes first-name and census rows to PostgreSQL.
package names

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"
)

// Copier runs COPY ... FROM STDIN. Implemented by postgres.Session.
type Copier interface {
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
}

// copyCSV streams the rows produced by encode into one COPY statement. The
// encoder runs in its own goroutine and writes into a pipe the server reads
// from, so a batch is never materialised as a single buffer.
func copyCSV(ctx context.Context, c Copier, sql string, encode func(w *csv.Writer) error) (int64, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cw := csv.NewWriter(pw)
		err := encode(cw)
		if err == nil {
			cw.Flush()
			err = cw.Error()
		}
		pw.CloseWithError(err)
		return err
	})

	var tag pgconn.CommandTag
	g.Go(func() error {
		var err error
		tag, err = c.CopyFrom(gctx, pr, sql)
		// Unblocks the encoder if the server stopped reading early.
		pr.CloseWithError(err)
		return err
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
