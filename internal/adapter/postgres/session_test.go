package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	postgres "github.com/heartmarshall/names-loader/internal/adapter/postgres"
	"github.com/heartmarshall/names-loader/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/names-loader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const insertMary = `INSERT INTO firstnames (name, gender, count, rank, year) VALUES ('Mary', 'F', 100, 1, 1880)`

func TestSession_RunInTx_Commit(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	err := postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			assert.True(t, s.InTx())
			_, err := s.Exec(ctx, insertMary)
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, testhelper.CountRows(t, pool, "firstnames"))
}

func TestSession_RunInTx_RollbackOnError(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		err := s.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.Exec(ctx, insertMary); err != nil {
				return err
			}
			return boom
		})
		assert.False(t, s.InTx())
		return err
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, testhelper.CountRows(t, pool, "firstnames"))
}

func TestSession_RunInTx_RollbackOnPanic(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
			return s.RunInTx(ctx, func(ctx context.Context) error {
				if _, err := s.Exec(ctx, insertMary); err != nil {
					return err
				}
				panic("writer crashed")
			})
		})
	})
	assert.Equal(t, 0, testhelper.CountRows(t, pool, "firstnames"))

	// The connection went back to the pool in a usable state.
	_, err := pool.Exec(ctx, insertMary)
	require.NoError(t, err)
}

func TestSession_RunInTx_NestedRejected(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	err := postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.RunInTx(ctx, func(context.Context) error { return nil })
		})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already open")
}

func TestSession_CopyFromInsideTx(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	err := postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			_, err := s.CopyFrom(ctx,
				strings.NewReader("Anna,F,10,1,1881\nOtto,M,5,1,1881\n"),
				`COPY firstnames (name, gender, count, rank, year) FROM STDIN WITH (FORMAT csv)`)
			if err != nil {
				return err
			}
			return errors.New("abort")
		})
	})
	require.Error(t, err)
	assert.Equal(t, 0, testhelper.CountRows(t, pool, "firstnames"))
}

func TestMapError_Integration(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, insertMary)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, insertMary)
	assert.ErrorIs(t, postgres.MapError(err, "insert"), domain.ErrDuplicateKey)

	_, err = pool.Exec(ctx, `INSERT INTO firstnames (name, gender, count, rank, year) VALUES ('Pat', 'X', 1, 1, 1880)`)
	assert.ErrorIs(t, postgres.MapError(err, "insert"), domain.ErrValidation)

	_, err = pool.Exec(ctx, `INSERT INTO firstnames (name, gender, count, rank, year) VALUES ($1, 'F', 1, 1, 1880)`,
		strings.Repeat("a", domain.MaxNameLength+1))
	assert.ErrorIs(t, postgres.MapError(err, "insert"), domain.ErrValidation)
}

func TestSession_SavepointKeepsTxUsable(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	err := postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.Exec(ctx, insertMary); err != nil {
				return err
			}

			spErr := s.Savepoint(ctx, func(ctx context.Context) error {
				_, err := s.Exec(ctx, `GRANT ALL PRIVILEGES ON ALL TABLES IN SCHEMA public TO missing_role`)
				return err
			})
			require.Error(t, spErr)
			assert.True(t, s.InTx())

			_, err := s.Exec(ctx, `INSERT INTO firstnames (name, gender, count, rank, year) VALUES ('John', 'M', 90, 1, 1880)`)
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, testhelper.CountRows(t, pool, "firstnames"))
}

func TestSession_SavepointOutsideTx(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	err := postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		return s.Savepoint(ctx, func(ctx context.Context) error {
			_, err := s.Exec(ctx, insertMary)
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, testhelper.CountRows(t, pool, "firstnames"))
}

func TestSchema_WarningStepsInsideTx(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()

	err := postgres.WithSession(ctx, pool, func(ctx context.Context, s *postgres.Session) error {
		return s.RunInTx(ctx, func(ctx context.Context) error {
			schema := postgres.NewSchema(s, discardLogger())
			if _, err := s.Exec(ctx, insertMary); err != nil {
				return err
			}
			assert.Error(t, schema.Grant(ctx, "missing_role"))
			assert.NoError(t, schema.RecordRun(ctx, domain.NewReport("firstnames", 0)))
			_, err := schema.FirstnameSummary(ctx)
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, testhelper.CountRows(t, pool, "firstnames"))
	assert.Equal(t, 1, testhelper.CountRows(t, pool, "load_runs"))
}
