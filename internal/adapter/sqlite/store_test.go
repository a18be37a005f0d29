package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/names-loader/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "names.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WriteRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.PrepareFirstnames(ctx, domain.RebuildPolicyRebuild))

	res, err := s.WriteRecords(ctx, []domain.Record{
		{Name: "Mary", Gender: "F", Count: 100, Rank: 1, Year: 1990},
		{Name: "Ann", Gender: "F", Count: 50, Rank: 2, Year: 1990},
		{Name: "John", Gender: "M", Count: 90, Rank: 1, Year: 1990},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)
	assert.Empty(t, res.Failures)

	summary, err := s.FirstnameSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.YearSummary{
		{Year: 1990, Gender: "F", Rows: 2},
		{Year: 1990, Gender: "M", Rows: 1},
	}, summary)
}

func TestStore_DuplicateIsRowFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	mary := domain.Record{Name: "Mary", Gender: "F", Count: 100, Rank: 1, Year: 1990}
	_, err := s.WriteRecords(ctx, []domain.Record{mary})
	require.NoError(t, err)

	ann := domain.Record{Name: "Ann", Gender: "F", Count: 50, Rank: 2, Year: 1990}
	res, err := s.WriteRecords(ctx, []domain.Record{mary, ann})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	require.Len(t, res.Failures, 1)

	var dup *domain.DuplicateKeyError
	require.True(t, errors.As(res.Failures[0].Reason, &dup))
	assert.Equal(t, mary.Key(), dup.Key)
}

func TestStore_CheckViolationIsRowFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	res, err := s.WriteRecords(ctx, []domain.Record{
		{Name: "Pat", Gender: "X", Count: 5, Rank: 1, Year: 1990},
		{Name: "Mary", Gender: "F", Count: 100, Rank: 1, Year: 1990},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Reason, domain.ErrValidation)
}

func TestStore_RebuildEmptiesTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	_, err := s.WriteRecords(ctx, []domain.Record{{Name: "Mary", Gender: "F", Count: 1, Rank: 1, Year: 1990}})
	require.NoError(t, err)
	require.NoError(t, s.CreateFirstnameIndexes(ctx))

	require.NoError(t, s.PrepareFirstnames(ctx, domain.RebuildPolicyAppend))
	summary, err := s.FirstnameSummary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary, 1)

	require.NoError(t, s.PrepareFirstnames(ctx, domain.RebuildPolicyRebuild))
	summary, err = s.FirstnameSummary(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestStore_Surnames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	columns := []domain.Column{
		{Name: "name", Type: domain.ColumnTypeText},
		{Name: "rank", Type: domain.ColumnTypeInteger},
		{Name: "count", Type: domain.ColumnTypeInteger},
		{Name: "pctwhite", Type: domain.ColumnTypeDecimal},
	}
	require.NoError(t, s.PrepareSurnames(ctx, columns))

	n, err := s.WriteRows(ctx, columns, []domain.WideRow{
		{Line: 2, Fields: []string{"Smith", "1", "2442977", "70.9"}},
		{Line: 3, Fields: []string{"Johnson", "2", "1932812", ""}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var nulls int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM surnames WHERE pctwhite IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)

	_, err = s.WriteRows(ctx, columns, []domain.WideRow{{Line: 4, Fields: []string{"Short"}}})
	var batchErr *domain.BatchError
	assert.True(t, errors.As(err, &batchErr))
}

func TestStore_RecordRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	r := domain.NewReport("firstnames", 0)
	r.Processed, r.Written, r.Duration = 10, 9, 1500*time.Millisecond
	require.NoError(t, s.RecordRun(ctx, r))

	var dataset string
	var ms int64
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT dataset, duration_ms FROM load_runs WHERE run_id = ?`, r.RunID.String()).Scan(&dataset, &ms))
	assert.Equal(t, "firstnames", dataset)
	assert.Equal(t, int64(1500), ms)
}
