package names

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/names-loader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCopier captures the COPY payload. readFirst controls whether the
// payload is consumed before err is returned.
type fakeCopier struct {
	sql       string
	data      bytes.Buffer
	err       error
	readFirst bool
	calls     int
}

func (f *fakeCopier) CopyFrom(_ context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	f.calls++
	f.sql = sql
	if f.err != nil && !f.readFirst {
		return pgconn.CommandTag{}, f.err
	}
	if _, err := io.Copy(&f.data, r); err != nil {
		return pgconn.CommandTag{}, err
	}
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	lines := strings.Count(f.data.String(), "\n")
	return pgconn.NewCommandTag(fmt.Sprintf("COPY %d", lines)), nil
}

func TestCopyWriter_WriteRecords(t *testing.T) {
	t.Parallel()

	fc := &fakeCopier{}
	w := NewCopyWriter(fc, discardLogger())

	records := []domain.Record{
		{Name: "Mary", Gender: "F", Count: 100, Rank: 1, Year: 1990},
		{Name: "John", Gender: "M", Count: 90, Rank: 1, Year: 1990},
	}
	res, err := w.WriteRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}
	if res.Written != 2 || len(res.Failures) != 0 {
		t.Errorf("result = %+v, want 2 written, no failures", res)
	}
	if fc.sql != copyFirstnamesSQL {
		t.Errorf("sql = %q", fc.sql)
	}
	want := "Mary,F,100,1,1990\nJohn,M,90,1,1990\n"
	if fc.data.String() != want {
		t.Errorf("payload = %q, want %q", fc.data.String(), want)
	}
}

func TestCopyWriter_Empty(t *testing.T) {
	t.Parallel()

	fc := &fakeCopier{}
	res, err := NewCopyWriter(fc, discardLogger()).WriteRecords(context.Background(), nil)
	if err != nil || res.Written != 0 {
		t.Fatalf("WriteRecords(nil) = (%+v, %v)", res, err)
	}
	if fc.calls != 0 {
		t.Errorf("empty batch issued %d COPY statements", fc.calls)
	}
}

func TestCopyWriter_EncodingRoundTrip(t *testing.T) {
	t.Parallel()

	names := []string{
		`Smith, Jr`,
		`O"Neil`,
		"Line\nBreak",
		` Leading`,
		`\.`,
		"Renée",
	}
	var records []domain.Record
	for i, n := range names {
		records = append(records, domain.Record{Name: n, Gender: "F", Count: 10 - i, Rank: i + 1, Year: 2001})
	}

	fc := &fakeCopier{}
	if _, err := NewCopyWriter(fc, discardLogger()).WriteRecords(context.Background(), records); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}

	got, err := csv.NewReader(&fc.data).ReadAll()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(got) != len(names) {
		t.Fatalf("decoded %d rows, want %d", len(got), len(names))
	}
	for i, row := range got {
		if row[0] != names[i] {
			t.Errorf("row %d name = %q, want %q", i, row[0], names[i])
		}
	}
}

func TestCopyWriter_BatchFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		readFirst bool
		wantIs    error
	}{
		{
			name:      "unique violation after reading",
			err:       &pgconn.PgError{Code: "23505", Message: "duplicate key value"},
			readFirst: true,
			wantIs:    domain.ErrDuplicateKey,
		},
		{
			name:   "server stops reading early",
			err:    &pgconn.PgError{Code: "22P04", Message: "bad copy data"},
			wantIs: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fc := &fakeCopier{err: tt.err, readFirst: tt.readFirst}
			records := make([]domain.Record, 50)
			for i := range records {
				records[i] = domain.Record{Name: fmt.Sprintf("n%d", i), Gender: "M", Count: 1, Rank: i + 1, Year: 1999}
			}

			res, err := NewCopyWriter(fc, discardLogger()).WriteRecords(context.Background(), records)

			var batchErr *domain.BatchError
			if !errors.As(err, &batchErr) {
				t.Fatalf("error = %v, want *domain.BatchError", err)
			}
			if batchErr.Size != len(records) {
				t.Errorf("BatchError.Size = %d, want %d", batchErr.Size, len(records))
			}
			if !domain.IsFatal(err) {
				t.Error("batch error must be fatal")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want wrapping %v", err, tt.wantIs)
			}
			if res.Written != 0 || len(res.Failures) != len(records) {
				t.Errorf("result written=%d failures=%d, want 0/%d", res.Written, len(res.Failures), len(records))
			}
		})
	}
}
