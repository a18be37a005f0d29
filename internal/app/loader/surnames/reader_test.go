package surnames

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/heartmarshall/names-loader/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCensus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surnames_2010Census.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write census: %v", err)
	}
	return path
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), testLogger())
	var nf *domain.SourceNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *SourceNotFoundError", err)
	}
}

func TestColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  []string
		want    []domain.Column
		wantErr bool
	}{
		{
			name:   "census header",
			header: []string{"\ufeffname", "rank", "count", "prop100k", "cum_prop100k", "pctwhite"},
			want: []domain.Column{
				{Name: "name", Type: domain.ColumnTypeText},
				{Name: "rank", Type: domain.ColumnTypeInteger},
				{Name: "count", Type: domain.ColumnTypeInteger},
				{Name: "prop100k", Type: domain.ColumnTypeDecimal},
				{Name: "cum_prop100k", Type: domain.ColumnTypeDecimal},
				{Name: "pctwhite", Type: domain.ColumnTypeDecimal},
			},
		},
		{
			name:   "upper case header lower-cased",
			header: []string{"NAME", "RANK"},
			want: []domain.Column{
				{Name: "name", Type: domain.ColumnTypeText},
				{Name: "rank", Type: domain.ColumnTypeInteger},
			},
		},
		{name: "injection attempt", header: []string{"name", "rank); DROP TABLE firstnames; --"}, wantErr: true},
		{name: "duplicate column", header: []string{"name", "count", "count"}, wantErr: true},
		{name: "name only", header: []string{"name"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Columns(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Columns() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(got, tt.want) {
				t.Errorf("Columns() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRows(t *testing.T) {
	t.Parallel()

	path := writeCensus(t, "name,rank,count,prop100k,pctwhite\n"+
		"SMITH,1,2442977,828.19,70.9\n"+
		"JOHNSON,2,1932812,655.24,(S)\n"+
		"BROKEN,3\n"+
		"WILLIAMS,x,1625252,551.12,45.75\n"+
		"JONES,4,1425470,483.42,abc\n"+
		"BROWN,5,1437026,487.35,57.95\n")

	d, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var rows []domain.WideRow
	var errs []error
	for row, err := range d.Rows(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if want := []string{"Smith", "1", "2442977", "828.19", "70.9"}; !slices.Equal(rows[0].Fields, want) {
		t.Errorf("row 0 = %q, want %q", rows[0].Fields, want)
	}
	if rows[0].Line != 2 {
		t.Errorf("row 0 line = %d, want 2", rows[0].Line)
	}
	if rows[1].Fields[4] != "" {
		t.Errorf("suppressed value = %q, want empty (NULL)", rows[1].Fields[4])
	}
	if rows[2].Name() != "Brown" {
		t.Errorf("row 2 name = %q, want Brown", rows[2].Name())
	}

	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
	for i, err := range errs {
		if !errors.Is(err, domain.ErrMalformedInput) {
			t.Errorf("error %d = %v, want ErrMalformedInput", i, err)
		}
	}
}

func TestRows_UnstorableValuesAreMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  string
	}{
		{"count above integer range", "SMITH,1,3000000000,828.19\n"},
		{"negative rank", "SMITH,-1,2442977,828.19\n"},
		{"negative count", "SMITH,1,-5,828.19\n"},
		{"name not utf-8", "\xff\xfe,1,2442977,828.19\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeCensus(t, "name,rank,count,prop100k\n"+tt.row+"JONES,4,1425470,483.42\n")
			d, err := Open(path, testLogger())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			var rows []domain.WideRow
			var errs []error
			for row, err := range d.Rows(context.Background()) {
				if err != nil {
					errs = append(errs, err)
					continue
				}
				rows = append(rows, row)
			}

			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			var me *domain.MalformedInputError
			if !errors.As(errs[0], &me) {
				t.Fatalf("error = %v, want *MalformedInputError", errs[0])
			}
			if me.Line != 2 {
				t.Errorf("line = %d, want 2", me.Line)
			}
			if len(rows) != 1 || rows[0].Name() != "Jones" {
				t.Errorf("rows = %+v, want only Jones", rows)
			}
		})
	}
}
