// Package surnames reads the wide census surname file. Its header line
// defines the columns: the first is the name, rank and count are integers,
// every other column is a decimal.
package surnames

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/heartmarshall/names-loader/internal/domain"
)

// SuppressedMarker is the census placeholder for a value withheld for privacy.
const SuppressedMarker = "(S)"

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Dataset is an opened census file with its derived column set.
type Dataset struct {
	path    string
	columns []domain.Column
	log     *slog.Logger
}

// Open checks that path exists and derives the column set from its header.
func Open(path string, log *slog.Logger) (*Dataset, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.SourceNotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header, err := csv.NewReader(bufio.NewReader(f)).Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file: %w", path, domain.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	columns, err := Columns(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Dataset{path: path, columns: columns, log: log}, nil
}

// Columns derives typed columns from a header line.
func Columns(header []string) ([]domain.Column, error) {
	if len(header) < 2 {
		return nil, domain.NewValidationError("header", "expected a name column and at least one value column")
	}

	seen := make(map[string]bool, len(header))
	columns := make([]domain.Column, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if !identRe.MatchString(name) {
			return nil, domain.NewValidationError("header", fmt.Sprintf("column %d: %q is not a valid identifier", i+1, h))
		}
		if seen[name] {
			return nil, domain.NewValidationError("header", fmt.Sprintf("duplicate column %q", name))
		}
		seen[name] = true

		typ := domain.ColumnTypeDecimal
		switch {
		case i == 0:
			typ = domain.ColumnTypeText
		case name == "rank", name == "count":
			typ = domain.ColumnTypeInteger
		}
		columns[i] = domain.Column{Name: name, Type: typ}
	}
	return columns, nil
}

// Columns returns the column set in header order.
func (d *Dataset) Columns() []domain.Column {
	return d.columns
}

// Rows yields each data row with its fields normalised for storage: the
// name title-cased, integers and decimals in canonical form, suppressed and
// empty decimals as "". Malformed rows are yielded as
// *domain.MalformedInputError and reading continues.
func (d *Dataset) Rows(ctx context.Context) iter.Seq2[domain.WideRow, error] {
	return func(yield func(domain.WideRow, error) bool) {
		f, err := os.Open(d.path)
		if err != nil {
			yield(domain.WideRow{}, fmt.Errorf("open %s: %w", d.path, err))
			return
		}
		defer f.Close()

		r := csv.NewReader(bufio.NewReader(f))
		r.FieldsPerRecord = -1
		if _, err := r.Read(); err != nil {
			yield(domain.WideRow{}, fmt.Errorf("%s: read header: %w", d.path, err))
			return
		}

		caser := cases.Title(language.Und)
		for {
			if err := ctx.Err(); err != nil {
				yield(domain.WideRow{}, err)
				return
			}

			fields, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if !errors.As(err, &pe) {
					yield(domain.WideRow{}, fmt.Errorf("read %s: %w", d.path, err))
					return
				}
				if !yield(domain.WideRow{}, &domain.MalformedInputError{Source: d.path, Line: pe.StartLine, Reason: pe.Err.Error()}) {
					return
				}
				continue
			}

			line, _ := r.FieldPos(0)
			row, err := d.parseRow(caser, fields)
			if err != nil {
				err = &domain.MalformedInputError{Source: d.path, Line: line, Reason: err.Error()}
			}
			row.Line = line
			if !yield(row, err) {
				return
			}
		}
	}
}

func (d *Dataset) parseRow(caser cases.Caser, fields []string) (domain.WideRow, error) {
	if len(fields) != len(d.columns) {
		return domain.WideRow{}, fmt.Errorf("expected %d fields, got %d", len(d.columns), len(fields))
	}

	out := make([]string, len(fields))
	for i, col := range d.columns {
		raw := strings.TrimSpace(fields[i])
		switch col.Type {
		case domain.ColumnTypeText:
			if !utf8.ValidString(raw) {
				return domain.WideRow{}, fmt.Errorf("%s %q is not valid UTF-8", col.Name, raw)
			}
			name := caser.String(domain.NormalizeName(raw))
			if err := domain.ValidateName(name); err != nil {
				return domain.WideRow{}, err
			}
			out[i] = name
		case domain.ColumnTypeInteger:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return domain.WideRow{}, fmt.Errorf("%s %q is not an integer", col.Name, raw)
			}
			if n < 0 || n > domain.MaxCount {
				return domain.WideRow{}, fmt.Errorf("%s %d is out of range", col.Name, n)
			}
			out[i] = strconv.Itoa(n)
		default:
			if raw == "" || raw == SuppressedMarker {
				continue
			}
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return domain.WideRow{}, fmt.Errorf("%s %q is not a decimal", col.Name, raw)
			}
			out[i] = v.String()
		}
	}
	return domain.WideRow{Fields: out}, nil
}
