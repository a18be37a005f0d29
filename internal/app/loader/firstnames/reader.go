// Package firstnames reads the per-year first-name files: one headerless
// name,gender,count CSV per year, named after the year (1990.csv).
package firstnames

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
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/heartmarshall/names-loader/internal/domain"
)

const fieldsPerRow = 3

// File is one yearly input file.
type File struct {
	Path string
	Year int
}

// Dataset is the ordered set of yearly files found in a directory.
type Dataset struct {
	dir   string
	files []File
	log   *slog.Logger
}

// Open lists the *.csv files of dir in filename order. A file whose stem is
// not an integer is skipped with a warning. A stem of zero or below is
// rejected with domain.ErrReservedYear, since year 0 holds the cumulative rows.
// Two files naming the same year (1990.csv, 01990.csv) are rejected with
// domain.ErrDuplicateYear.
func Open(dir string, log *slog.Logger) (*Dataset, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.SourceNotFoundError{Path: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", dir, domain.ErrSourceNotFound)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	slices.Sort(paths)

	d := &Dataset{dir: dir, log: log}
	byYear := make(map[int]string, len(paths))
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		year, err := strconv.Atoi(stem)
		if err != nil {
			log.Warn("skipping file without a year name", slog.String("file", p))
			continue
		}
		if year <= domain.CumulativeYear {
			return nil, fmt.Errorf("%s: year %d: %w", p, year, domain.ErrReservedYear)
		}
		if prev, ok := byYear[year]; ok {
			return nil, fmt.Errorf("%s and %s: year %d: %w", prev, p, year, domain.ErrDuplicateYear)
		}
		byYear[year] = p
		d.files = append(d.files, File{Path: p, Year: year})
	}
	return d, nil
}

// Files returns the files that will be read, in read order.
func (d *Dataset) Files() []File {
	return d.files
}

// Records yields every row of every file in file order, then row order.
// Row-level problems are yielded as *domain.MalformedInputError and reading
// continues; any other error is the last value yielded. Gender is passed
// through unvalidated.
func (d *Dataset) Records(ctx context.Context) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		for _, f := range d.files {
			d.log.Info("reading file", slog.String("file", f.Path), slog.Int("year", f.Year))
			if !readFile(ctx, f, yield) {
				return
			}
		}
	}
}

// readFile yields the rows of f and reports whether iteration should go on.
func readFile(ctx context.Context, f File, yield func(domain.Record, error) bool) bool {
	fh, err := os.Open(f.Path)
	if err != nil {
		yield(domain.Record{}, fmt.Errorf("open %s: %w", f.Path, err))
		return false
	}
	defer fh.Close()

	r := csv.NewReader(bufio.NewReader(fh))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for {
		if err := ctx.Err(); err != nil {
			yield(domain.Record{}, err)
			return false
		}

		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				yield(domain.Record{}, fmt.Errorf("read %s: %w", f.Path, err))
				return false
			}
			if !yield(domain.Record{}, &domain.MalformedInputError{Source: f.Path, Line: pe.StartLine, Reason: pe.Err.Error()}) {
				return false
			}
			continue
		}

		line, _ := r.FieldPos(0)
		rec, err := parseRow(fields, f.Year)
		if err != nil {
			err = &domain.MalformedInputError{Source: f.Path, Line: line, Reason: err.Error()}
		}
		if !yield(rec, err) {
			return false
		}
	}
}

func parseRow(fields []string, year int) (domain.Record, error) {
	if len(fields) != fieldsPerRow {
		return domain.Record{}, fmt.Errorf("expected %d fields, got %d", fieldsPerRow, len(fields))
	}

	if !utf8.ValidString(fields[0]) {
		return domain.Record{}, fmt.Errorf("name %q is not valid UTF-8", fields[0])
	}
	name := domain.NormalizeName(fields[0])
	if err := domain.ValidateName(name); err != nil {
		return domain.Record{}, err
	}

	count, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return domain.Record{}, fmt.Errorf("count %q is not an integer", fields[2])
	}
	if count < 0 {
		return domain.Record{}, fmt.Errorf("count %d is negative", count)
	}
	if count > domain.MaxCount {
		return domain.Record{}, fmt.Errorf("count %d is out of range", count)
	}

	return domain.Record{
		Name:   name,
		Gender: domain.Gender(strings.TrimSpace(fields[1])),
		Count:  count,
		Year:   year,
	}, nil
}
