package domain

import "math"

// CumulativeYear is the reserved year of the all-years aggregate rows.
// No data file may map to it.
const CumulativeYear = 0

// MaxNameLength is the width of the name column, in characters.
const MaxNameLength = 30

// MaxCount is the largest value an INTEGER column holds.
const MaxCount = math.MaxInt32

// Key identifies a name across years.
type Key struct {
	Name   string
	Gender Gender
}

// Record is one row of the firstnames table.
type Record struct {
	Name   string
	Gender Gender
	Count  int
	Rank   int
	Year   int
}

// Key returns the (name, gender) pair the record aggregates under.
func (r Record) Key() Key {
	return Key{Name: r.Name, Gender: r.Gender}
}

// IsCumulative reports whether r is an all-years aggregate row.
func (r Record) IsCumulative() bool {
	return r.Year == CumulativeYear
}

// Column describes one column of the wide census file, in header order.
type Column struct {
	Name string
	Type ColumnType
}

// WideRow is one data row of the census file. Fields[0] is the name; an
// empty field is stored as NULL.
type WideRow struct {
	Line   int
	Fields []string
}

// Name returns the name column of the row.
func (r WideRow) Name() string {
	if len(r.Fields) == 0 {
		return ""
	}
	return r.Fields[0]
}

// WriteFailure is a record the destination did not accept, with the reason.
type WriteFailure struct {
	Record Record
	Reason error
}

// WriteResult is the outcome of delivering a sequence of records.
type WriteResult struct {
	Written  int
	Failures []WriteFailure
}

// Merge adds other into r.
func (r *WriteResult) Merge(other WriteResult) {
	r.Written += other.Written
	r.Failures = append(r.Failures, other.Failures...)
}

// YearSummary is the row count of one (year, gender) group in the destination.
type YearSummary struct {
	Year   int
	Gender Gender
	Rows   int
}
