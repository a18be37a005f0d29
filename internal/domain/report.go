package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultSampleSize is how many skip reasons a Report keeps when no size is given.
const DefaultSampleSize = 20

// SkipKind classifies a skipped row in the run report.
type SkipKind string

const (
	SkipMalformed     SkipKind = "malformed"
	SkipInvalidGender SkipKind = "invalid_gender"
	SkipDuplicate     SkipKind = "duplicate"
	SkipRejected      SkipKind = "rejected"
)

// ClassifySkip maps a per-row error to its SkipKind.
func ClassifySkip(err error) SkipKind {
	switch {
	case errors.Is(err, ErrMalformedInput):
		return SkipMalformed
	case errors.Is(err, ErrInvalidGender):
		return SkipInvalidGender
	case errors.Is(err, ErrDuplicateKey):
		return SkipDuplicate
	default:
		return SkipRejected
	}
}

// Report is the user-visible summary of one run. Non-fatal errors end up
// here instead of being returned.
type Report struct {
	RunID         uuid.UUID
	Dataset       string
	Processed     int
	Written       int
	Skipped       int
	SkippedByKind map[SkipKind]int
	OrderWarnings int
	Cumulative    int
	Samples       []string
	Duration      time.Duration

	sampleSize int
}

// NewReport creates an empty report for dataset. sampleSize <= 0 means DefaultSampleSize.
func NewReport(dataset string, sampleSize int) *Report {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Report{
		RunID:         uuid.New(),
		Dataset:       dataset,
		SkippedByKind: make(map[SkipKind]int),
		sampleSize:    sampleSize,
	}
}

// Skip records one skipped row.
func (r *Report) Skip(err error) {
	r.Skipped++
	r.SkippedByKind[ClassifySkip(err)]++
	if len(r.Samples) < r.sampleSize {
		r.Samples = append(r.Samples, err.Error())
	}
}

// AddWriteResult folds a writer result into the report.
func (r *Report) AddWriteResult(res WriteResult) {
	r.Written += res.Written
	for _, f := range res.Failures {
		r.Skip(f.Reason)
	}
}
