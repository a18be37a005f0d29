package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")

	ErrSourceNotFound = errors.New("source not found")
	ErrMalformedInput = errors.New("malformed input")
	ErrInvalidGender  = errors.New("invalid gender")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrReservedYear   = errors.New("reserved year")
	ErrDuplicateYear  = errors.New("more than one file for a year")
	ErrUnsortedInput  = errors.New("input not sorted by count")
	ErrIndexFinalized = errors.New("cumulative index already finalized")
)

// SourceNotFoundError reports a dataset location that does not exist.
// It is fatal: the run aborts before anything is written.
type SourceNotFoundError struct {
	Path string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s", e.Path)
}

func (e *SourceNotFoundError) Unwrap() error { return ErrSourceNotFound }

// MalformedInputError describes a single row that could not be parsed.
// Line is 1-based within Source.
type MalformedInputError struct {
	Source string
	Line   int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s:%d: %s", e.Source, e.Line, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// InvalidGenderError is returned for a gender outside {M, F}.
type InvalidGenderError struct {
	Value string
}

func (e *InvalidGenderError) Error() string {
	return fmt.Sprintf("invalid gender %q", e.Value)
}

func (e *InvalidGenderError) Unwrap() error { return ErrInvalidGender }

// DuplicateKeyError reports a record whose (name, gender, year) is already stored.
type DuplicateKeyError struct {
	Key  Key
	Year int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key (%s, %s, %d)", e.Key.Name, e.Key.Gender, e.Year)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// BatchError is a failure of an atomic bulk-copy unit. Every record of the
// batch is considered unwritten.
type BatchError struct {
	Size int
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("copy batch of %d rows failed: %v", e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsRowError reports whether err only concerns a single row and the run may continue.
func IsRowError(err error) bool {
	if err == nil {
		return false
	}
	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		return false
	}
	return errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrInvalidGender) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrValidation)
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return err != nil && !IsRowError(err)
}

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}
