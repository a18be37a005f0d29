package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/names-loader/internal/domain"
)

// PostgreSQL error codes the loader distinguishes.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeStringTooLong   = "22001"
)

// MapError converts pgx/pgconn errors to domain errors. op names the failed
// operation and prefixes the message.
// context.DeadlineExceeded and context.Canceled are NOT mapped; they pass through wrapped.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.Detail, domain.ErrDuplicateKey)
		case codeCheckViolation, codeStringTooLong:
			return fmt.Errorf("%s: %s: %w", op, pgErr.Message, domain.ErrValidation)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
