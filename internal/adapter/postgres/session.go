package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the statement surface shared by Session, *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session is one connection held for the duration of a load. While RunInTx
// is active every statement, COPY included, runs inside that transaction.
// A Session is not safe for concurrent use.
type Session struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

// WithSession acquires a connection from pool, passes it to fn as a Session
// and releases it however fn ends, panics included.
func WithSession(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, s *Session) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(ctx, &Session{conn: conn})
}

func (s *Session) querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.querier().Exec(ctx, sql, args...)
}

// Query runs a statement that returns rows.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.querier().Query(ctx, sql, args...)
}

// QueryRow runs a statement that returns at most one row.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.querier().QueryRow(ctx, sql, args...)
}

// CopyFrom streams r to the server as the input of a COPY ... FROM STDIN
// statement. The data is read until EOF or until r returns an error.
func (s *Session) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return s.conn.Conn().PgConn().CopyFrom(ctx, r, sql)
}

// InTx reports whether a transaction is open on the session.
func (s *Session) InTx() bool {
	return s.tx != nil
}

// RunInTx executes fn within a transaction on the session's connection.
// Isolation level: Read Committed (PostgreSQL default).
// On success: commits.
// On error from fn: rolls back and returns the error.
// On panic from fn: rolls back and re-panics.
// Nested calls are rejected.
func (s *Session) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.tx != nil {
		return errors.New("run in tx: transaction already open on session")
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx

	defer func() {
		s.tx = nil
		if r := recover(); r != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Savepoint runs fn under a savepoint of the open transaction. If fn fails,
// only its own statements are rolled back and the transaction stays usable.
// Outside a transaction fn runs directly.
func (s *Session) Savepoint(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.tx == nil {
		return fn(ctx)
	}

	outer := s.tx
	sp, err := outer.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	s.tx = sp

	defer func() {
		s.tx = outer
		if r := recover(); r != nil {
			_ = sp.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := sp.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("rollback to savepoint failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// Guarded runs fn under a savepoint when q is a Session, and directly otherwise.
func Guarded(ctx context.Context, q any, fn func(ctx context.Context) error) error {
	if s, ok := q.(*Session); ok {
		return s.Savepoint(ctx, fn)
	}
	return fn(ctx)
}
