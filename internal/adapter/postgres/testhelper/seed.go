package testhelper

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Firstname is a stored firstnames row as read back by tests.
type Firstname struct {
	Name   string
	Gender string
	Count  int
	Rank   int
	Year   int
}

// SeedFirstnames inserts rows directly, bypassing the loader.
func SeedFirstnames(t *testing.T, pool *pgxpool.Pool, rows ...Firstname) {
	t.Helper()
	ctx := context.Background()

	for _, r := range rows {
		_, err := pool.Exec(ctx,
			`INSERT INTO firstnames (name, gender, count, rank, year) VALUES ($1, $2, $3, $4, $5)`,
			r.Name, r.Gender, r.Count, r.Rank, r.Year,
		)
		if err != nil {
			t.Fatalf("testhelper: SeedFirstnames insert %s/%s/%d: %v", r.Name, r.Gender, r.Year, err)
		}
	}
}

// Firstnames returns every stored row ordered by year, gender and rank.
func Firstnames(t *testing.T, pool *pgxpool.Pool) []Firstname {
	t.Helper()

	rows, err := pool.Query(context.Background(),
		`SELECT name, gender, count, COALESCE(rank, 0), year FROM firstnames ORDER BY year, gender, rank, name`)
	if err != nil {
		t.Fatalf("testhelper: Firstnames query: %v", err)
	}
	defer rows.Close()

	var out []Firstname
	for rows.Next() {
		var f Firstname
		if err := rows.Scan(&f.Name, &f.Gender, &f.Count, &f.Rank, &f.Year); err != nil {
			t.Fatalf("testhelper: Firstnames scan: %v", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("testhelper: Firstnames rows: %v", err)
	}
	return out
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()

	var n int
	if err := pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("testhelper: CountRows %s: %v", table, err)
	}
	return n
}
