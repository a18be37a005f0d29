// Package ranking assigns per-year ranks and computes cumulative ranks.
// Pure in-memory logic: no I/O, no database dependencies.
package ranking

import (
	"fmt"

	"github.com/heartmarshall/names-loader/internal/domain"
)

type groupKey struct {
	year   int
	gender domain.Gender
}

// YearRanker assigns ranks within each (year, gender) group in arrival order.
// Input files are sorted by descending count, so arrival order is popularity order.
type YearRanker struct {
	counters map[groupKey]int
}

// NewYearRanker creates an empty YearRanker.
func NewYearRanker() *YearRanker {
	return &YearRanker{counters: make(map[groupKey]int)}
}

// Assign validates the record gender and sets rec.Rank to the next rank of
// its group. A record with an invalid gender leaves every counter unchanged.
func (r *YearRanker) Assign(rec *domain.Record) error {
	g, err := domain.ParseGender(string(rec.Gender))
	if err != nil {
		return err
	}
	rec.Gender = g

	key := groupKey{year: rec.Year, gender: g}
	r.counters[key]++
	rec.Rank = r.counters[key]
	return nil
}

// GroupSize returns how many records were ranked for (year, gender).
func (r *YearRanker) GroupSize(year int, g domain.Gender) int {
	return r.counters[groupKey{year: year, gender: g}]
}

// OrderChecker detects input that is not sorted by descending count within a
// (year, gender) group, which would make arrival-order ranks meaningless.
type OrderChecker struct {
	policy domain.OrderPolicy
	last   map[groupKey]int
}

// NewOrderChecker creates an OrderChecker with the given policy.
func NewOrderChecker(policy domain.OrderPolicy) *OrderChecker {
	return &OrderChecker{policy: policy, last: make(map[groupKey]int)}
}

// Check compares rec with the previous record of its group. It returns
// violation=true when rec.Count exceeds its predecessor. Under the strict
// policy a violation is also returned as an error wrapping domain.ErrUnsortedInput.
func (c *OrderChecker) Check(rec domain.Record) (violation bool, err error) {
	key := groupKey{year: rec.Year, gender: rec.Gender}
	prev, seen := c.last[key]
	c.last[key] = rec.Count
	if !seen || rec.Count <= prev {
		return false, nil
	}
	if c.policy == domain.OrderPolicyStrict {
		return true, fmt.Errorf("%s %s/%d rank %d: count %d after %d: %w",
			rec.Name, rec.Gender, rec.Year, rec.Rank, rec.Count, prev, domain.ErrUnsortedInput)
	}
	return true, nil
}
