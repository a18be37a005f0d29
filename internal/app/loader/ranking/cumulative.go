package ranking

import (
	"cmp"
	"slices"

	"github.com/heartmarshall/names-loader/internal/domain"
)

// Entry is the running all-years total of one (name, gender) pair.
type Entry struct {
	Key   domain.Key
	Total int
}

// CumulativeIndex accumulates totals per (name, gender) over the whole input.
// It holds one entry per distinct pair, so memory follows name cardinality,
// not row count. It is finalized exactly once.
type CumulativeIndex struct {
	entries   map[domain.Key]*Entry
	finalized bool
}

// NewCumulativeIndex creates an empty index.
func NewCumulativeIndex() *CumulativeIndex {
	return &CumulativeIndex{entries: make(map[domain.Key]*Entry)}
}

// GetOrInsert returns the entry for key, creating it with a zero total if
// absent. After Finalize it returns domain.ErrIndexFinalized.
func (idx *CumulativeIndex) GetOrInsert(key domain.Key) (*Entry, error) {
	if idx.finalized {
		return nil, domain.ErrIndexFinalized
	}
	e, ok := idx.entries[key]
	if !ok {
		e = &Entry{Key: key}
		idx.entries[key] = e
	}
	return e, nil
}

// Add adds rec.Count to the total of rec's (name, gender).
func (idx *CumulativeIndex) Add(rec domain.Record) error {
	e, err := idx.GetOrInsert(rec.Key())
	if err != nil {
		return err
	}
	e.Total += rec.Count
	return nil
}

// Len returns the number of distinct (name, gender) pairs seen.
func (idx *CumulativeIndex) Len() int {
	return len(idx.entries)
}

// Finalize ranks every gender group by descending total, ties broken by
// ascending name, and returns one year-0 record per entry ordered by gender
// (F, M) then rank. The index is released afterwards; a second call or any
// later Add returns domain.ErrIndexFinalized.
func (idx *CumulativeIndex) Finalize() ([]domain.Record, error) {
	if idx.finalized {
		return nil, domain.ErrIndexFinalized
	}
	idx.finalized = true

	byGender := make(map[domain.Gender][]*Entry, len(domain.Genders))
	for _, e := range idx.entries {
		byGender[e.Key.Gender] = append(byGender[e.Key.Gender], e)
	}
	idx.entries = nil

	records := make([]domain.Record, 0, len(byGender[domain.GenderFemale])+len(byGender[domain.GenderMale]))
	for _, g := range domain.Genders {
		group := byGender[g]
		slices.SortFunc(group, compareEntries)
		for i, e := range group {
			records = append(records, domain.Record{
				Name:   e.Key.Name,
				Gender: g,
				Count:  e.Total,
				Rank:   i + 1,
				Year:   domain.CumulativeYear,
			})
		}
	}
	return records, nil
}

// compareEntries orders by descending total, then ascending name.
func compareEntries(a, b *Entry) int {
	if c := cmp.Compare(b.Total, a.Total); c != 0 {
		return c
	}
	return cmp.Compare(a.Key.Name, b.Key.Name)
}
