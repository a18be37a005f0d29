package domain

import "strings"

// Gender is the sex column of a first-name record.
type Gender string

const (
	GenderFemale Gender = "F"
	GenderMale   Gender = "M"
)

// Genders lists the valid genders in the order cumulative rows are emitted.
var Genders = []Gender{GenderFemale, GenderMale}

func (g Gender) String() string { return string(g) }

func (g Gender) IsValid() bool {
	switch g {
	case GenderFemale, GenderMale:
		return true
	}
	return false
}

// ParseGender accepts exactly "M" or "F" (surrounding whitespace ignored).
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.TrimSpace(s))
	if !g.IsValid() {
		return "", &InvalidGenderError{Value: s}
	}
	return g, nil
}

// WriteStrategy selects how records reach the destination.
type WriteStrategy string

const (
	// WriteStrategyCopy streams batches through COPY. A bad row fails its whole batch.
	WriteStrategyCopy WriteStrategy = "copy"
	// WriteStrategyRows inserts each row on its own and skips conflicting rows.
	WriteStrategyRows WriteStrategy = "rows"
)

func (s WriteStrategy) String() string { return string(s) }

func (s WriteStrategy) IsValid() bool {
	switch s {
	case WriteStrategyCopy, WriteStrategyRows:
		return true
	}
	return false
}

// RebuildPolicy decides what happens to existing rows before a load.
type RebuildPolicy string

const (
	RebuildPolicyRebuild RebuildPolicy = "rebuild"
	RebuildPolicyAppend  RebuildPolicy = "append"
)

func (p RebuildPolicy) String() string { return string(p) }

func (p RebuildPolicy) IsValid() bool {
	switch p {
	case RebuildPolicyRebuild, RebuildPolicyAppend:
		return true
	}
	return false
}

// OrderPolicy decides how an input file that is not sorted by descending count is treated.
type OrderPolicy string

const (
	OrderPolicyWarn   OrderPolicy = "warn"
	OrderPolicyStrict OrderPolicy = "strict"
)

func (p OrderPolicy) String() string { return string(p) }

func (p OrderPolicy) IsValid() bool {
	switch p {
	case OrderPolicyWarn, OrderPolicyStrict:
		return true
	}
	return false
}

// ColumnType is the SQL type family of a census column.
type ColumnType string

const (
	ColumnTypeText    ColumnType = "text"
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeDecimal ColumnType = "decimal"
)

func (t ColumnType) String() string { return string(t) }
