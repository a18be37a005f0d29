package domain

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName prepares a name for storage and aggregation:
//   - trims leading/trailing whitespace
//   - compresses runs of spaces into one
//   - converts to Unicode NFC so that composed and decomposed spellings share a key
//
// Case is preserved.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name))
	prevSpace := false
	for _, r := range name {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// ValidateName checks a normalized name against the column constraints.
func ValidateName(name string) error {
	if name == "" {
		return NewValidationError("name", "required")
	}
	if !utf8.ValidString(name) {
		return NewValidationError("name", "not valid UTF-8")
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return NewValidationError("name", "longer than 30 characters")
	}
	return nil
}
