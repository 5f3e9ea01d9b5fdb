// Package strings holds the case-insensitive matching helpers used for
// merchant lists and in_set rule values.
package strings

import (
	"strings"
)

// Fold trims and lowercases s so identifiers compare case-insensitively.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FoldSet folds every value, dropping blanks and duplicates. Order of first
// appearance is kept.
func FoldSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		f := Fold(v)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Set is an immutable case-insensitive membership set.
type Set map[string]struct{}

// NewSet builds a Set from values.
func NewSet(values ...string) Set {
	folded := FoldSet(values)
	s := make(Set, len(folded))
	for _, v := range folded {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports membership ignoring case and surrounding whitespace.
func (s Set) Contains(v string) bool {
	_, ok := s[Fold(v)]
	return ok
}
