// Package strings holds helpers for small ordered sets of string-like values,
// such as identity allow-lists.
package strings

import (
	"slices"
	"strings"
)

// OrderedSet trims every value, drops blanks and duplicates, and keeps the
// first occurrence order. ok is false once the set would exceed limit; a
// limit of zero or less means unbounded. The result is never nil.
func OrderedSet[S ~string](values []S, limit int) (set []S, ok bool) {
	set = make([]S, 0, len(values))
	seen := make(map[S]struct{}, len(values))
	for _, v := range values {
		trimmed := S(strings.TrimSpace(string(v)))
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		if limit > 0 && len(set) == limit {
			return nil, false
		}
		seen[trimmed] = struct{}{}
		set = append(set, trimmed)
	}
	return set, true
}

// Contains reports exact membership.
func Contains[S ~string](set []S, v S) bool {
	return slices.Contains(set, v)
}
