// Package strings normalizes the free-text values the registry compares:
// party names and comma separated settings.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element and drops empty and repeated ones.
// Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// NormalizeName is the comparison key for party names: lower case with runs
// of whitespace collapsed to one space.
//
//	NormalizeName("  María   LÓPEZ ") == "maría lópez"
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// SameName reports whether two party names refer to the same person.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
