package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization for uniqueness and lookup.
// The display form is stored separately and returned as registered.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
