package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// PairKey returns the stable conversation key for two participants: both
// emails normalized, sorted lexicographically and joined. The key is the
// same regardless of which side is "self", so all per-pair collections can
// join on it.
func PairKey(a, b string) string {
	a, b = Email(a), Email(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
