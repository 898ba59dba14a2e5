package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes s for matching: diacritics are stripped, case is folded
// and runs of whitespace collapse to a single space. "Amélie" and "AMELIE"
// fold to the same string.
func Fold(s string) string {
	// transformers carry state, so each call builds its own chain
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(strip, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}

// Contains reports whether the folded title contains the folded query.
// An empty query matches nothing.
func Contains(title, query string) bool {
	q := Fold(query)
	if q == "" {
		return false
	}
	return strings.Contains(Fold(title), q)
}
