package doorbank

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string (e.g., "Cửa" -> "Cua").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName folds a door name for comparison (no diacritics, lowercase, underscores for dashes and spaces).
func NormalizeName(name string) string {
	name = removeDiacritics(strings.TrimSpace(name))
	name = strings.ToLower(name)
	return strings.NewReplacer("-", "_", " ", "_").Replace(name)
}
