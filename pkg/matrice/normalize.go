// Package matrice reconciles survey respondents against the "matrice" sheet
// holding per-category averages. The two sheets share no primary key and are
// edited by hand per hotel, so matching is best-effort: normalized text
// comparison, layered search strategies, and documented tie-breaks.
package matrice

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText canonicalizes raw query identifiers and cell text for
// comparison: lowercase, accents stripped (Élodie -> elodie), whitespace and
// NBSP runs collapsed to single spaces, trimmed. Idempotent, never fails.
func NormalizeText(s string) string {
	folded, _, _ := transform.String(stripAccents, strings.ToLower(s))
	return strings.Join(strings.Fields(folded), " ")
}
