// Package textnorm provides the string transforms applied to names and titles
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var upper = cases.Upper(language.Und)

// Upper applies full Unicode upper-case mapping
func Upper(s string) string {
	return upper.String(s)
}

// notNameRune matches anything other than letters, numbers and separators
var notNameRune = runes.Predicate(func(r rune) bool {
	return !unicode.In(r, unicode.L, unicode.N, unicode.Z)
})

// StripSpecial removes every character that is not a letter, number or separator
func StripSpecial(s string) string {
	out, _, err := transform.String(runes.Remove(notNameRune), s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName upper-cases s and strips special characters.
// Leading and trailing whitespace is removed.
func NormalizeName(s string) string {
	return strings.TrimSpace(StripSpecial(Upper(s)))
}

// NormalizeTitle prepares a title for similarity matching: lower-case,
// trimmed, and reduced to letters, digits and whitespace.
func NormalizeTitle(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
