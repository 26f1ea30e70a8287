package detector

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// TitleSimilarity returns the character-level sequence matching ratio of two
// normalized titles in [0, 1]. Arguments are put in a fixed order first so
// the result does not depend on which title is passed first.
func TitleSimilarity(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
