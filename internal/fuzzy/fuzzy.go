// Package fuzzy provides normalized string similarity scores on a 0-100 scale.
package fuzzy

import (
	"github.com/agext/levenshtein"
)

// indel counts a substitution as one deletion plus one insertion, so
// Distance returns the InDel distance used by the ratio scores.
var indel = levenshtein.NewParams().SubCost(2)

// Ratio returns 100 * (1 - d / (len(a)+len(b))) where d is the InDel distance
// between a and b, measured in runes. Two empty strings are identical.
func Ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	d := levenshtein.Distance(string(a), string(b), indel)
	return 100 * (1 - float64(d)/float64(total))
}

// PartialRatio returns the best Ratio of the shorter string against every
// window of the longer one, including partial windows at both edges.
func PartialRatio(a, b string) float64 {
	s, l := []rune(a), []rune(b)
	if len(s) > len(l) {
		s, l = l, s
	}
	if len(s) == 0 {
		if len(l) == 0 {
			return 100
		}
		return 0
	}

	m, n := len(s), len(l)
	best := 0.0
	consider := func(w []rune) bool {
		if r := ratioRunes(s, w); r > best {
			best = r
		}
		return best == 100
	}
	for i := 1; i < m; i++ {
		if consider(l[:i]) {
			return best
		}
	}
	for i := 0; i+m <= n; i++ {
		if consider(l[i : i+m]) {
			return best
		}
	}
	for i := n - m + 1; i < n; i++ {
		if i > 0 && consider(l[i:]) {
			return best
		}
	}
	return best
}
