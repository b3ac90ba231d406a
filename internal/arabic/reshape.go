// Package arabic prepares right-to-left Arabic text for display: contextual
// glyph shaping followed by visual reordering.
package arabic

import "strings"

// forms holds the isolated, final, initial and medial presentation forms of a
// letter. Letters that only join to the preceding letter have no initial or
// medial form.
type forms [4]rune

const (
	isolated = iota
	final
	initial
	medial
)

const (
	lam      = '\u0644'
	tatweel  = '\u0640'
	zwj      = '\u200D'
	zwnj     = '\u200C'
	alefMadd = '\u0622'
	alefHmzA = '\u0623'
	alefHmzB = '\u0625'
	alef     = '\u0627'
)

var letterForms = map[rune]forms{
	'\u0621': {0xFE80, 0, 0, 0},
	'\u0622': {0xFE81, 0xFE82, 0, 0},
	'\u0623': {0xFE83, 0xFE84, 0, 0},
	'\u0624': {0xFE85, 0xFE86, 0, 0},
	'\u0625': {0xFE87, 0xFE88, 0, 0},
	'\u0626': {0xFE89, 0xFE8A, 0xFE8B, 0xFE8C},
	'\u0627': {0xFE8D, 0xFE8E, 0, 0},
	'\u0628': {0xFE8F, 0xFE90, 0xFE91, 0xFE92},
	'\u0629': {0xFE93, 0xFE94, 0, 0},
	'\u062A': {0xFE95, 0xFE96, 0xFE97, 0xFE98},
	'\u062B': {0xFE99, 0xFE9A, 0xFE9B, 0xFE9C},
	'\u062C': {0xFE9D, 0xFE9E, 0xFE9F, 0xFEA0},
	'\u062D': {0xFEA1, 0xFEA2, 0xFEA3, 0xFEA4},
	'\u062E': {0xFEA5, 0xFEA6, 0xFEA7, 0xFEA8},
	'\u062F': {0xFEA9, 0xFEAA, 0, 0},
	'\u0630': {0xFEAB, 0xFEAC, 0, 0},
	'\u0631': {0xFEAD, 0xFEAE, 0, 0},
	'\u0632': {0xFEAF, 0xFEB0, 0, 0},
	'\u0633': {0xFEB1, 0xFEB2, 0xFEB3, 0xFEB4},
	'\u0634': {0xFEB5, 0xFEB6, 0xFEB7, 0xFEB8},
	'\u0635': {0xFEB9, 0xFEBA, 0xFEBB, 0xFEBC},
	'\u0636': {0xFEBD, 0xFEBE, 0xFEBF, 0xFEC0},
	'\u0637': {0xFEC1, 0xFEC2, 0xFEC3, 0xFEC4},
	'\u0638': {0xFEC5, 0xFEC6, 0xFEC7, 0xFEC8},
	'\u0639': {0xFEC9, 0xFECA, 0xFECB, 0xFECC},
	'\u063A': {0xFECD, 0xFECE, 0xFECF, 0xFED0},
	'\u0641': {0xFED1, 0xFED2, 0xFED3, 0xFED4},
	'\u0642': {0xFED5, 0xFED6, 0xFED7, 0xFED8},
	'\u0643': {0xFED9, 0xFEDA, 0xFEDB, 0xFEDC},
	'\u0644': {0xFEDD, 0xFEDE, 0xFEDF, 0xFEE0},
	'\u0645': {0xFEE1, 0xFEE2, 0xFEE3, 0xFEE4},
	'\u0646': {0xFEE5, 0xFEE6, 0xFEE7, 0xFEE8},
	'\u0647': {0xFEE9, 0xFEEA, 0xFEEB, 0xFEEC},
	'\u0648': {0xFEED, 0xFEEE, 0, 0},
	'\u0649': {0xFEEF, 0xFEF0, 0, 0},
	'\u064A': {0xFEF1, 0xFEF2, 0xFEF3, 0xFEF4},
	// Urdu and Persian letters from Presentation Forms-A.
	'\u067E': {0xFB56, 0xFB57, 0xFB58, 0xFB59},
	'\u0686': {0xFB7A, 0xFB7B, 0xFB7C, 0xFB7D},
	'\u0698': {0xFB8A, 0xFB8B, 0, 0},
	'\u06A9': {0xFB8E, 0xFB8F, 0xFB90, 0xFB91},
	'\u06AF': {0xFB92, 0xFB93, 0xFB94, 0xFB95},
	'\u06CC': {0xFBFC, 0xFBFD, 0xFBFE, 0xFBFF},
}

// lamAlef maps the alef that follows a lam to the isolated and final ligature.
var lamAlef = map[rune][2]rune{
	alefMadd: {0xFEF5, 0xFEF6},
	alefHmzA: {0xFEF7, 0xFEF8},
	alefHmzB: {0xFEF9, 0xFEFA},
	alef:     {0xFEFB, 0xFEFC},
}

// isTransparent reports combining marks that do not break joining.
func isTransparent(r rune) bool {
	return (r >= '\u064B' && r <= '\u065F') || r == '\u0670' || (r >= '\u06D6' && r <= '\u06ED')
}

// joinsForward reports whether r connects to the letter after it.
func joinsForward(r rune) bool {
	if r == tatweel || r == zwj {
		return true
	}
	f, ok := letterForms[r]
	return ok && f[initial] != 0
}

// joinsBackward reports whether r connects to the letter before it.
func joinsBackward(r rune) bool {
	if r == tatweel || r == zwj {
		return true
	}
	f, ok := letterForms[r]
	return ok && f[final] != 0
}

// Reshape replaces Arabic letters with their contextual presentation forms,
// including lam-alef ligatures. The result stays in logical order.
func Reshape(s string) string {
	if !ContainsArabic(s) {
		return s
	}
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		f, ok := letterForms[r]
		if !ok {
			b.WriteRune(r)
			continue
		}

		prev := neighbor(rs, i, -1)
		prevJoins := prev != 0 && joinsForward(prev)

		if r == lam {
			if j := nextIndex(rs, i); j > 0 {
				if lig, ok := lamAlef[rs[j]]; ok {
					if prevJoins {
						b.WriteRune(lig[1])
					} else {
						b.WriteRune(lig[0])
					}
					// Marks between lam and alef are kept after the ligature.
					for k := i + 1; k < j; k++ {
						b.WriteRune(rs[k])
					}
					i = j
					continue
				}
			}
		}

		next := neighbor(rs, i, 1)
		nextJoins := next != 0 && joinsBackward(next) && f[initial] != 0
		prevJoins = prevJoins && f[final] != 0

		switch {
		case prevJoins && nextJoins:
			b.WriteRune(f[medial])
		case prevJoins:
			b.WriteRune(f[final])
		case nextJoins:
			b.WriteRune(f[initial])
		default:
			b.WriteRune(f[isolated])
		}
	}
	return b.String()
}

// neighbor returns the closest non-transparent rune before (dir<0) or after
// (dir>0) position i, or 0 when there is none or a non-joiner intervenes.
func neighbor(rs []rune, i, dir int) rune {
	for j := i + dir; j >= 0 && j < len(rs); j += dir {
		if isTransparent(rs[j]) {
			continue
		}
		if rs[j] == zwnj {
			return 0
		}
		return rs[j]
	}
	return 0
}

func nextIndex(rs []rune, i int) int {
	for j := i + 1; j < len(rs); j++ {
		if !isTransparent(rs[j]) {
			return j
		}
	}
	return -1
}

// ContainsArabic reports whether s has any rune in the Arabic blocks.
func ContainsArabic(s string) bool {
	for _, r := range s {
		if isArabic(r) {
			return true
		}
	}
	return false
}

func isArabic(r rune) bool {
	return (r >= '\u0600' && r <= '\u06FF') ||
		(r >= '\uFB50' && r <= '\uFDFF') ||
		(r >= '\uFE70' && r <= '\uFEFF')
}
