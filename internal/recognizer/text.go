package recognizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var zeroWidth = strings.NewReplacer(
	"\u200B", "", "\u200C", "", "\u200D", "", "\u2060", "", "\uFEFF", "",
)

// typographic punctuation the models emit for plain ASCII on printed cards
var asciiPunct = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201C", `"`, "\u201D", `"`,
	"\u2013", "-", "\u2014", "-", "\u00A0", " ",
)

// CleanText normalizes raw decoder output: NFC composition, zero-width and
// control characters removed, typographic punctuation folded to ASCII and
// whitespace collapsed. Arabic letters and digits are left as they are.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)
	s = zeroWidth.Replace(s)
	s = asciiPunct.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
