package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// CNICDigits is the length of a Pakistani identity number.
const CNICDigits = 13

var (
	cnicLoose = regexp.MustCompile(`\d{5}[^\d]?\d{7}[^\d]?\d`)
	cnicBare  = regexp.MustCompile(`\b\d{13}\b`)
)

// Digits keeps the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCNIC renders a 13-digit number as ddddd-ddddddd-d. Separators in s
// are ignored; anything other than 13 digits is rejected.
func FormatCNIC(s string) (string, bool) {
	d := Digits(s)
	if len(d) != CNICDigits || strings.ContainsFunc(s, unicode.IsLetter) {
		return "", false
	}
	return d[:5] + "-" + d[5:12] + "-" + d[12:], true
}

// findCNIC scans text for the first identity number, trying the separated
// form before a bare run of 13 digits.
func findCNIC(text string) (string, bool) {
	for _, m := range cnicLoose.FindAllString(text, -1) {
		if d := Digits(m); len(d) == CNICDigits {
			return d[:5] + "-" + d[5:12] + "-" + d[12:], true
		}
	}
	if m := cnicBare.FindString(text); m != "" {
		return FormatCNIC(m)
	}
	return "", false
}
