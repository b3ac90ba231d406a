// Package dates holds the strict multi-layout date helpers shared by the
// document extractors.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// LayoutDotted is the canonical dd.mm.yyyy form used for ID card dates.
const LayoutDotted = "02.01.2006"

// ParseAny parses s with the first layout that accepts it.
func ParseAny(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize builds a zero-padded dd.mm.yyyy string from loose components and
// validates it as a real calendar date.
func Normalize(day, month, year string) (string, bool) {
	var d, m, y int
	if _, err := fmt.Sscanf(day+" "+month+" "+year, "%d %d %d", &d, &m, &y); err != nil {
		return "", false
	}
	t, err := time.Parse(LayoutDotted, fmt.Sprintf("%02d.%02d.%04d", d, m, y))
	if err != nil {
		return "", false
	}
	return Format(t), true
}

// Format renders t in dd.mm.yyyy.
func Format(t time.Time) string {
	return t.Format(LayoutDotted)
}

// YearsBetween returns the absolute distance between a and b in years of 365.25 days.
func YearsBetween(a, b time.Time) float64 {
	d := b.Sub(a)
	if d < 0 {
		d = -d
	}
	return d.Hours() / 24 / 365.25
}

// TitleMonth rewrites the month token of a "DD MON YYYY" string so that
// Go's case-sensitive month parsing accepts upper-case OCR output.
func TitleMonth(s string) string {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return s
	}
	m := strings.ToLower(parts[1])
	if m == "" {
		return s
	}
	parts[1] = strings.ToUpper(m[:1]) + m[1:]
	return strings.Join(parts, " ")
}
