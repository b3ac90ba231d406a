package arabic

import (
	"log/slog"

	"golang.org/x/text/unicode/bidi"
)

// segment is one directional run with its resolved embedding level.
type segment struct {
	text  string
	level int
	rtl   bool
}

// Display shapes s and reorders it for a left-to-right renderer. The base
// direction follows the first strong character.
func Display(s string) string {
	if !ContainsArabic(s) {
		return s
	}
	shaped := Reshape(s)
	base := baseDirection(shaped)

	var p bidi.Paragraph
	if _, err := p.SetString(shaped, bidi.DefaultDirection(base)); err != nil {
		slog.Debug("bidi paragraph rejected", "error", err)
		return shaped
	}
	order, err := p.Order()
	if err != nil {
		slog.Debug("bidi ordering failed", "error", err)
		return shaped
	}

	segs := make([]segment, 0, order.NumRuns())
	for i := range order.NumRuns() {
		r := order.Run(i)
		seg := segment{text: r.String(), rtl: r.Direction() == bidi.RightToLeft}
		if seg.rtl {
			seg.level = 1
		}
		segs = append(segs, seg)
	}
	assignLevels(segs, base)
	return visual(segs)
}

// baseDirection returns the direction of the first strong character.
func baseDirection(s string) bidi.Direction {
	for _, r := range s {
		p, _ := bidi.LookupRune(r)
		switch p.Class() {
		case bidi.L:
			return bidi.LeftToRight
		case bidi.R, bidi.AL:
			return bidi.RightToLeft
		}
	}
	return bidi.LeftToRight
}

// assignLevels raises left-to-right runs that sit inside right-to-left text
// to level 2. In a right-to-left paragraph that is every such run; in a
// left-to-right paragraph it is a run without strong letters that follows a
// right-to-left run, which is how numbers resolve after Arabic.
func assignLevels(segs []segment, base bidi.Direction) {
	for i := range segs {
		if segs[i].rtl {
			continue
		}
		switch {
		case base == bidi.RightToLeft:
			segs[i].level = 2
		case i > 0 && segs[i-1].rtl && !hasStrongLTR(segs[i].text):
			segs[i].level = 2
		}
	}
}

func hasStrongLTR(s string) bool {
	for _, r := range s {
		if p, _ := bidi.LookupRune(r); p.Class() == bidi.L {
			return true
		}
	}
	return false
}

// visual reverses every maximal sequence of runs at level 1 or above. Text
// inside odd-level runs is reversed with brackets mirrored; even-level runs
// keep their logical order.
func visual(segs []segment) string {
	for i := 0; i < len(segs); {
		if segs[i].level == 0 {
			i++
			continue
		}
		j := i
		for j < len(segs) && segs[j].level > 0 {
			j++
		}
		for a, b := i, j-1; a < b; a, b = a+1, b-1 {
			segs[a], segs[b] = segs[b], segs[a]
		}
		i = j
	}
	var out []byte
	for _, seg := range segs {
		if seg.level%2 == 1 {
			out = append(out, Reverse(seg.text)...)
			continue
		}
		out = append(out, seg.text...)
	}
	return string(out)
}

// Reverse mirrors the rune order of s and swaps paired brackets.
func Reverse(s string) string {
	return bidi.ReverseString(s)
}
