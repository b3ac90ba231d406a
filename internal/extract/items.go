package extract

import (
	"sort"
	"strings"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

// minItemConfidence drops detections too weak for positional heuristics.
const minItemConfidence = 0.3

// item is a trimmed detection with its box centre.
type item struct {
	Text       string
	X, Y       float64
	Confidence float64
}

// items keeps the detections above minItemConfidence and orders them top to
// bottom by box centre. Equal rows keep their input order.
func items(set detection.Set) []item {
	out := make([]item, 0, len(set))
	for _, d := range set {
		if d.Confidence <= minItemConfidence {
			continue
		}
		c := d.Box.Centroid()
		out = append(out, item{Text: strings.TrimSpace(d.Text), X: c.X, Y: c.Y, Confidence: d.Confidence})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Y < out[j].Y })
	return out
}

func joinTexts(its []item) string {
	parts := make([]string, len(its))
	for i, it := range its {
		parts[i] = it.Text
	}
	return strings.Join(parts, " ")
}

func orNotFound(s string) string {
	if s == "" {
		return NotFound
	}
	return s
}
