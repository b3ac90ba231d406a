package testutil

import (
	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// Line returns a detection on row i of a card layout.
func Line(i int, text string, conf float64) detection.Detection {
	y := float64(i * 30)
	return detection.Detection{
		Box:        detection.QuadFromBox(utils.NewBox(10, y, 300, y+20)),
		Text:       text,
		Confidence: conf,
	}
}

// Lines stacks texts top to bottom with confidence 0.9.
func Lines(texts ...string) detection.Set {
	set := make(detection.Set, len(texts))
	for i, t := range texts {
		set[i] = Line(i, t, 0.9)
	}
	return set
}

// Scaled multiplies every box in set by f.
func Scaled(set detection.Set, f float64) detection.Set {
	out := set.Clone()
	for i := range out {
		out[i].Box = out[i].Box.Scale(f)
	}
	return out
}
