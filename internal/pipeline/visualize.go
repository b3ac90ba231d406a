package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/docverify/internal/arabic"
	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

const labelRunes = 15

var (
	colorHigh   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorMedium = color.RGBA{R: 230, G: 200, B: 0, A: 255}
	colorLow    = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	labelBG     = color.RGBA{R: 0, G: 0, B: 0, A: 160}
)

// ConfidenceColor returns the box colour for a confidence score.
func ConfidenceColor(conf float64) color.RGBA {
	switch {
	case conf > 0.8:
		return colorHigh
	case conf > 0.5:
		return colorMedium
	default:
		return colorLow
	}
}

// DetectionLabel formats the caption drawn above the detection at index i.
// Captions are numbered from 1.
func DetectionLabel(i int, d detection.Detection) string {
	rs := []rune(d.Text)
	if len(rs) > labelRunes {
		rs = rs[:labelRunes]
	}
	return fmt.Sprintf("%d: %s (%.2f)", i+1, arabic.Display(string(rs)), d.Confidence)
}

// RenderDetections returns a copy of img with every detection outlined and
// labelled.
func RenderDetections(img image.Image, set detection.Set) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	face := basicfont.Face7x13
	for i, d := range set {
		col := ConfidenceColor(d.Confidence)
		utils.DrawPolygon(out, d.Box[:], col, 2)

		label := DetectionLabel(i, d)
		x := int(d.Box[0].X)
		y := int(d.Box[0].Y) - 4
		if y < face.Ascent {
			y = int(d.Box[3].Y) + face.Ascent + 2
		}
		dr := &font.Drawer{Dst: out, Src: image.NewUniform(col), Face: face}
		w := dr.MeasureString(label).Ceil()
		utils.FillRect(out, image.Rect(x-1, y-face.Ascent-1, x+w+1, y+face.Descent+1), labelBG)
		dr.Dot = fixed.P(x, y)
		dr.DrawString(label)
	}
	return out
}
