package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// CardSize is the size of synthetic card images, roughly ID-1 proportions.
var CardSize = image.Pt(172, 108)

// LineHeight is the vertical spacing of CardImage rows.
const LineHeight = 16

// CardImage draws lines of black text on a white card, one row each.
func CardImage(lines ...string) *image.RGBA {
	img := BlankImage(CardSize.X, CardSize.Y, color.White)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13}
	for i, l := range lines {
		d.Dot = fixed.P(4, (i+1)*LineHeight)
		d.DrawString(l)
	}
	return img
}

// BlankImage returns an image filled with bg.
func BlankImage(w, h int, bg color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return img
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WriteImage saves img as a PNG under dir and returns its path.
func WriteImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	require.NoError(t, EnsureDir(dir))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, EncodePNG(t, img), 0o600))
	return path
}
