package preprocess

import (
	"image"
	"math"
)

// CLAHE equalizes g tile by tile with a clipped histogram and blends the
// per-tile mappings bilinearly between tile centres.
func CLAHE(g *image.Gray, clipLimit float64, tilesX, tilesY int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	tilesX = max(1, min(tilesX, w))
	tilesY = max(1, min(tilesY, h))
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	pix := func(x, y int) uint8 { return g.Pix[g.PixOffset(b.Min.X+x, b.Min.Y+y)] }

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[pix(x, y)]++
				}
			}
			n := (x1 - x0) * (y1 - y0)
			if n <= 0 {
				for i := range luts[ty*tilesX+tx] {
					luts[ty*tilesX+tx][i] = uint8(i)
				}
				continue
			}
			clipHistogram(&hist, max(1, int(clipLimit*float64(n)/256)))
			luts[ty*tilesX+tx] = equalize(&hist, n)
		}
	}

	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := min(ty0+1, tilesY-1)
		ty0 = max(ty0, 0)
		if fy < 0 {
			wy = 0
		}
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := min(tx0+1, tilesX-1)
			tx0 = max(tx0, 0)
			if fx < 0 {
				wx = 0
			}

			v := pix(x, y)
			tl := float64(luts[ty0*tilesX+tx0][v])
			tr := float64(luts[ty0*tilesX+tx1][v])
			bl := float64(luts[ty1*tilesX+tx0][v])
			br := float64(luts[ty1*tilesX+tx1][v])
			top := tl + (tr-tl)*wx
			bot := bl + (br-bl)*wx
			out.Pix[y*out.Stride+x] = toByte(top + (bot-top)*wy)
		}
	}
	return out
}

// clipHistogram caps every bin at limit and spreads the excess evenly, with
// any remainder handed out one count per bin at a regular stride.
func clipHistogram(hist *[256]int, limit int) {
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	if excess == 0 {
		return
	}
	batch := excess / 256
	residual := excess - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		stride := max(1, 256/residual)
		for i := 0; i < 256 && residual > 0; i += stride {
			hist[i]++
			residual--
		}
	}
}

func equalize(hist *[256]int, n int) [256]uint8 {
	var lut [256]uint8
	scale := 255.0 / float64(n)
	sum := 0
	for i, c := range hist {
		sum += c
		lut[i] = toByte(float64(sum) * scale)
	}
	return lut
}
