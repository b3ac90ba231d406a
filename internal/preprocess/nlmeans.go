package preprocess

import (
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/docverify/internal/mempool"
)

// Weights below this are treated as zero.
const minWeight = 0.001

var f64 mempool.Pool[float64]

// DenoiseNLMeans applies non-local-means filtering to g. Patch distances are
// mean squared differences over a template x template window, compared for
// every offset inside a search x search window, and weighted by
// exp(-d/h^2). Borders replicate the edge pixels.
func DenoiseNLMeans(g *image.Gray, h float64, template, search int) *image.Gray {
	b := g.Bounds()
	w, ht := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, ht))
	if w == 0 || ht == 0 {
		return out
	}

	src := mempool.GetFloat32(w * ht)
	defer mempool.PutFloat32(src)
	for y := 0; y < ht; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			src[y*w+x] = float32(row[x])
		}
	}

	tr, sr := template/2, search/2
	area := float64((2*tr + 1) * (2*tr + 1))
	h2 := h * h

	bands := min(runtime.GOMAXPROCS(0), ht)
	bandH := (ht + bands - 1) / bands
	var wg sync.WaitGroup
	for y0 := 0; y0 < ht; y0 += bandH {
		y1 := min(y0+bandH, ht)
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			nlmBand(src, out, w, ht, y0, y1, tr, sr, area, h2)
		}(y0, y1)
	}
	wg.Wait()
	return out
}

// nlmBand filters rows [y0, y1). For each search offset it builds the squared
// difference plane over the band plus a template margin, integrates it, and
// reads every patch distance as a box sum.
func nlmBand(src []float32, out *image.Gray, w, h, y0, y1, tr, sr int, area, h2 float64) {
	bh := y1 - y0
	ew, eh := w+2*tr, bh+2*tr
	iw := ew + 1

	integral := f64.Get(iw * (eh + 1))
	num := f64.Get(w * bh)
	den := f64.Get(w * bh)
	defer func() {
		f64.Put(integral)
		f64.Put(num)
		f64.Put(den)
	}()

	at := func(x, y int) float64 {
		return float64(src[clampIdx(y, h)*w+clampIdx(x, w)])
	}

	for dy := -sr; dy <= sr; dy++ {
		for dx := -sr; dx <= sr; dx++ {
			for ey := 0; ey < eh; ey++ {
				y := y0 + ey - tr
				var rowSum float64
				base := (ey + 1) * iw
				prev := ey * iw
				for ex := 0; ex < ew; ex++ {
					x := ex - tr
					d := at(x, y) - at(x+dx, y+dy)
					rowSum += d * d
					integral[base+ex+1] = integral[prev+ex+1] + rowSum
				}
			}

			for yy := 0; yy < bh; yy++ {
				y := y0 + yy
				top := yy * iw
				bot := (yy + 2*tr + 1) * iw
				for x := 0; x < w; x++ {
					l, r := x, x+2*tr+1
					ssd := integral[bot+r] - integral[bot+l] - integral[top+r] + integral[top+l]
					weight := math.Exp(-math.Max(ssd/area, 0) / h2)
					if weight < minWeight {
						continue
					}
					i := yy*w + x
					num[i] += weight * at(x+dx, y+dy)
					den[i] += weight
				}
			}
		}
	}

	for yy := 0; yy < bh; yy++ {
		row := out.Pix[(y0+yy)*out.Stride:]
		for x := 0; x < w; x++ {
			i := yy*w + x
			if den[i] == 0 {
				row[x] = uint8(src[(y0+yy)*w+x])
				continue
			}
			row[x] = toByte(num[i] / den[i])
		}
	}
}
