package preprocess

import "image"

// MorphClose dilates then erodes g with a k x k square element. k <= 1
// returns a copy.
func MorphClose(g *image.Gray, k int) *image.Gray {
	if k <= 1 {
		b := g.Bounds()
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}
	return morph(morph(g, k, maxOf), k, minOf)
}

func maxOf(a, b uint8) uint8 { return max(a, b) }
func minOf(a, b uint8) uint8 { return min(a, b) }

// morph applies a separable square min or max filter.
func morph(g *image.Gray, k int, pick func(a, b uint8) uint8) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	r := k / 2
	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			v := row[clampIdx(x-r, w)]
			for dx := -r + 1; dx <= k-1-r; dx++ {
				v = pick(v, row[clampIdx(x+dx, w)])
			}
			tmp.Pix[y*tmp.Stride+x] = v
		}
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := tmp.Pix[clampIdx(y-r, h)*tmp.Stride+x]
			for dy := -r + 1; dy <= k-1-r; dy++ {
				v = pick(v, tmp.Pix[clampIdx(y+dy, h)*tmp.Stride+x])
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}
