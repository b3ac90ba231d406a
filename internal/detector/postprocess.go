package detector

import (
	"math"

	"github.com/MeKo-Tech/docverify/internal/mempool"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// Region is a text region in pixel coordinates.
type Region struct {
	Box utils.Box
	// Confidence is the mean probability over the region's pixels.
	Confidence float64
}

// PostProcessOptions controls DB post-processing.
type PostProcessOptions struct {
	DBThresh    float32
	BoxThresh   float32
	UnclipRatio float64
	MinSize     float64
}

type component struct {
	count                  int
	sum                    float64
	minX, minY, maxX, maxY int
}

// PostProcessDB thresholds the probability map, groups 4-connected pixels,
// expands each component box by the DB unclip distance and drops weak or
// tiny regions. Regions come out in scan order.
func PostProcessDB(prob []float32, w, h int, opts PostProcessOptions) []Region {
	if w <= 0 || h <= 0 || len(prob) != w*h {
		return nil
	}
	mask := mempool.GetBool(w * h)
	defer mempool.PutBool(mask)
	for i, p := range prob {
		mask[i] = p >= opts.DBThresh
	}

	comps := connectedComponents(mask, prob, w, h)
	out := make([]Region, 0, len(comps))
	for _, c := range comps {
		conf := c.sum / float64(c.count)
		if conf < float64(opts.BoxThresh) {
			continue
		}
		box := utils.NewBox(float64(c.minX), float64(c.minY), float64(c.maxX+1), float64(c.maxY+1))
		if math.Min(box.Width(), box.Height()) < opts.MinSize {
			continue
		}
		box = unclip(box, opts.UnclipRatio)
		box = utils.NewBox(
			math.Max(0, box.MinX), math.Max(0, box.MinY),
			math.Min(float64(w), box.MaxX), math.Min(float64(h), box.MaxY),
		)
		out = append(out, Region{Box: box, Confidence: conf})
	}
	return out
}

// unclip grows b on every side by area*ratio/perimeter.
func unclip(b utils.Box, ratio float64) utils.Box {
	if ratio <= 0 {
		return b
	}
	perimeter := 2 * (b.Width() + b.Height())
	if perimeter == 0 {
		return b
	}
	d := b.Width() * b.Height() * ratio / perimeter
	return utils.NewBox(b.MinX-d, b.MinY-d, b.MaxX+d, b.MaxY+d)
}

// connectedComponents labels 4-connected foreground pixels with a BFS over a
// pooled index queue.
func connectedComponents(mask []bool, prob []float32, w, h int) []component {
	visited := mempool.GetBool(w * h)
	queue := mempool.GetInt(w * h)
	defer mempool.PutBool(visited)
	defer mempool.PutInt(queue)

	var comps []component
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		c := component{minX: start % w, minY: start / w, maxX: start % w, maxY: start / w}
		head, tail := 0, 0
		queue[tail] = start
		tail++
		visited[start] = true
		for head < tail {
			i := queue[head]
			head++
			x, y := i%w, i/w
			c.count++
			c.sum += float64(prob[i])
			c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
			c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)

			for _, n := range [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask[ni] && !visited[ni] {
					visited[ni] = true
					queue[tail] = ni
					tail++
				}
			}
		}
		comps = append(comps, c)
	}
	return comps
}

// ScaleRegions maps regions from probability-map to image coordinates.
func ScaleRegions(regions []Region, mapW, mapH, origW, origH int) []Region {
	if mapW == 0 || mapH == 0 {
		return regions
	}
	sx := float64(origW) / float64(mapW)
	sy := float64(origH) / float64(mapH)
	out := make([]Region, len(regions))
	for i, r := range regions {
		b := r.Box
		out[i] = Region{
			Box:        utils.NewBox(b.MinX*sx, b.MinY*sy, b.MaxX*sx, b.MaxY*sy),
			Confidence: r.Confidence,
		}
	}
	return out
}
