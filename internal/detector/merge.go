package detector

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/docverify/internal/utils"
)

// mergeMargin pads each merged box by this fraction of its shorter side.
const mergeMargin = 0.1

// MergeRegions joins boxes that sit on the same text line. A box belongs to
// a line when its height and vertical centre are both within heightThs of
// the line's mean height. Inside a line, neighbours merge while the gap to
// the previous box is below widthThs times the box height. Non-positive
// thresholds return the regions unchanged.
func MergeRegions(regions []Region, widthThs, heightThs float64) []Region {
	if len(regions) == 0 || widthThs <= 0 || heightThs <= 0 {
		return regions
	}

	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.CenterY() < sorted[j].Box.CenterY()
	})

	var lines [][]Region
	var line []Region
	var sumH, sumY float64
	for _, r := range sorted {
		if len(line) > 0 {
			meanH := sumH / float64(len(line))
			meanY := sumY / float64(len(line))
			if math.Abs(meanH-r.Box.Height()) < heightThs*meanH &&
				math.Abs(meanY-r.Box.CenterY()) < heightThs*meanH {
				line = append(line, r)
				sumH += r.Box.Height()
				sumY += r.Box.CenterY()
				continue
			}
			lines = append(lines, line)
		}
		line = []Region{r}
		sumH, sumY = r.Box.Height(), r.Box.CenterY()
	}
	lines = append(lines, line)

	var out []Region
	for _, ln := range lines {
		sort.SliceStable(ln, func(i, j int) bool { return ln[i].Box.MinX < ln[j].Box.MinX })
		cur := ln[0]
		area := boxArea(cur.Box)
		weighted := cur.Confidence * area
		flush := func() {
			if area > 0 {
				cur.Confidence = weighted / area
			}
			out = append(out, padded(cur))
		}
		for _, r := range ln[1:] {
			if r.Box.MinX-cur.Box.MaxX < widthThs*r.Box.Height() {
				a := boxArea(r.Box)
				cur.Box = cur.Box.Union(r.Box)
				area += a
				weighted += r.Confidence * a
				continue
			}
			flush()
			cur = r
			area = boxArea(r.Box)
			weighted = r.Confidence * area
		}
		flush()
	}
	return out
}

func boxArea(b utils.Box) float64 { return b.Width() * b.Height() }

func padded(r Region) Region {
	m := mergeMargin * math.Min(r.Box.Width(), r.Box.Height())
	r.Box = utils.NewBox(math.Max(0, r.Box.MinX-m), math.Max(0, r.Box.MinY-m), r.Box.MaxX+m, r.Box.MaxY+m)
	return r
}
