package detector

import (
	"sort"

	"github.com/MeKo-Tech/docverify/internal/utils"
)

// IoU returns the intersection over union of two boxes.
func IoU(a, b utils.Box) float64 {
	ix := min(a.MaxX, b.MaxX) - max(a.MinX, b.MinX)
	iy := min(a.MaxY, b.MaxY) - max(a.MinY, b.MinY)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NonMaxSuppression keeps the most confident region of every overlapping
// group. The survivors are returned in descending confidence.
func NonMaxSuppression(regions []Region, iouThreshold float64) []Region {
	if len(regions) <= 1 {
		return regions
	}
	idx := make([]int, len(regions))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return regions[idx[i]].Confidence > regions[idx[j]].Confidence
	})

	suppressed := make([]bool, len(regions))
	kept := make([]Region, 0, len(regions))
	for n, a := range idx {
		if suppressed[a] {
			continue
		}
		kept = append(kept, regions[a])
		for _, b := range idx[n+1:] {
			if !suppressed[b] && IoU(regions[a].Box, regions[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}
