package detection

import (
	"strings"

	"github.com/MeKo-Tech/docverify/internal/fuzzy"
)

// DedupOptions controls which detections survive deduplication.
type DedupOptions struct {
	// MinConfidence drops detections at or below this confidence.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
	// Similarity is the fuzzy ratio (0-100) above which two texts match.
	Similarity float64 `mapstructure:"similarity" yaml:"similarity" json:"similarity"`
	// Distance is the top-left corner distance in pixels below which two
	// boxes overlap.
	Distance float64 `mapstructure:"distance" yaml:"distance" json:"distance"`
}

// DefaultDedupOptions returns the thresholds used for every document type.
func DefaultDedupOptions() DedupOptions {
	return DedupOptions{MinConfidence: 0.3, Similarity: 80, Distance: 50}
}

// Keep reports whether d passes the pre-filter.
func (o DedupOptions) Keep(d Detection) bool {
	return strings.TrimSpace(d.Text) != "" && d.Confidence > o.MinConfidence
}

// Duplicate reports whether a and b read the same text at the same place.
func (o DedupOptions) Duplicate(a, b Detection) bool {
	if a.Box[0].Distance(b.Box[0]) >= o.Distance {
		return false
	}
	return fuzzy.Ratio(strings.ToLower(a.Text), strings.ToLower(b.Text)) > o.Similarity
}

// Deduplicate filters low-confidence and empty detections, collapses
// duplicates keeping the most confident reading in the slot of the first one
// seen, and returns the result ordered by confidence descending.
//
// A replacement moves the surviving box, which can bring it within range of
// another accepted entry, so collapsing repeats until no pair matches. The
// result is therefore stable under a second call.
func Deduplicate(dets []Detection, opts DedupOptions) Set {
	cur := make(Set, 0, len(dets))
	for _, d := range dets {
		if opts.Keep(d) {
			cur = append(cur, d)
		}
	}
	for {
		next, merged := collapse(cur, opts)
		cur = next
		if !merged {
			break
		}
	}
	return cur.SortByConfidence()
}

func collapse(dets Set, opts DedupOptions) (Set, bool) {
	out := make(Set, 0, len(dets))
	merged := false
	for _, d := range dets {
		dup := false
		for i := range out {
			if !opts.Duplicate(d, out[i]) {
				continue
			}
			dup, merged = true, true
			if d.Confidence > out[i].Confidence {
				out[i] = d
			}
			break
		}
		if !dup {
			out = append(out, d)
		}
	}
	return out, merged
}
