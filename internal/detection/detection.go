// Package detection defines OCR text detections and the operations that run
// on them between the engine and the field extractors.
package detection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/MeKo-Tech/docverify/internal/utils"
)

// Quad is a text bounding quadrilateral: top-left, top-right, bottom-right,
// bottom-left.
type Quad [4]utils.Point

// QuadFromBox returns the corners of an axis-aligned box.
func QuadFromBox(b utils.Box) Quad {
	return Quad(b.Corners())
}

// QuadFromPoints builds a Quad from exactly four points.
func QuadFromPoints(pts []utils.Point) (Quad, error) {
	if len(pts) != 4 {
		return Quad{}, fmt.Errorf("bounding box needs 4 corners, got %d", len(pts))
	}
	var q Quad
	copy(q[:], pts)
	return q, nil
}

// Bounds returns the axis-aligned bounds of q.
func (q Quad) Bounds() utils.Box {
	return utils.BoundingBox(q[:])
}

// Centroid returns the mean of the four corners.
func (q Quad) Centroid() utils.Point {
	var c utils.Point
	for _, p := range q {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= 4
	c.Y /= 4
	return c
}

// Valid reports whether every coordinate is finite.
func (q Quad) Valid() bool {
	for _, p := range q {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// Scale multiplies every coordinate by f.
func (q Quad) Scale(f float64) Quad {
	for i := range q {
		q[i].X *= f
		q[i].Y *= f
	}
	return q
}

// Detection is one recognized text fragment.
type Detection struct {
	Box        Quad    `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Pass       string  `json:"pass,omitempty"`
}

// Set is an ordered collection of detections.
type Set []Detection

// SortByConfidence stably orders s by confidence, highest first.
func (s Set) SortByConfidence() Set {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Confidence > s[j].Confidence })
	return s
}

// SortByVertical stably orders s by the vertical centre of each box.
func (s Set) SortByVertical() Set {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Box.Centroid().Y < s[j].Box.Centroid().Y })
	return s
}

// SortByTop stably orders s by the y coordinate of each box's first corner.
func (s Set) SortByTop() Set {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Box[0].Y < s[j].Box[0].Y })
	return s
}

// Clone returns a copy that can be reordered without touching s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Texts returns the text of every detection in order.
func (s Set) Texts() []string {
	out := make([]string, len(s))
	for i, d := range s {
		out[i] = d.Text
	}
	return out
}

// FullText joins the texts with single spaces.
func (s Set) FullText() string {
	return strings.Join(s.Texts(), " ")
}

// PassResult is the outcome of one detection pass. A failed pass carries Err
// and no detections.
type PassResult struct {
	Pass       string
	Detections []Detection
	Err        error
}

// Merge concatenates the detections of every pass in order, treating failed
// passes as empty.
func Merge(results []PassResult) []Detection {
	n := 0
	for _, r := range results {
		if r.Err == nil {
			n += len(r.Detections)
		}
	}
	out := make([]Detection, 0, n)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		out = append(out, r.Detections...)
	}
	return out
}
