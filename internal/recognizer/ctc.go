package recognizer

import (
	"errors"
	"fmt"
	"math"
)

// Frames is a [T, C] matrix of per-timestep class probabilities.
type Frames struct {
	T, C int
	P    []float64
}

// Row returns the class distribution at timestep t.
func (f Frames) Row(t int) []float64 { return f.P[t*f.C : (t+1)*f.C] }

// FramesFromOutput reads the first batch item of a [N, T, C] or [N, C, T]
// output. Rows that are not already distributions are softmaxed.
func FramesFromOutput(data []float32, shape []int64, classes int) (Frames, error) {
	dims := append([]int64(nil), shape...)
	for len(dims) > 3 && dims[len(dims)-1] == 1 {
		dims = dims[:len(dims)-1]
	}
	if len(dims) != 3 {
		return Frames{}, fmt.Errorf("expected 3D recognition output, got shape %v", shape)
	}
	if dims[0] <= 0 {
		return Frames{}, errors.New("empty recognition batch")
	}

	var t, c int
	classesFirst := false
	switch {
	case classes > 0 && int(dims[2]) == classes:
		t, c = int(dims[1]), int(dims[2])
	case classes > 0 && int(dims[1]) == classes:
		c, t = int(dims[1]), int(dims[2])
		classesFirst = true
	default:
		// Fall back to the PaddleOCR layout.
		t, c = int(dims[1]), int(dims[2])
	}
	if t <= 0 || c <= 0 {
		return Frames{}, fmt.Errorf("invalid recognition output shape %v", shape)
	}
	if len(data) < t*c {
		return Frames{}, fmt.Errorf("recognition output has %d values, want %d", len(data), t*c)
	}

	f := Frames{T: t, C: c, P: make([]float64, t*c)}
	for ti := 0; ti < t; ti++ {
		row := f.P[ti*c : (ti+1)*c]
		for k := 0; k < c; k++ {
			if classesFirst {
				row[k] = float64(data[k*t+ti])
			} else {
				row[k] = float64(data[ti*c+k])
			}
		}
		if !isDistribution(row) {
			softmax(row)
		}
	}
	return f, nil
}

func isDistribution(v []float64) bool {
	var sum float64
	for _, x := range v {
		if x < 0 || x > 1 {
			return false
		}
		sum += x
	}
	return sum > 0.99 && sum < 1.01
}

func softmax(v []float64) {
	m := math.Inf(-1)
	for _, x := range v {
		m = math.Max(m, x)
	}
	var denom float64
	for i, x := range v {
		v[i] = math.Exp(x - m)
		denom += v[i]
	}
	if denom == 0 {
		return
	}
	for i := range v {
		v[i] /= denom
	}
}

// Decoded is a collapsed class sequence with one probability per emitted
// class.
type Decoded struct {
	Indices []int
	Probs   []float64
}

// Confidence is the mean of the per-character probabilities, 0 when empty.
func (d Decoded) Confidence() float64 {
	if len(d.Probs) == 0 {
		return 0
	}
	var s float64
	for _, p := range d.Probs {
		s += p
	}
	return s / float64(len(d.Probs))
}

// CTCCollapse drops blanks and merges consecutive repeats. A repeat split by a
// blank is emitted twice.
func CTCCollapse(indices []int, probs []float64, blank int) Decoded {
	out := Decoded{Indices: make([]int, 0, len(indices)), Probs: make([]float64, 0, len(indices))}
	prev := -1
	for i, idx := range indices {
		if idx == blank {
			prev = idx
			continue
		}
		if idx == prev {
			continue
		}
		out.Indices = append(out.Indices, idx)
		if i < len(probs) {
			out.Probs = append(out.Probs, probs[i])
		} else {
			out.Probs = append(out.Probs, 0)
		}
		prev = idx
	}
	return out
}

// DecodeGreedy takes the argmax class at every timestep and collapses.
func DecodeGreedy(f Frames, blank int) Decoded {
	indices := make([]int, f.T)
	probs := make([]float64, f.T)
	for t := 0; t < f.T; t++ {
		row := f.Row(t)
		best := 0
		for k := 1; k < len(row); k++ {
			if row[k] > row[best] {
				best = k
			}
		}
		indices[t] = best
		probs[t] = row[best]
	}
	return CTCCollapse(indices, probs, blank)
}
