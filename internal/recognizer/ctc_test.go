package recognizer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneHot returns a distribution with p on class c and the rest spread evenly.
func oneHot(c int, p float64, size int) []float64 {
	row := make([]float64, size)
	rest := (1 - p) / float64(size-1)
	for i := range row {
		row[i] = rest
	}
	row[c] = p
	return row
}

func framesOf(rows ...[]float64) Frames {
	f := Frames{T: len(rows), C: len(rows[0])}
	for _, r := range rows {
		f.P = append(f.P, r...)
	}
	return f
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func TestFramesFromOutput(t *testing.T) {
	t.Run("time major", func(t *testing.T) {
		data := []float32{0.1, 0.8, 0.1, 0.7, 0.2, 0.1}
		f, err := FramesFromOutput(data, []int64{1, 2, 3}, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, f.T)
		assert.Equal(t, 3, f.C)
		assert.InDelta(t, 0.8, f.Row(0)[1], 1e-6)
		assert.InDelta(t, 0.7, f.Row(1)[0], 1e-6)
	})

	t.Run("classes first", func(t *testing.T) {
		// [C=3, T=2]
		data := []float32{0.1, 0.7, 0.8, 0.2, 0.1, 0.1}
		f, err := FramesFromOutput(data, []int64{1, 3, 2}, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, f.T)
		assert.InDelta(t, 0.8, f.Row(0)[1], 1e-6)
		assert.InDelta(t, 0.7, f.Row(1)[0], 1e-6)
	})

	t.Run("logits are softmaxed", func(t *testing.T) {
		f, err := FramesFromOutput([]float32{2, 2, -5, 7}, []int64{1, 2, 2}, 2)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, f.Row(0)[0], 1e-9)
		assert.InDelta(t, 1.0, f.Row(1)[0]+f.Row(1)[1], 1e-9)
		assert.Greater(t, f.Row(1)[1], 0.99)
	})

	t.Run("trailing unit dims", func(t *testing.T) {
		f, err := FramesFromOutput([]float32{0.5, 0.5}, []int64{1, 1, 2, 1}, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, f.T)
	})

	t.Run("bad shapes", func(t *testing.T) {
		_, err := FramesFromOutput([]float32{1}, []int64{1, 1}, 1)
		assert.Error(t, err)
		_, err = FramesFromOutput([]float32{1}, []int64{1, 2, 3}, 3)
		assert.Error(t, err)
		_, err = FramesFromOutput(nil, []int64{0, 2, 3}, 3)
		assert.Error(t, err)
	})
}

func TestCTCCollapse(t *testing.T) {
	d := CTCCollapse([]int{1, 1, 0, 1, 2, 2, 0}, []float64{0.9, 0.5, 0.9, 0.7, 0.6, 0.8, 0.9}, 0)
	assert.Equal(t, []int{1, 1, 2}, d.Indices)
	assert.Equal(t, []float64{0.9, 0.7, 0.6}, d.Probs)

	empty := CTCCollapse([]int{0, 0}, []float64{1, 1}, 0)
	assert.Empty(t, empty.Indices)
	assert.Zero(t, empty.Confidence())
}

func TestDecodeGreedy(t *testing.T) {
	f := framesOf(oneHot(1, 0.9, 4), oneHot(0, 0.9, 4), oneHot(1, 0.8, 4), oneHot(2, 0.7, 4))
	d := DecodeGreedy(f, Blank)
	assert.Equal(t, []int{1, 1, 2}, d.Indices)
	assert.InDelta(t, 0.8, d.Confidence(), 1e-9)
}

func TestDecodeBeam(t *testing.T) {
	t.Run("sums alignments", func(t *testing.T) {
		f := framesOf([]float64{0.6, 0.4}, []float64{0.6, 0.4})
		assert.Empty(t, DecodeGreedy(f, Blank).Indices)

		d := DecodeBeam(f, Blank, DefaultBeamWidth)
		assert.Equal(t, []int{1}, d.Indices)
		assert.InDelta(t, 0.4, d.Confidence(), 1e-9)
	})

	t.Run("clear input matches greedy", func(t *testing.T) {
		f := framesOf(oneHot(3, 0.95, 5), oneHot(3, 0.95, 5), oneHot(0, 0.95, 5), oneHot(3, 0.9, 5), oneHot(4, 0.9, 5))
		assert.Equal(t, DecodeGreedy(f, Blank).Indices, DecodeBeam(f, Blank, 5).Indices)
	})

	t.Run("width one is greedy", func(t *testing.T) {
		f := framesOf([]float64{0.6, 0.4}, []float64{0.6, 0.4})
		assert.Equal(t, DecodeGreedy(f, Blank), DecodeBeam(f, Blank, 1))
	})
}

func TestDecodeBeam_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	const classes = 4
	genFrames := gen.SliceOfN(classes*12, gen.Float64Range(0, 10)).Map(func(v []float64) Frames {
		f := Frames{T: len(v) / classes, C: classes, P: v}
		for t := 0; t < f.T; t++ {
			softmax(f.Row(t))
		}
		return f
	})

	properties.Property("output is a valid labelling", prop.ForAll(
		func(f Frames) bool {
			d := DecodeBeam(f, Blank, DefaultBeamWidth)
			if len(d.Indices) > f.T || len(d.Indices) != len(d.Probs) {
				return false
			}
			for i, idx := range d.Indices {
				if idx <= Blank || idx >= classes {
					return false
				}
				if d.Probs[i] < 0 || d.Probs[i] > 1 {
					return false
				}
			}
			c := d.Confidence()
			return c >= 0 && c <= 1
		},
		genFrames,
	))

	properties.Property("decoding is deterministic", prop.ForAll(
		func(f Frames) bool {
			a := DecodeBeam(f, Blank, DefaultBeamWidth)
			b := DecodeBeam(f, Blank, DefaultBeamWidth)
			return assert.ObjectsAreEqual(a, b)
		},
		genFrames,
	))

	properties.TestingRun(t)
}
