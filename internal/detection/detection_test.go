package detection

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/utils"
)

func det(text string, conf, x, y float64) Detection {
	return Detection{
		Box:        QuadFromBox(utils.NewBox(x, y, x+40, y+12)),
		Text:       text,
		Confidence: conf,
	}
}

func TestQuadHelpers(t *testing.T) {
	q := QuadFromBox(utils.NewBox(10, 20, 30, 60))
	assert.Equal(t, utils.Point{X: 10, Y: 20}, q[0])
	assert.Equal(t, utils.Point{X: 30, Y: 60}, q[2])
	assert.Equal(t, utils.Point{X: 20, Y: 40}, q.Centroid())
	assert.True(t, q.Valid())
	assert.Equal(t, utils.NewBox(10, 20, 30, 60), q.Bounds())

	scaled := q.Scale(0.5)
	assert.Equal(t, utils.Point{X: 5, Y: 10}, scaled[0])
	assert.Equal(t, utils.Point{X: 10, Y: 20}, q[0], "Scale must not mutate the receiver")

	q[1].X = math.NaN()
	assert.False(t, q.Valid())
}

func TestQuadFromPoints(t *testing.T) {
	_, err := QuadFromPoints([]utils.Point{{X: 1}, {X: 2}})
	require.Error(t, err)

	q, err := QuadFromPoints([]utils.Point{{X: 1}, {X: 2}, {X: 3}, {X: 4}})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, q[3].X, 1e-9)
}

func TestSetOrdering(t *testing.T) {
	s := Set{det("b", 0.5, 0, 100), det("a", 0.9, 0, 10), det("c", 0.5, 0, 50)}

	byConf := s.Clone().SortByConfidence()
	assert.Equal(t, []string{"a", "b", "c"}, byConf.Texts(), "ties keep arrival order")

	byY := s.Clone().SortByVertical()
	assert.Equal(t, []string{"a", "c", "b"}, byY.Texts())
	assert.Equal(t, "a c b", byY.FullText())

	byTop := s.Clone().SortByTop()
	assert.Equal(t, []string{"a", "c", "b"}, byTop.Texts())

	assert.Equal(t, []string{"b", "a", "c"}, s.Texts(), "Clone protects the original")
}

func TestMerge(t *testing.T) {
	results := []PassResult{
		{Pass: "default", Detections: []Detection{det("one", 0.9, 0, 0)}},
		{Pass: "beamsearch", Err: errors.New("boom"), Detections: []Detection{det("ignored", 0.9, 0, 0)}},
		{Pass: "third", Detections: []Detection{det("two", 0.8, 0, 0), det("three", 0.7, 0, 0)}},
	}
	got := Merge(results)
	assert.Equal(t, []string{"one", "two", "three"}, Set(got).Texts())
	assert.Empty(t, Merge(nil))
}
