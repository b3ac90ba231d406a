package detection

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestDeduplicate(t *testing.T) {
	opts := DefaultDedupOptions()

	tests := []struct {
		name  string
		in    []Detection
		texts []string
		confs []float64
	}{
		{
			name:  "empty input",
			in:    nil,
			texts: []string{},
		},
		{
			name: "pre-filter drops blank and weak",
			in: []Detection{
				det("  ", 0.9, 0, 0),
				det("WEAK", 0.3, 0, 100),
				det("KEEP", 0.31, 0, 200),
			},
			texts: []string{"KEEP"},
			confs: []float64{0.31},
		},
		{
			name: "higher confidence duplicate replaces the accepted one",
			in: []Detection{
				det("PAKISTAN", 0.6, 10, 10),
				det("pakistan", 0.9, 15, 12),
			},
			texts: []string{"pakistan"},
			confs: []float64{0.9},
		},
		{
			name: "lower confidence duplicate is dropped",
			in: []Detection{
				det("PAKISTAN", 0.9, 10, 10),
				det("PAKISTAN", 0.6, 15, 12),
			},
			texts: []string{"PAKISTAN"},
			confs: []float64{0.9},
		},
		{
			name: "equal confidence keeps the earlier entry",
			in: []Detection{
				det("Name", 0.8, 0, 0),
				det("NAME", 0.8, 1, 1),
			},
			texts: []string{"Name"},
			confs: []float64{0.8},
		},
		{
			name: "same text far apart stays",
			in: []Detection{
				det("MALE", 0.7, 0, 0),
				det("MALE", 0.8, 0, 200),
			},
			texts: []string{"MALE", "MALE"},
			confs: []float64{0.8, 0.7},
		},
		{
			name: "nearby different text stays",
			in: []Detection{
				det("Name", 0.7, 0, 0),
				det("Gender", 0.9, 5, 5),
			},
			texts: []string{"Gender", "Name"},
			confs: []float64{0.9, 0.7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deduplicate(tt.in, opts)
			assert.Equal(t, tt.texts, got.Texts())
			if tt.confs != nil {
				var confs []float64
				for _, d := range got {
					confs = append(confs, d.Confidence)
				}
				assert.Equal(t, tt.confs, confs)
			}
		})
	}
}

func TestDeduplicate_ChainedReplacement(t *testing.T) {
	// C replaces A and lands within range of B, so B collapses into C too.
	in := []Detection{
		det("ISLAMABAD", 0.5, 0, 0),
		det("ISLAMABAD", 0.6, 60, 0),
		det("ISLAMABAD", 0.9, 30, 0),
	}
	got := Deduplicate(in, DefaultDedupOptions())
	assert.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
	assert.Equal(t, got, Deduplicate(got, DefaultDedupOptions()))
}

func genDetection() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("NAME", "Name", "NAMES", "PAKISTAN", "MALE", "", " ", "12345-1234567-1"),
		gen.Float64Range(0, 1),
		gen.IntRange(0, 8),
		gen.IntRange(0, 8),
	).Map(func(vals []interface{}) Detection {
		return det(
			vals[0].(string),
			vals[1].(float64),
			float64(vals[2].(int)*20),
			float64(vals[3].(int)*20),
		)
	})
}

func TestDeduplicate_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	opts := DefaultDedupOptions()

	properties.Property("running twice changes nothing", prop.ForAll(
		func(in []Detection) bool {
			once := Deduplicate(in, opts)
			twice := Deduplicate(once, opts)
			if len(once) != len(twice) {
				return false
			}
			for i := range once {
				if once[i] != twice[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genDetection()),
	))

	properties.Property("no survivor is blank or weak", prop.ForAll(
		func(in []Detection) bool {
			for _, d := range Deduplicate(in, opts) {
				if !opts.Keep(d) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genDetection()),
	))

	properties.Property("the most confident kept reading survives", prop.ForAll(
		func(in []Detection) bool {
			best := -1.0
			for _, d := range in {
				if opts.Keep(d) && d.Confidence > best {
					best = d.Confidence
				}
			}
			out := Deduplicate(in, opts)
			if best < 0 {
				return len(out) == 0
			}
			return len(out) > 0 && out[0].Confidence == best
		},
		gen.SliceOf(genDetection()),
	))

	properties.Property("output is sorted and no pair is still a duplicate", prop.ForAll(
		func(in []Detection) bool {
			out := Deduplicate(in, opts)
			for i := range out {
				if i > 0 && out[i-1].Confidence < out[i].Confidence {
					return false
				}
				for j := i + 1; j < len(out); j++ {
					if opts.Duplicate(out[i], out[j]) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(genDetection()),
	))

	properties.TestingRun(t)
}
