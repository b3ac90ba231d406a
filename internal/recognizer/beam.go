package recognizer

import (
	"sort"
	"strconv"
)

// DefaultBeamWidth is the number of prefixes kept per timestep.
const DefaultBeamWidth = 5

type beam struct {
	key     string
	prefix  []int
	probs   []float64
	pb      float64 // prefix probability ending in blank
	pnb     float64 // prefix probability ending in the last class
	contrib float64 // largest single contribution that set probs
}

func (b *beam) total() float64 { return b.pb + b.pnb }

// DecodeBeam runs CTC prefix beam search with the given width. Unlike greedy
// decoding it sums over all alignments of a prefix, so a label spread thinly
// over several frames can beat a run of slightly stronger blanks.
func DecodeBeam(f Frames, blank, width int) Decoded {
	if width <= 1 {
		return DecodeGreedy(f, blank)
	}
	beams := []*beam{{pb: 1}}

	for t := 0; t < f.T; t++ {
		row := f.Row(t)
		cands := candidates(row, blank, width)
		next := make(map[string]*beam, len(beams)*len(cands))
		order := make([]*beam, 0, len(beams)*len(cands))

		get := func(key string, prefix []int, probs []float64, contrib float64) *beam {
			if nb, ok := next[key]; ok {
				if contrib > nb.contrib {
					nb.probs, nb.contrib = probs, contrib
				}
				return nb
			}
			nb := &beam{key: key, prefix: prefix, probs: probs, contrib: contrib}
			next[key] = nb
			order = append(order, nb)
			return nb
		}

		for _, b := range beams {
			total := b.total()
			last := -1
			if n := len(b.prefix); n > 0 {
				last = b.prefix[n-1]
			}
			for _, c := range cands {
				p := row[c]
				if c == blank {
					nb := get(b.key, b.prefix, b.probs, total*p)
					nb.pb += total * p
					continue
				}

				extKey := b.key + "," + strconv.Itoa(c)
				extProbs := append(append(make([]float64, 0, len(b.probs)+1), b.probs...), p)
				if c == last {
					same := get(b.key, b.prefix, b.probs, b.pnb*p)
					same.pnb += b.pnb * p
					if n := len(same.probs); n > 0 && p > same.probs[n-1] {
						same.probs = append(append([]float64(nil), same.probs[:n-1]...), p)
					}
					if b.pb > 0 {
						ext := get(extKey, append(append([]int(nil), b.prefix...), c), extProbs, b.pb*p)
						ext.pnb += b.pb * p
					}
					continue
				}
				ext := get(extKey, append(append([]int(nil), b.prefix...), c), extProbs, total*p)
				ext.pnb += total * p
			}
		}

		sort.SliceStable(order, func(i, j int) bool { return order[i].total() > order[j].total() })
		if len(order) > width {
			order = order[:width]
		}
		// Rescale so long sequences do not underflow; ranking is unchanged.
		if top := order[0].total(); top > 0 {
			for _, b := range order {
				b.pb /= top
				b.pnb /= top
			}
		}
		beams = order
	}

	best := beams[0]
	return Decoded{
		Indices: append([]int{}, best.prefix...),
		Probs:   append([]float64{}, best.probs...),
	}
}

// candidates returns the width most likely classes at one timestep, with the
// blank always included.
func candidates(row []float64, blank, width int) []int {
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return row[idx[a]] > row[idx[b]] })
	if len(idx) > width {
		idx = idx[:width]
	}
	for _, i := range idx {
		if i == blank {
			return idx
		}
	}
	if blank >= 0 && blank < len(row) {
		idx = append(idx, blank)
	}
	return idx
}
