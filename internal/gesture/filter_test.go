package gesture

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func feed(f FilterState, k int, raws ...Pose) (FilterState, []Pose) {
	stables := make([]Pose, 0, len(raws))
	for _, raw := range raws {
		f = f.Update(raw, k)
		stables = append(stables, f.Stable)
	}
	return f, stables
}

func TestFilterState_Update(t *testing.T) {
	t.Run("commits after K consecutive observations", func(t *testing.T) {
		_, stables := feed(FilterState{}, 3, PoseOpen, PoseOpen, PoseOpen, PoseOpen)
		assert.Equal(t, []Pose{PoseUnknown, PoseUnknown, PoseOpen, PoseOpen}, stables)
	})

	t.Run("interrupted run restarts", func(t *testing.T) {
		_, stables := feed(FilterState{}, 2, PoseOpen, PoseFist, PoseOpen, PoseOpen)
		assert.Equal(t, []Pose{PoseUnknown, PoseUnknown, PoseUnknown, PoseOpen}, stables)
	})

	t.Run("matching the stable pose clears the run", func(t *testing.T) {
		f := FilterState{Stable: PoseOpen}
		f, stables := feed(f, 3, PoseFist, PoseFist, PoseOpen, PoseFist, PoseFist)
		assert.Equal(t, []Pose{PoseOpen, PoseOpen, PoseOpen, PoseOpen, PoseOpen}, stables)
		assert.Equal(t, 2, f.Count)
	})

	t.Run("pinch commits immediately", func(t *testing.T) {
		_, stables := feed(FilterState{Stable: PoseFist}, 3, PosePinch)
		assert.Equal(t, []Pose{PosePinch}, stables)
	})

	t.Run("leaving pinch is debounced", func(t *testing.T) {
		_, stables := feed(FilterState{}, 2, PosePinch, PoseOpen, PoseOpen)
		assert.Equal(t, []Pose{PosePinch, PosePinch, PoseOpen}, stables)
	})

	t.Run("K of one follows raw input", func(t *testing.T) {
		_, stables := feed(FilterState{}, 1, PoseOpen, PoseFist, PosePointing)
		assert.Equal(t, []Pose{PoseOpen, PoseFist, PosePointing}, stables)
	})

	t.Run("reset", func(t *testing.T) {
		f, _ := feed(FilterState{}, 2, PoseOpen, PoseOpen, PoseFist)
		assert.Equal(t, FilterState{}, f.Reset())
	})
}

func TestFilterState_Properties(t *testing.T) {
	poses := []Pose{PoseUnknown, PoseOpen, PoseFist, PosePinch, PosePointing}
	rng := rand.New(rand.NewPCG(7, 11))

	for _, k := range []int{1, 2, 3, 5} {
		for trial := 0; trial < 200; trial++ {
			raws := make([]Pose, 40)
			for i := range raws {
				// Favor runs so commits actually happen.
				if i > 0 && rng.IntN(3) > 0 {
					raws[i] = raws[i-1]
				} else {
					raws[i] = poses[rng.IntN(len(poses))]
				}
			}

			f := FilterState{}
			for i, raw := range raws {
				before := f.Stable
				f = f.Update(raw, k)

				if raw == PosePinch {
					if !assert.Equal(t, PosePinch, f.Stable, "pinch must be stable on the tick it is seen") {
						return
					}
					continue
				}

				if f.Stable != before {
					// A non-pinch change needs the same raw pose on the
					// last k ticks.
					if !assert.GreaterOrEqual(t, i+1, k) {
						return
					}
					for j := i - k + 1; j <= i; j++ {
						if !assert.Equal(t, f.Stable, raws[j], "k=%d sequence=%v tick=%d", k, raws, i) {
							return
						}
					}
				}
			}
		}
	}
}
