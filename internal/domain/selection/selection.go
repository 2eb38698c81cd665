// Package selection draws one candidate with probability proportional to its
// weight.
package selection

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/okian/gmassign/internal/domain/eligibility"
)

// ErrNoCandidates is returned when Select is called with an empty list.
var ErrNoCandidates = errors.New("selection: no candidates")

// Source yields uniform floats in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded source. A zero seed derives one from the clock.
func NewSource(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Select draws from candidates using src. A single candidate is returned
// without consulting src.
func Select(src Source, candidates []eligibility.Result) (eligibility.Result, error) {
	switch len(candidates) {
	case 0:
		return eligibility.Result{}, ErrNoCandidates
	case 1:
		return candidates[0], nil
	}

	total := 0.0
	for _, c := range candidates {
		total += c.Weight
	}
	r := src.Float64() * total

	cumulative := 0.0
	for _, c := range candidates {
		cumulative += c.Weight
		if cumulative >= r {
			return c, nil
		}
	}
	return candidates[len(candidates)-1], nil
}
