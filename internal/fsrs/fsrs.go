// Package fsrs implements an FSRS-style memory model: stability and
// difficulty updates with an interval derived from desired retention.
package fsrs

import (
	"math"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// Params holds the parameters for the FSRS algorithm.
// These are placeholder values and should be optimized later.
type Params struct {
	A                float64 // scales the overall memory increase
	B                float64 // difficulty exponent
	C                float64 // stability exponent
	D                float64 // retention effect scaler
	DesiredRetention float64 // desired retention rate (e.g., 0.9 for 90%)
}

// DefaultParams provides a set of sensible default parameters to start with.
func DefaultParams() *Params {
	return &Params{
		A:                0.2,
		B:                0.5,
		C:                0.1,
		D:                4.0,
		DesiredRetention: 0.9,
	}
}

// Model is the FSRS memory model. It computes stability, difficulty,
// and interval; state transitions and clamping belong to the scheduler
// core.
type Model struct {
	Params *Params
}

// New returns a Model with the given parameters, or defaults when nil.
func New(p *Params) *Model {
	if p == nil {
		p = DefaultParams()
	}
	return &Model{Params: p}
}

// First-evaluation stability seeds by rating. Learning-step mechanics
// do not follow the review-state growth formula.
var initialStability = map[domain.Rating]float64{
	domain.Again: 1,
	domain.Hard:  1,
	domain.Good:  2,
	domain.Easy:  4,
}

// Growth multipliers for successful reviews keep the conventional
// interval ordering Hard <= Good <= Easy for the same prior state.
var successFactor = map[domain.Rating]float64{
	domain.Hard: 0.8,
	domain.Good: 1.0,
	domain.Easy: 1.3,
}

// Advance implements the memory-model contract.
func (m *Model) Advance(prev domain.PracticeState, rating domain.Rating, now time.Time) domain.PracticeState {
	p := m.Params
	next := prev

	switch {
	case prev.State == domain.StateNew:
		next.Stability = initialStability[rating]
		next.Difficulty = 5
		if rating == domain.Hard || rating == domain.Again {
			next.Difficulty = math.Min(10, next.Difficulty+0.5)
		}
	case rating == domain.Again:
		// A forgotten tune resets stability; difficulty increases, capped.
		next.Stability = 1
		next.Difficulty = math.Min(10, prev.Difficulty+0.5)
	default:
		next.Stability = p.nextStability(prev.Stability, prev.Difficulty) * successFactor[rating]
		next.Difficulty = prev.Difficulty
		if rating == domain.Hard {
			next.Difficulty = math.Min(10, next.Difficulty+0.1)
		}
	}

	next.Interval = int(math.Round(next.Stability))
	next.Due = time.Time{} // derived from the interval by the scheduler
	return next
}

// nextStability applies the core FSRS formula for a successful review:
// S' = S * (1 + a * D^(-b) * S^c * (e^(d * (1-R)) - 1))
func (p *Params) nextStability(stability, difficulty float64) float64 {
	if stability < 1 {
		stability = 1 // avoid pow blowups below the first-day floor
	}
	if difficulty < 1 {
		difficulty = 1
	}

	factor := p.A * math.Pow(difficulty, -p.B) * math.Pow(stability, p.C)
	exponent := p.D * (1 - p.DesiredRetention)
	multiplier := math.Exp(exponent) - 1

	return stability * (1 + factor*multiplier)
}
