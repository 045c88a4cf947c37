package sir

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/arielsaffer/EF-Activities/internal/randvar"
)

// Step advances one state one time step: new cases are drawn from
// Binomial(S, beta*I) and new recoveries from Binomial(I, recovery). The
// infection probability beta*I is clamped at 1 before sampling; a recovery
// probability outside [0,1] or a negative beta is rejected as
// ErrInvalidProbability before any draw.
func Step(src rand.Source, s State, beta, recovery float64) (State, error) {
	if !s.nonNegative() {
		return State{}, fmt.Errorf("state components must be non-negative, got %+v", s)
	}
	if math.IsNaN(beta) || math.IsInf(beta, 0) || beta < 0 {
		return State{}, fmt.Errorf("beta %v: %w", beta, ErrInvalidProbability)
	}
	if math.IsNaN(recovery) || recovery < 0 || recovery > 1 {
		return State{}, fmt.Errorf("recovery %v: %w", recovery, ErrInvalidProbability)
	}

	pInfect := beta * float64(s.I)
	if pInfect > 1 {
		pInfect = 1
	}

	cases := randvar.Binomial(src, s.S, pInfect)
	recoveries := randvar.Binomial(src, s.I, recovery)

	return State{
		S: s.S - cases,
		I: s.I + cases - recoveries,
		R: s.R + recoveries,
	}, nil
}
