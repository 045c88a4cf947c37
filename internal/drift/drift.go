// Package drift models unexplained temporal parameter variability as a
// multiplicative log-normal random walk. Drift is distinct from parameter
// uncertainty, which is carried by ensemble spread.
package drift

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// RandomWalk generates multiplier trajectories m with m[0] = 1 and
// m[t+1] = m[t] * X, X ~ LogNormal(0, SD). SD is the mutation rate; zero
// disables drift and yields the all-ones trajectory.
type RandomWalk struct {
	sd float64
}

func New(sd float64) (RandomWalk, error) {
	if sd < 0 {
		return RandomWalk{}, fmt.Errorf("mutation rate must be >= 0, got %v", sd)
	}
	return RandomWalk{sd: sd}, nil
}

// Trajectory draws one multiplier trajectory of the given length.
func (w RandomWalk) Trajectory(src rand.Source, steps int) ([]float64, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("trajectory length must be > 0, got %d", steps)
	}

	m := make([]float64, steps)
	m[0] = 1
	if w.sd == 0 {
		for t := 1; t < steps; t++ {
			m[t] = 1
		}
		return m, nil
	}

	step := distuv.LogNormal{Mu: 0, Sigma: w.sd, Src: src}
	for t := 1; t < steps; t++ {
		m[t] = m[t-1] * step.Rand()
	}
	return m, nil
}

// Apply scales a baseline parameter by a multiplier trajectory, producing
// the per-step values fed to the transition model.
func Apply(baseline float64, m []float64) []float64 {
	out := make([]float64, len(m))
	for t := range m {
		out[t] = baseline * m[t]
	}
	return out
}
