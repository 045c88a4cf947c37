// Package stats summarizes forecast ensembles into per-step credible
// intervals for downstream reporting.
package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/arielsaffer/EF-Activities/internal/sir"
)

// Quantile probabilities of the per-cycle summary: lower, median, upper.
const (
	ProbLower  = 0.025
	ProbMedian = 0.5
	ProbUpper  = 0.975
)

// Summary holds the ensemble quantiles of one forecast window. Each band is
// steps x 3 (S, I, R).
type Summary struct {
	Lower  [][]float64 `json:"lower"`
	Median [][]float64 `json:"median"`
	Upper  [][]float64 `json:"upper"`
}

// TrajectoryQuantiles reduces the forecast tensor across particles to the
// 2.5/50/97.5 empirical percentiles per time step per compartment.
func TrajectoryQuantiles(t *sir.Tensor) (Summary, error) {
	if t == nil || t.Particles() == 0 {
		return Summary{}, fmt.Errorf("forecast tensor is empty")
	}

	steps := t.Steps()
	summary := Summary{
		Lower:  make([][]float64, steps),
		Median: make([][]float64, steps),
		Upper:  make([][]float64, steps),
	}

	column := make([]float64, t.Particles())
	for step := 0; step < steps; step++ {
		summary.Lower[step] = make([]float64, 3)
		summary.Median[step] = make([]float64, 3)
		summary.Upper[step] = make([]float64, 3)
		for comp := 0; comp < 3; comp++ {
			for p := 0; p < t.Particles(); p++ {
				column[p] = component(t.At(p, step), comp)
			}
			sort.Float64s(column)
			summary.Lower[step][comp] = stat.Quantile(ProbLower, stat.Empirical, column, nil)
			summary.Median[step][comp] = stat.Quantile(ProbMedian, stat.Empirical, column, nil)
			summary.Upper[step][comp] = stat.Quantile(ProbUpper, stat.Empirical, column, nil)
		}
	}
	return summary, nil
}

func component(s sir.State, comp int) float64 {
	switch comp {
	case 0:
		return float64(s.S)
	case 1:
		return float64(s.I)
	default:
		return float64(s.R)
	}
}
