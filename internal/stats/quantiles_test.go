package stats

import (
	"context"
	"testing"

	"github.com/arielsaffer/EF-Activities/internal/sir"
)

func TestTrajectoryQuantilesRejectsEmptyTensor(t *testing.T) {
	if _, err := TrajectoryQuantiles(nil); err == nil {
		t.Fatal("expected error for nil tensor")
	}
}

func TestTrajectoryQuantilesSingleParticleBandsCoincide(t *testing.T) {
	forecaster, err := sir.NewForecaster(sir.ForecastConfig{Horizon: 10, Seed: 3})
	if err != nil {
		t.Fatalf("forecaster: %v", err)
	}
	tensor, err := forecaster.Forecast(context.Background(), []sir.Particle{{
		State:    sir.State{S: 990, I: 10, R: 0},
		Beta:     sir.Constant(1e-3),
		Recovery: sir.Constant(0.2),
	}})
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}

	summary, err := TrajectoryQuantiles(tensor)
	if err != nil {
		t.Fatalf("quantiles: %v", err)
	}
	if len(summary.Median) != 10 {
		t.Fatalf("summary has %d steps, want 10", len(summary.Median))
	}
	for step := 0; step < 10; step++ {
		state := tensor.At(0, step)
		want := []float64{float64(state.S), float64(state.I), float64(state.R)}
		for comp := 0; comp < 3; comp++ {
			if summary.Lower[step][comp] != want[comp] ||
				summary.Median[step][comp] != want[comp] ||
				summary.Upper[step][comp] != want[comp] {
				t.Fatalf("step %d comp %d: bands %v/%v/%v, want all %v", step, comp,
					summary.Lower[step][comp], summary.Median[step][comp], summary.Upper[step][comp], want[comp])
			}
		}
	}
}

func TestTrajectoryQuantilesBandsAreOrdered(t *testing.T) {
	particles := make([]sir.Particle, 50)
	for i := range particles {
		particles[i] = sir.Particle{
			State:    sir.State{S: 9995, I: 5, R: 0},
			Beta:     sir.Constant(5e-5),
			Recovery: sir.Constant(1.0 / 7.0),
		}
	}
	forecaster, err := sir.NewForecaster(sir.ForecastConfig{Horizon: 40, Workers: 4, Seed: 11})
	if err != nil {
		t.Fatalf("forecaster: %v", err)
	}
	tensor, err := forecaster.Forecast(context.Background(), particles)
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}

	summary, err := TrajectoryQuantiles(tensor)
	if err != nil {
		t.Fatalf("quantiles: %v", err)
	}
	for step := 0; step < 40; step++ {
		for comp := 0; comp < 3; comp++ {
			lower := summary.Lower[step][comp]
			median := summary.Median[step][comp]
			upper := summary.Upper[step][comp]
			if lower > median || median > upper {
				t.Fatalf("step %d comp %d: bands out of order %v/%v/%v", step, comp, lower, median, upper)
			}
		}
	}
}
