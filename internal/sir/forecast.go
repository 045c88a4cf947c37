package sir

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/rand"

	"github.com/arielsaffer/EF-Activities/internal/randvar"
)

type ForecastConfig struct {
	Horizon int
	Workers int
	Seed    uint64
}

// Forecaster propagates an ensemble of particles forward over a fixed
// horizon. Particles are simulated independently on a worker pool; each
// particle draws from its own stream derived from (Seed, index), so the
// result does not depend on scheduling order.
type Forecaster struct {
	cfg ForecastConfig
}

func NewForecaster(cfg ForecastConfig) (*Forecaster, error) {
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("forecast horizon must be > 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Forecaster{cfg: cfg}, nil
}

// Forecast runs every particle forward Horizon steps and returns the
// trajectory tensor. Per-step parameter trajectories must match the horizon;
// mismatches are rejected before any simulation runs.
func (f *Forecaster) Forecast(ctx context.Context, particles []Particle) (*Tensor, error) {
	if len(particles) == 0 {
		return nil, fmt.Errorf("ensemble is empty: %w", ErrShapeMismatch)
	}
	for i, particle := range particles {
		if err := checkParam(particle.Beta, f.cfg.Horizon); err != nil {
			return nil, fmt.Errorf("particle %d beta: %w", i, err)
		}
		if err := checkParam(particle.Recovery, f.cfg.Horizon); err != nil {
			return nil, fmt.Errorf("particle %d recovery: %w", i, err)
		}
	}

	tensor, err := NewTensor(len(particles), f.cfg.Horizon)
	if err != nil {
		return nil, err
	}

	type job struct {
		idx      int
		particle Particle
	}
	type result struct {
		idx    int
		states []State
		err    error
	}

	jobs := make(chan job)
	results := make(chan result, len(particles))

	workerCount := f.cfg.Workers
	if workerCount > len(particles) {
		workerCount = len(particles)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				rng := randvar.Stream(f.cfg.Seed, j.idx)
				states, err := simulate(rng, j.particle, f.cfg.Horizon)
				results <- result{idx: j.idx, states: states, err: err}
			}
		}()
	}

	for i := range particles {
		jobs <- job{idx: i, particle: particles[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("particle %d: %w", res.idx, res.err)
		}
		tensor.setTrajectory(res.idx, res.states)
	}

	return tensor, nil
}

func simulate(rng *rand.Rand, particle Particle, horizon int) ([]State, error) {
	states := make([]State, horizon)
	current := particle.State
	for t := 0; t < horizon; t++ {
		next, err := Step(rng, current, particle.Beta.Value(t), particle.Recovery.Value(t))
		if err != nil {
			return nil, err
		}
		states[t] = next
		current = next
	}
	return states, nil
}

func checkParam(p Param, horizon int) error {
	if p == nil {
		return fmt.Errorf("parameter is required")
	}
	if steps := p.Steps(); steps != 0 && steps != horizon {
		return fmt.Errorf("parameter trajectory length %d does not match horizon %d: %w", steps, horizon, ErrShapeMismatch)
	}
	return nil
}
