// Package assim orchestrates the repeating forecast-analysis cycle: ensemble
// forecast, observation likelihood, bootstrap resampling and kernel
// smoothing, carrying the corrected joint ensemble into the next cycle.
package assim

import (
	"context"
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/arielsaffer/EF-Activities/internal/drift"
	"github.com/arielsaffer/EF-Activities/internal/filter"
	"github.com/arielsaffer/EF-Activities/internal/randvar"
	"github.com/arielsaffer/EF-Activities/internal/sir"
	"github.com/arielsaffer/EF-Activities/internal/stats"
)

// Command steers a running controller from outside. Commands take effect at
// cycle boundaries; a forecast in flight always completes.
type Command string

const (
	CommandPause    Command = "pause"
	CommandContinue Command = "continue"
	CommandStop     Command = "stop"
)

// Phase is the controller's externally visible state.
type Phase string

const (
	PhaseInitialized Phase = "initialized"
	PhaseForecasting Phase = "forecasting"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseResampling  Phase = "resampling"
	PhaseDone        Phase = "done"
)

// Priors configure the initial ensemble draw. InitialInfected is rounded to
// an integer and clamped to [0, Population]; S0 = Population - I0, R0 = 0.
type Priors struct {
	InitialInfected randvar.Spec
	Beta            randvar.Spec
	Recovery        randvar.Spec
}

type Config struct {
	Population   int
	EnsembleSize int
	Horizon      int
	Detection    float64
	Smoothing    float64
	MutationSD   float64
	Priors       Priors
	Observations filter.Series
	MaxCycles    int
	Workers      int
	Seed         uint64
	Control      <-chan Command
}

// Cycle is one entry of the append-only cycle log: the forecast tensor, its
// quantile summary, the post-analysis joint ensemble and the analysis
// diagnostics. Entries are never mutated after append.
type Cycle struct {
	Index            int
	ObservationStep  int
	ObservationCount int
	Missing          bool
	Degenerate       bool
	EffectiveSize    float64
	MaxLogLikelihood float64
	Forecast         *sir.Tensor
	Quantiles        stats.Summary
	Ensemble         *mat.Dense
}

type RunResult struct {
	Cycles          []Cycle
	FinalStates     []sir.State
	FinalBetas      []float64
	FinalRecoveries []float64
	Stopped         bool
}

type Controller struct {
	cfg      Config
	walk     drift.RandomWalk
	smoother *filter.Smoother

	mu    sync.RWMutex
	phase Phase
}

// NewController validates the full configuration before any simulation
// runs; shape and probability errors are fatal here, never mid-run.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Population <= 0 {
		return nil, fmt.Errorf("population must be > 0")
	}
	if cfg.EnsembleSize < 2 {
		return nil, fmt.Errorf("ensemble size must be >= 2")
	}
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("forecast horizon must be > 0")
	}
	if math.IsNaN(cfg.Detection) || cfg.Detection <= 0 || cfg.Detection >= 1 {
		return nil, fmt.Errorf("detection probability %v must be in (0,1): %w", cfg.Detection, filter.ErrInvalidProbability)
	}
	if err := cfg.Observations.Validate(); err != nil {
		return nil, err
	}
	prev := 0
	for i, obs := range cfg.Observations {
		if obs.Step-prev > cfg.Horizon {
			return nil, fmt.Errorf("observation %d at step %d is beyond the %d-step forecast window from step %d: %w",
				i, obs.Step, cfg.Horizon, prev, filter.ErrShapeMismatch)
		}
		prev = obs.Step
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	walk, err := drift.New(cfg.MutationSD)
	if err != nil {
		return nil, err
	}
	smoother, err := filter.NewSmoother(cfg.Smoothing)
	if err != nil {
		return nil, fmt.Errorf("smoothing factor: %w", err)
	}
	// Construct throwaway samplers now so prior misconfiguration fails fast.
	probe := randvar.Stream(cfg.Seed, 0)
	for _, spec := range []randvar.Spec{cfg.Priors.InitialInfected, cfg.Priors.Beta, cfg.Priors.Recovery} {
		if _, err := spec.Sampler(probe); err != nil {
			return nil, fmt.Errorf("prior: %w", err)
		}
	}

	return &Controller{
		cfg:      cfg,
		walk:     walk,
		smoother: smoother,
		phase:    PhaseInitialized,
	}, nil
}

func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Run executes forecast-analysis cycles until the observation sequence is
// exhausted, MaxCycles is reached, the context is cancelled, or CommandStop
// arrives at a cycle boundary.
func (c *Controller) Run(ctx context.Context) (RunResult, error) {
	states, betas, recoveries, err := c.drawPrior()
	if err != nil {
		return RunResult{}, err
	}

	maxCycles := c.cfg.MaxCycles
	if maxCycles <= 0 || maxCycles > len(c.cfg.Observations) {
		maxCycles = len(c.cfg.Observations)
	}

	result := RunResult{Cycles: make([]Cycle, 0, maxCycles)}
	currentStep := 0

	for cycle := 0; cycle < maxCycles; cycle++ {
		stop, err := c.checkpoint(ctx)
		if err != nil {
			return RunResult{}, err
		}
		if stop {
			result.Stopped = true
			break
		}

		obs := c.cfg.Observations[cycle]
		offset := obs.Step - currentStep - 1
		cycleSeed := randvar.SubSeed(c.cfg.Seed, cycle+1)

		c.setPhase(PhaseForecasting)
		tensor, err := c.forecast(ctx, cycleSeed, states, betas, recoveries)
		if err != nil {
			return RunResult{}, err
		}
		summary, err := stats.TrajectoryQuantiles(tensor)
		if err != nil {
			return RunResult{}, err
		}

		endStates := make([]sir.State, len(states))
		for i := range endStates {
			endStates[i] = tensor.At(i, offset)
		}

		record := Cycle{
			Index:            cycle,
			ObservationStep:  obs.Step,
			ObservationCount: obs.Count,
			Missing:          obs.Missing,
			Forecast:         tensor,
			Quantiles:        summary,
		}

		if obs.Missing {
			// Designed no-op: the ensemble passes through unchanged.
			states = endStates
			record.EffectiveSize = float64(len(states))
			record.MaxLogLikelihood = math.Inf(-1)
			record.Ensemble, err = filter.NewJointMatrix(states, betas, recoveries)
			if err != nil {
				return RunResult{}, err
			}
		} else {
			c.setPhase(PhaseAnalyzing)
			states, betas, recoveries, err = c.analyze(cycleSeed, &record, endStates, betas, recoveries, obs.Count)
			if err != nil {
				return RunResult{}, err
			}
		}

		currentStep = obs.Step
		result.Cycles = append(result.Cycles, record)

		log.WithFields(log.Fields{
			"cycle":      cycle,
			"step":       obs.Step,
			"missing":    obs.Missing,
			"degenerate": record.Degenerate,
			"ess":        record.EffectiveSize,
		}).Debug("assimilation cycle complete")
	}

	c.setPhase(PhaseDone)
	result.FinalStates = states
	result.FinalBetas = betas
	result.FinalRecoveries = recoveries
	return result, nil
}

func (c *Controller) drawPrior() ([]sir.State, []float64, []float64, error) {
	priorSeed := randvar.SubSeed(c.cfg.Seed, 0)
	states := make([]sir.State, c.cfg.EnsembleSize)
	betas := make([]float64, c.cfg.EnsembleSize)
	recoveries := make([]float64, c.cfg.EnsembleSize)

	for i := range states {
		src := randvar.Stream(priorSeed, i)
		i0Sampler, err := c.cfg.Priors.InitialInfected.Sampler(src)
		if err != nil {
			return nil, nil, nil, err
		}
		betaSampler, err := c.cfg.Priors.Beta.Sampler(src)
		if err != nil {
			return nil, nil, nil, err
		}
		recoverySampler, err := c.cfg.Priors.Recovery.Sampler(src)
		if err != nil {
			return nil, nil, nil, err
		}

		i0 := int(math.Round(i0Sampler.Rand()))
		if i0 < 0 {
			i0 = 0
		}
		if i0 > c.cfg.Population {
			i0 = c.cfg.Population
		}
		states[i] = sir.State{S: c.cfg.Population - i0, I: i0, R: 0}
		betas[i] = betaSampler.Rand()
		recoveries[i] = recoverySampler.Rand()
	}
	return states, betas, recoveries, nil
}

func (c *Controller) forecast(ctx context.Context, cycleSeed uint64, states []sir.State, betas, recoveries []float64) (*sir.Tensor, error) {
	driftSeed := randvar.SubSeed(cycleSeed, 1)
	particles := make([]sir.Particle, len(states))
	for i := range particles {
		src := randvar.Stream(driftSeed, i)
		mBeta, err := c.walk.Trajectory(src, c.cfg.Horizon)
		if err != nil {
			return nil, err
		}
		mRecovery, err := c.walk.Trajectory(src, c.cfg.Horizon)
		if err != nil {
			return nil, err
		}
		// The random walk is unbounded above; the effective recovery must
		// stay a probability, same as the transition model's clamp on the
		// infection probability.
		particles[i] = sir.Particle{
			State:    states[i],
			Beta:     sir.TimeVarying(drift.Apply(betas[i], mBeta)),
			Recovery: sir.TimeVarying(clamp01(drift.Apply(recoveries[i], mRecovery))),
		}
	}

	forecaster, err := sir.NewForecaster(sir.ForecastConfig{
		Horizon: c.cfg.Horizon,
		Workers: c.cfg.Workers,
		Seed:    randvar.SubSeed(cycleSeed, 0),
	})
	if err != nil {
		return nil, err
	}
	return forecaster.Forecast(ctx, particles)
}

func (c *Controller) analyze(cycleSeed uint64, record *Cycle, endStates []sir.State, betas, recoveries []float64, count int) ([]sir.State, []float64, []float64, error) {
	latent := make([]int, len(endStates))
	for i, s := range endStates {
		latent[i] = s.I
	}

	logw, err := filter.EnsembleLogLikelihoods(latent, count, c.cfg.Detection)
	if err != nil {
		return nil, nil, nil, err
	}
	weights, degenerate, err := filter.NormalizeWeights(logw)
	if err != nil {
		return nil, nil, nil, err
	}
	record.Degenerate = degenerate
	record.EffectiveSize = filter.EffectiveSampleSize(weights)
	record.MaxLogLikelihood = maxFloat(logw)
	if degenerate {
		log.WithFields(log.Fields{
			"cycle": record.Index,
			"step":  record.ObservationStep,
			"count": count,
		}).Warn("ensemble has no support for observation; falling back to uniform weights")
	}

	c.setPhase(PhaseResampling)
	rng := randvar.Stream(cycleSeed, 2)
	indices, err := filter.Resample(rng, weights, len(weights))
	if err != nil {
		return nil, nil, nil, err
	}
	states, err := filter.Gather(endStates, indices)
	if err != nil {
		return nil, nil, nil, err
	}
	betas, err = filter.Gather(betas, indices)
	if err != nil {
		return nil, nil, nil, err
	}
	recoveries, err = filter.Gather(recoveries, indices)
	if err != nil {
		return nil, nil, nil, err
	}

	matrix, err := filter.NewJointMatrix(states, betas, recoveries)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := c.smoother.Smooth(rng, matrix, filter.StateColumns()); err != nil {
		return nil, nil, nil, err
	}
	states, betas, recoveries, err = filter.SplitJointMatrix(matrix)
	if err != nil {
		return nil, nil, nil, err
	}

	// Rounding the jittered state columns independently can break population
	// conservation; R absorbs the slack. Smoothing noise can likewise push
	// the parameter columns past their valid ranges.
	for i := range states {
		states[i] = conserve(states[i], c.cfg.Population)
		if betas[i] < 0 {
			betas[i] = 0
		}
		if recoveries[i] < 0 {
			recoveries[i] = 0
		}
		if recoveries[i] > 1 {
			recoveries[i] = 1
		}
	}
	matrix, err = filter.NewJointMatrix(states, betas, recoveries)
	if err != nil {
		return nil, nil, nil, err
	}
	record.Ensemble = matrix

	return states, betas, recoveries, nil
}

func clamp01(values []float64) []float64 {
	for i, v := range values {
		if v < 0 {
			values[i] = 0
		}
		if v > 1 {
			values[i] = 1
		}
	}
	return values
}

func conserve(s sir.State, population int) sir.State {
	if s.S > population {
		s.S = population
	}
	if s.I > population-s.S {
		s.I = population - s.S
	}
	s.R = population - s.S - s.I
	return s
}

// checkpoint drains pending control commands at a cycle boundary, blocking
// while paused.
func (c *Controller) checkpoint(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.cfg.Control == nil {
		return false, nil
	}
	for {
		select {
		case cmd := <-c.cfg.Control:
			switch cmd {
			case CommandStop:
				return true, nil
			case CommandPause:
				stop, err := c.waitForContinue(ctx)
				if stop || err != nil {
					return stop, err
				}
			case CommandContinue:
				// Not paused; nothing to do.
			}
		case <-ctx.Done():
			return false, ctx.Err()
		default:
			return false, nil
		}
	}
}

func (c *Controller) waitForContinue(ctx context.Context) (bool, error) {
	for {
		select {
		case cmd := <-c.cfg.Control:
			switch cmd {
			case CommandStop:
				return true, nil
			case CommandContinue:
				return false, nil
			}
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func maxFloat(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	return max
}
