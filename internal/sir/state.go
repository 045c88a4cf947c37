// Package sir implements the discrete-time stochastic
// Susceptible-Infected-Recovered transition model and the ensemble
// forecaster built on top of it.
package sir

import "errors"

var (
	ErrInvalidProbability = errors.New("probability out of range")
	ErrShapeMismatch      = errors.New("ensemble shape mismatch")
)

// State is one particle's compartment counts. S + I + R is the total
// population and stays constant across transitions.
type State struct {
	S int `json:"s"`
	I int `json:"i"`
	R int `json:"r"`
}

// N returns the total population of the state.
func (s State) N() int {
	return s.S + s.I + s.R
}

func (s State) nonNegative() bool {
	return s.S >= 0 && s.I >= 0 && s.R >= 0
}

// Param is a transition-model parameter, either broadcast across the horizon
// or given per step. Steps reports the trajectory length, 0 for broadcast.
type Param interface {
	Value(step int) float64
	Steps() int
}

// Constant broadcasts a single value across every step.
type Constant float64

func (c Constant) Value(int) float64 { return float64(c) }

func (c Constant) Steps() int { return 0 }

// TimeVarying supplies one value per step.
type TimeVarying []float64

func (v TimeVarying) Value(step int) float64 { return v[step] }

func (v TimeVarying) Steps() int { return len(v) }

// Particle is one ensemble member: a state plus its infection-rate and
// recovery parameters. Particles never read each other's state during
// forward simulation.
type Particle struct {
	State    State
	Beta     Param
	Recovery Param
}
