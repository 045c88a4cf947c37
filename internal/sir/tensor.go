package sir

import "fmt"

// Tensor is the simulated state history for a full ensemble: Nmc particles
// by NT steps by the three compartments. Row t of a trajectory is the state
// after t+1 transitions from the particle's initial state. A tensor is
// written once by the forecaster and read-only afterwards.
type Tensor struct {
	particles int
	steps     int
	states    []State
}

func NewTensor(particles, steps int) (*Tensor, error) {
	if particles <= 0 || steps <= 0 {
		return nil, fmt.Errorf("tensor dimensions must be positive, got %dx%d: %w", particles, steps, ErrShapeMismatch)
	}
	return &Tensor{
		particles: particles,
		steps:     steps,
		states:    make([]State, particles*steps),
	}, nil
}

func (t *Tensor) Particles() int { return t.particles }

func (t *Tensor) Steps() int { return t.steps }

// At returns the state of particle p after step+1 transitions.
func (t *Tensor) At(p, step int) State {
	return t.states[p*t.steps+step]
}

// Trajectory returns a copy of one particle's full state history.
func (t *Tensor) Trajectory(p int) []State {
	out := make([]State, t.steps)
	copy(out, t.states[p*t.steps:(p+1)*t.steps])
	return out
}

func (t *Tensor) setTrajectory(p int, states []State) {
	copy(t.states[p*t.steps:(p+1)*t.steps], states)
}
