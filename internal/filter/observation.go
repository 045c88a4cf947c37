// Package filter implements the analysis half of the assimilation cycle:
// the observation likelihood, bootstrap resampling of the joint ensemble,
// and post-resampling kernel smoothing.
package filter

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidProbability = errors.New("probability out of range")
	ErrShapeMismatch      = errors.New("ensemble shape mismatch")
)

// Observation pairs an absolute time step with a reported case count.
// Missing observations are designed no-ops for the analysis step.
type Observation struct {
	Step    int  `json:"step"`
	Count   int  `json:"count"`
	Missing bool `json:"missing"`
}

// Series is an ordered observation sequence.
type Series []Observation

// Validate rejects unordered steps and negative counts. Steps are absolute
// time indices counted from the initial condition, so they start at 1.
func (s Series) Validate() error {
	prev := 0
	for i, obs := range s {
		if obs.Step <= prev {
			return fmt.Errorf("observation %d: step %d is not after step %d: %w", i, obs.Step, prev, ErrShapeMismatch)
		}
		if !obs.Missing && obs.Count < 0 {
			return fmt.Errorf("observation %d: count must be non-negative, got %d", i, obs.Count)
		}
		prev = obs.Step
	}
	return nil
}
