package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// LogLikelihood computes log Pr(count | latent, theta) under
// Binomial(n=latent, p=theta): the probability of observing count cases when
// latent individuals are infected and each is detected with probability
// theta. A count above the latent value has zero probability and yields
// -Inf, never an arithmetic fault.
func LogLikelihood(count, latent int, theta float64) (float64, error) {
	if math.IsNaN(theta) || theta <= 0 || theta >= 1 {
		return 0, fmt.Errorf("detection probability %v must be in (0,1): %w", theta, ErrInvalidProbability)
	}
	if count < 0 {
		return 0, fmt.Errorf("observed count must be non-negative, got %d", count)
	}
	if latent < 0 {
		return 0, fmt.Errorf("latent infected count must be non-negative, got %d", latent)
	}
	if count > latent {
		return math.Inf(-1), nil
	}
	if latent == 0 {
		// count is necessarily 0 here; the pmf is a point mass.
		return 0, nil
	}
	return distuv.Binomial{N: float64(latent), P: theta}.LogProb(float64(count)), nil
}

// EnsembleLogLikelihoods evaluates one observation against every particle's
// latent infected count.
func EnsembleLogLikelihoods(latent []int, count int, theta float64) ([]float64, error) {
	if len(latent) == 0 {
		return nil, fmt.Errorf("ensemble is empty: %w", ErrShapeMismatch)
	}
	logw := make([]float64, len(latent))
	for i, n := range latent {
		ll, err := LogLikelihood(count, n, theta)
		if err != nil {
			return nil, fmt.Errorf("particle %d: %w", i, err)
		}
		logw[i] = ll
	}
	return logw, nil
}
