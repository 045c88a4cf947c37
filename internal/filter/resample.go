package filter

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
)

// NormalizeWeights converts unnormalized log-likelihoods into weights that
// sum to 1, subtracting the maximum before exponentiating to avoid
// underflow. When no particle carries support (every log-likelihood is
// -Inf) the ensemble has lost the observation entirely; the fallback is a
// uniform weighting, reported through the degenerate flag.
func NormalizeWeights(logw []float64) ([]float64, bool, error) {
	if len(logw) == 0 {
		return nil, false, fmt.Errorf("no weights to normalize: %w", ErrShapeMismatch)
	}

	maxw := math.Inf(-1)
	for i, w := range logw {
		if math.IsNaN(w) || math.IsInf(w, 1) {
			return nil, false, fmt.Errorf("log-likelihood %d is %v", i, w)
		}
		if w > maxw {
			maxw = w
		}
	}

	weights := make([]float64, len(logw))
	if math.IsInf(maxw, -1) {
		uniform := 1 / float64(len(logw))
		for i := range weights {
			weights[i] = uniform
		}
		return weights, true, nil
	}

	sum := 0.0
	for i, w := range logw {
		weights[i] = math.Exp(w - maxw)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, false, nil
}

// Resample draws n indices with replacement, index i with probability
// weights[i]. Weights must be normalized.
func Resample(src rand.Source, weights []float64, n int) ([]int, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("no weights to resample: %w", ErrShapeMismatch)
	}
	if n <= 0 {
		return nil, fmt.Errorf("sample size must be > 0, got %d", n)
	}

	cumulative := make([]float64, len(weights))
	acc := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 {
			return nil, fmt.Errorf("weight %d is invalid: %v", i, w)
		}
		acc += w
		cumulative[i] = acc
	}
	if acc <= 0 {
		return nil, fmt.Errorf("weights sum to %v, cannot resample", acc)
	}

	rng := rand.New(src)
	indices := make([]int, n)
	for k := range indices {
		u := rng.Float64() * acc
		idx := sort.SearchFloat64s(cumulative, u)
		if idx >= len(weights) {
			idx = len(weights) - 1
		}
		indices[k] = idx
	}
	return indices, nil
}

// Gather reslices one ensemble array by a resampling index set. Every array
// of the joint ensemble must be gathered with the same indices to preserve
// the joint state-parameter structure.
func Gather[T any](items []T, indices []int) ([]T, error) {
	out := make([]T, len(indices))
	for k, idx := range indices {
		if idx < 0 || idx >= len(items) {
			return nil, fmt.Errorf("index %d out of range [0,%d): %w", idx, len(items), ErrShapeMismatch)
		}
		out[k] = items[idx]
	}
	return out, nil
}

// EffectiveSampleSize is the standard particle-filter degeneracy monitor
// 1/sum(w^2) over normalized weights.
func EffectiveSampleSize(weights []float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w * w
	}
	if sum == 0 {
		return 0
	}
	return 1 / sum
}
