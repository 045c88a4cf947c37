package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arielsaffer/EF-Activities/internal/randvar"
	"github.com/arielsaffer/EF-Activities/internal/sir"
)

func TestNormalizeWeightsSumsToOne(t *testing.T) {
	weights, degenerate, err := NormalizeWeights([]float64{-700, -701, -705})
	require.NoError(t, err)
	assert.False(t, degenerate)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	// Larger log-likelihood, larger weight.
	assert.Greater(t, weights[0], weights[1])
	assert.Greater(t, weights[1], weights[2])
}

func TestNormalizeWeightsSurvivesExtremeMagnitudes(t *testing.T) {
	// Direct exponentiation of these underflows to zero; the max-subtraction
	// must keep the ratio intact.
	weights, degenerate, err := NormalizeWeights([]float64{-10000, -10000 + math.Log(3)})
	require.NoError(t, err)
	assert.False(t, degenerate)
	assert.InDelta(t, 0.25, weights[0], 1e-12)
	assert.InDelta(t, 0.75, weights[1], 1e-12)
}

func TestNormalizeWeightsDegenerateFallsBackToUniform(t *testing.T) {
	weights, degenerate, err := NormalizeWeights([]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1), math.Inf(-1)})
	require.NoError(t, err)
	assert.True(t, degenerate)
	for _, w := range weights {
		assert.Equal(t, 0.25, w)
	}
}

func TestNormalizeWeightsRejectsNaNAndPositiveInf(t *testing.T) {
	_, _, err := NormalizeWeights([]float64{0, math.NaN()})
	assert.Error(t, err)
	_, _, err = NormalizeWeights([]float64{0, math.Inf(1)})
	assert.Error(t, err)
	_, _, err = NormalizeWeights(nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestResampleIndicesAreInRange(t *testing.T) {
	indices, err := Resample(randvar.Stream(1, 0), []float64{0.1, 0.2, 0.3, 0.4}, 500)
	require.NoError(t, err)
	require.Len(t, indices, 500)
	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 4)
	}
}

func TestResampleFrequenciesTrackWeights(t *testing.T) {
	const draws = 100000
	indices, err := Resample(randvar.Stream(2, 0), []float64{0.8, 0.2}, draws)
	require.NoError(t, err)

	count := 0
	for _, idx := range indices {
		if idx == 0 {
			count++
		}
	}
	assert.InDelta(t, 0.8, float64(count)/draws, 0.01)
}

func TestResampleRejectsInvalidInputs(t *testing.T) {
	_, err := Resample(randvar.Stream(1, 0), nil, 10)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Resample(randvar.Stream(1, 0), []float64{1}, 0)
	assert.Error(t, err)
	_, err = Resample(randvar.Stream(1, 0), []float64{0.5, -0.5}, 10)
	assert.Error(t, err)
	_, err = Resample(randvar.Stream(1, 0), []float64{0, 0}, 10)
	assert.Error(t, err)
}

func TestGatherPreservesJointStructure(t *testing.T) {
	states := []sir.State{{S: 3}, {S: 2}, {S: 1}}
	betas := []float64{0.3, 0.2, 0.1}
	indices := []int{2, 2, 0}

	gatheredStates, err := Gather(states, indices)
	require.NoError(t, err)
	gatheredBetas, err := Gather(betas, indices)
	require.NoError(t, err)

	// The same index set applied to both arrays keeps state-parameter pairs
	// together.
	for k := range indices {
		assert.Equal(t, float64(gatheredStates[k].S)/10, gatheredBetas[k])
	}
}

func TestGatherRejectsOutOfRangeIndex(t *testing.T) {
	_, err := Gather([]float64{1, 2}, []int{0, 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Gather([]float64{1, 2}, []int{-1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestEffectiveSampleSize(t *testing.T) {
	uniform := []float64{0.25, 0.25, 0.25, 0.25}
	assert.InDelta(t, 4.0, EffectiveSampleSize(uniform), 1e-12)

	pointMass := []float64{1, 0, 0, 0}
	assert.InDelta(t, 1.0, EffectiveSampleSize(pointMass), 1e-12)

	assert.Equal(t, 0.0, EffectiveSampleSize(nil))
}
