package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLikelihoodMatchesBinomialPMF(t *testing.T) {
	// 10 latent infections, 8 reported, 75% detection:
	// log C(10,8) + 8 log 0.75 + 2 log 0.25.
	want := math.Log(45) + 8*math.Log(0.75) + 2*math.Log(0.25)
	got, err := LogLikelihood(8, 10, 0.75)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestLogLikelihoodCountAboveLatentHasNoSupport(t *testing.T) {
	got, err := LogLikelihood(11, 10, 0.5)
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, -1), "got %v, want -Inf", got)
}

func TestLogLikelihoodZeroLatentIsPointMass(t *testing.T) {
	got, err := LogLikelihood(0, 0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestLogLikelihoodRejectsBadInputs(t *testing.T) {
	cases := []struct {
		name   string
		count  int
		latent int
		theta  float64
	}{
		{"theta zero", 1, 10, 0},
		{"theta one", 1, 10, 1},
		{"theta nan", 1, 10, math.NaN()},
		{"negative count", -1, 10, 0.5},
		{"negative latent", 1, -1, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LogLikelihood(tc.count, tc.latent, tc.theta)
			assert.Error(t, err)
		})
	}
}

func TestLogLikelihoodInvalidThetaIsInvalidProbability(t *testing.T) {
	_, err := LogLikelihood(1, 10, 1.5)
	assert.ErrorIs(t, err, ErrInvalidProbability)
}

func TestEnsembleLogLikelihoods(t *testing.T) {
	logw, err := EnsembleLogLikelihoods([]int{10, 5, 0}, 8, 0.75)
	require.NoError(t, err)
	require.Len(t, logw, 3)

	assert.False(t, math.IsInf(logw[0], -1), "latent 10 should carry support")
	assert.True(t, math.IsInf(logw[1], -1), "latent 5 cannot produce 8 cases")
	assert.True(t, math.IsInf(logw[2], -1), "latent 0 cannot produce 8 cases")
}

func TestEnsembleLogLikelihoodsRejectsEmptyEnsemble(t *testing.T) {
	_, err := EnsembleLogLikelihoods(nil, 1, 0.5)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
