package filter

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Repeated resampling duplicates a shrinking set of discrete values until
// the ensemble collapses onto a few support points (particle
// impoverishment). The smoother restores continuous diversity: each particle
// is shrunk toward the ensemble mean and jittered with multivariate-normal
// noise drawn from the covariance of the mean-normalized ensemble, scaled
// back by the mean so noise stays proportional to each dimension's scale.
type Smoother struct {
	h     float64
	ridge float64
}

// NewSmoother requires a shrinkage factor h in (0,1), typically close to 1.
func NewSmoother(h float64) (*Smoother, error) {
	if math.IsNaN(h) || h <= 0 || h >= 1 {
		return nil, fmt.Errorf("shrinkage factor %v must be in (0,1): %w", h, ErrInvalidProbability)
	}
	return &Smoother{h: h, ridge: 1e-9}, nil
}

// Smooth jitters the resampled ensemble matrix in place. Columns listed in
// discrete are rounded to the nearest integer and clamped at zero after
// smoothing; the rest stay continuous.
func (s *Smoother) Smooth(src rand.Source, m *mat.Dense, discrete []int) error {
	rows, cols := m.Dims()
	if rows < 2 {
		return fmt.Errorf("smoothing requires at least 2 particles, got %d: %w", rows, ErrShapeMismatch)
	}
	for _, col := range discrete {
		if col < 0 || col >= cols {
			return fmt.Errorf("discrete column %d out of range [0,%d): %w", col, cols, ErrShapeMismatch)
		}
	}

	means := make([]float64, cols)
	scales := make([]float64, cols)
	column := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(column, j, m)
		means[j] = stat.Mean(column, nil)
		scales[j] = means[j]
		if scales[j] == 0 {
			// A zero-mean dimension gets absolute-scale noise instead.
			scales[j] = 1
		}
	}

	normalized := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			normalized.Set(i, j, m.At(i, j)/scales[j])
		}
	}

	cov := mat.NewSymDense(cols, nil)
	stat.CovarianceMatrix(cov, normalized, nil)

	normal, err := s.noiseSampler(cov, src)
	if err != nil {
		return err
	}

	noise := make([]float64, cols)
	for i := 0; i < rows; i++ {
		normal.Rand(noise)
		for j := 0; j < cols; j++ {
			v := means[j] + s.h*(m.At(i, j)-means[j]) + (1-s.h)*noise[j]*scales[j]
			m.Set(i, j, v)
		}
	}

	for _, j := range discrete {
		for i := 0; i < rows; i++ {
			v := math.Round(m.At(i, j))
			if v < 0 {
				v = 0
			}
			m.Set(i, j, v)
		}
	}
	return nil
}

// noiseSampler builds the zero-mean multivariate normal for the empirical
// covariance. A near-singular covariance (common when the resampled
// ensemble has collapsed) fails the Cholesky inside distmv.NewNormal; the
// matrix is then regularized with an escalating diagonal ridge.
func (s *Smoother) noiseSampler(cov *mat.SymDense, src rand.Source) (*distmv.Normal, error) {
	cols := cov.SymmetricDim()
	zero := make([]float64, cols)

	if normal, ok := distmv.NewNormal(zero, cov, src); ok {
		return normal, nil
	}

	ridge := s.ridge
	for attempt := 0; attempt < 4; attempt++ {
		regularized := mat.NewSymDense(cols, nil)
		regularized.CopySym(cov)
		for j := 0; j < cols; j++ {
			regularized.SetSym(j, j, regularized.At(j, j)+ridge)
		}
		if normal, ok := distmv.NewNormal(zero, regularized, src); ok {
			return normal, nil
		}
		ridge *= 1e3
	}
	return nil, fmt.Errorf("ensemble covariance is not positive definite after regularization")
}
