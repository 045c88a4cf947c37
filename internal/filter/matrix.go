package filter

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/arielsaffer/EF-Activities/internal/sir"
)

// Column layout of the joint state+parameter ensemble matrix
// (rows = particles).
const (
	ColS = iota
	ColI
	ColR
	ColBeta
	ColRecovery
	NumColumns
)

// ColumnNames in matrix order, for exported artifacts.
var ColumnNames = []string{"S", "I", "R", "beta", "recovery"}

// StateColumns are the integer-valued dimensions, rounded after smoothing.
func StateColumns() []int { return []int{ColS, ColI, ColR} }

// NewJointMatrix assembles the analysis matrix from parallel ensemble
// arrays. The arrays must already be aligned by particle index.
func NewJointMatrix(states []sir.State, betas, recoveries []float64) (*mat.Dense, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("ensemble is empty: %w", ErrShapeMismatch)
	}
	if len(betas) != len(states) || len(recoveries) != len(states) {
		return nil, fmt.Errorf("ensemble arrays disagree: states=%d betas=%d recoveries=%d: %w",
			len(states), len(betas), len(recoveries), ErrShapeMismatch)
	}

	m := mat.NewDense(len(states), NumColumns, nil)
	for i, s := range states {
		m.Set(i, ColS, float64(s.S))
		m.Set(i, ColI, float64(s.I))
		m.Set(i, ColR, float64(s.R))
		m.Set(i, ColBeta, betas[i])
		m.Set(i, ColRecovery, recoveries[i])
	}
	return m, nil
}

// SplitJointMatrix decomposes the analysis matrix back into ensemble
// arrays. State columns are truncated to int; callers round before calling.
func SplitJointMatrix(m *mat.Dense) ([]sir.State, []float64, []float64, error) {
	rows, cols := m.Dims()
	if cols != NumColumns {
		return nil, nil, nil, fmt.Errorf("joint matrix has %d columns, want %d: %w", cols, NumColumns, ErrShapeMismatch)
	}

	states := make([]sir.State, rows)
	betas := make([]float64, rows)
	recoveries := make([]float64, rows)
	for i := 0; i < rows; i++ {
		states[i] = sir.State{
			S: int(m.At(i, ColS)),
			I: int(m.At(i, ColI)),
			R: int(m.At(i, ColR)),
		}
		betas[i] = m.At(i, ColBeta)
		recoveries[i] = m.At(i, ColRecovery)
	}
	return states, betas, recoveries, nil
}
