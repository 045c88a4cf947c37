package storage

import (
	"context"

	"github.com/arielsaffer/EF-Activities/internal/model"
)

// Store defines persistence operations for assimilation-run artifacts.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveCycleDiagnostics(ctx context.Context, runID string, diagnostics []model.CycleDiagnostics) error
	GetCycleDiagnostics(ctx context.Context, runID string) ([]model.CycleDiagnostics, bool, error)
	SaveQuantileHistory(ctx context.Context, runID string, history []model.CycleQuantiles) error
	GetQuantileHistory(ctx context.Context, runID string) ([]model.CycleQuantiles, bool, error)
	SaveEnsembleSnapshot(ctx context.Context, snapshot model.EnsembleSnapshot) error
	GetEnsembleSnapshot(ctx context.Context, runID string, cycle int) (model.EnsembleSnapshot, bool, error)
}

// Resetter is implemented by stores that can drop all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}
