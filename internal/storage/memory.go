package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arielsaffer/EF-Activities/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	diagnostics map[string][]model.CycleDiagnostics
	quantiles   map[string][]model.CycleQuantiles
	ensembles   map[string]model.EnsembleSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.diagnostics = make(map[string][]model.CycleDiagnostics)
	s.quantiles = make(map[string][]model.CycleQuantiles)
	s.ensembles = make(map[string]model.EnsembleSnapshot)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
	return runs, nil
}

func (s *MemoryStore) SaveCycleDiagnostics(_ context.Context, runID string, diagnostics []model.CycleDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics[runID] = append([]model.CycleDiagnostics(nil), diagnostics...)
	return nil
}

func (s *MemoryStore) GetCycleDiagnostics(_ context.Context, runID string) ([]model.CycleDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.CycleDiagnostics(nil), diagnostics...), true, nil
}

func (s *MemoryStore) SaveQuantileHistory(_ context.Context, runID string, history []model.CycleQuantiles) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quantiles[runID] = append([]model.CycleQuantiles(nil), history...)
	return nil
}

func (s *MemoryStore) GetQuantileHistory(_ context.Context, runID string) ([]model.CycleQuantiles, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.quantiles[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.CycleQuantiles(nil), history...), true, nil
}

func (s *MemoryStore) SaveEnsembleSnapshot(_ context.Context, snapshot model.EnsembleSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensembles[ensembleKey(snapshot.RunID, snapshot.Cycle)] = snapshot
	return nil
}

func (s *MemoryStore) GetEnsembleSnapshot(_ context.Context, runID string, cycle int) (model.EnsembleSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.ensembles[ensembleKey(runID, cycle)]
	return snapshot, ok, nil
}

func ensembleKey(runID string, cycle int) string {
	return fmt.Sprintf("%s:%d", runID, cycle)
}
