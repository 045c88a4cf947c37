// Package epifilter is the public client API over the assimilation engine:
// it runs forecast-analysis cycles, persists the per-cycle artifacts through
// a storage backend and serves them back for reporting.
package epifilter

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arielsaffer/EF-Activities/internal/assim"
	"github.com/arielsaffer/EF-Activities/internal/filter"
	"github.com/arielsaffer/EF-Activities/internal/model"
	"github.com/arielsaffer/EF-Activities/internal/randvar"
	"github.com/arielsaffer/EF-Activities/internal/sir"
	"github.com/arielsaffer/EF-Activities/internal/stats"
	"github.com/arielsaffer/EF-Activities/internal/storage"
)

const (
	defaultDBPath     = "epifilter.db"
	defaultExportsDir = "exports"

	defaultEnsembleSize = 500
	defaultHorizon      = 30
	defaultDetection    = 0.5
	defaultSmoothing    = 0.95
	defaultWorkers      = 4
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
}

type Client struct {
	store      storage.Store
	exportsDir string

	mu          sync.Mutex
	initialized bool
}

// Prior mirrors randvar.Spec with exported, decodable fields.
type Prior struct {
	Family string    `json:"family"`
	Params []float64 `json:"params"`
}

func (p Prior) spec() randvar.Spec {
	return randvar.Spec{Family: randvar.Family(p.Family), Params: p.Params}
}

// ObservationInput is one entry of the observation stream; a nil Count
// marks a step with no data.
type ObservationInput struct {
	Step  int  `json:"step"`
	Count *int `json:"count"`
}

type RunRequest struct {
	RunID                string
	Population           int
	EnsembleSize         int
	Horizon              int
	Detection            float64
	Smoothing            float64
	MutationSD           float64
	Seed                 uint64
	Workers              int
	MaxCycles            int
	InitialInfectedPrior Prior
	BetaPrior            Prior
	RecoveryPrior        Prior
	Observations         []ObservationInput
}

type RunSummary struct {
	RunID            string
	Cycles           int
	DegenerateCycles int
	FinalMeanBeta    float64
	FinalMeanRecov   float64
	FinalMeanInfect  float64
}

type ForecastRequest struct {
	Population      int
	InitialInfected int
	Beta            float64
	Recovery        float64
	Horizon         int
	EnsembleSize    int
	Seed            uint64
	Workers         int
}

type ForecastSummary struct {
	Quantiles stats.Summary
	Final     []sir.State
}

type RunsRequest struct {
	Limit int
}

type QuantilesRequest struct {
	RunID  string
	Latest bool
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
}

type EnsembleRequest struct {
	RunID  string
	Latest bool
	Cycle  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
	Files     int
	Bytes     int64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store, exportsDir: exportsDir}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Run executes a full assimilation run and persists every per-cycle
// artifact: diagnostics, quantile history and ensemble snapshots.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.EnsembleSize <= 0 {
		req.EnsembleSize = defaultEnsembleSize
	}
	if req.Horizon <= 0 {
		req.Horizon = defaultHorizon
	}
	if req.Detection == 0 {
		req.Detection = defaultDetection
	}
	if req.Smoothing == 0 {
		req.Smoothing = defaultSmoothing
	}
	if req.Workers <= 0 {
		req.Workers = defaultWorkers
	}

	series := make(filter.Series, 0, len(req.Observations))
	for _, obs := range req.Observations {
		entry := filter.Observation{Step: obs.Step, Missing: obs.Count == nil}
		if obs.Count != nil {
			entry.Count = *obs.Count
		}
		series = append(series, entry)
	}

	controller, err := assim.NewController(assim.Config{
		Population:   req.Population,
		EnsembleSize: req.EnsembleSize,
		Horizon:      req.Horizon,
		Detection:    req.Detection,
		Smoothing:    req.Smoothing,
		MutationSD:   req.MutationSD,
		Priors: assim.Priors{
			InitialInfected: req.InitialInfectedPrior.spec(),
			Beta:            req.BetaPrior.spec(),
			Recovery:        req.RecoveryPrior.spec(),
		},
		Observations: series,
		MaxCycles:    req.MaxCycles,
		Workers:      req.Workers,
		Seed:         req.Seed,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, err := controller.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	diagnostics := make([]model.CycleDiagnostics, 0, len(result.Cycles))
	quantiles := make([]model.CycleQuantiles, 0, len(result.Cycles))
	degenerate := 0
	for _, cycle := range result.Cycles {
		diagnostics = append(diagnostics, toDiagnostics(cycle))
		quantiles = append(quantiles, model.CycleQuantiles{
			Cycle:  cycle.Index,
			Lower:  cycle.Quantiles.Lower,
			Median: cycle.Quantiles.Median,
			Upper:  cycle.Quantiles.Upper,
		})
		if cycle.Degenerate {
			degenerate++
		}
		if err := c.store.SaveEnsembleSnapshot(ctx, toSnapshot(req.RunID, cycle)); err != nil {
			return RunSummary{}, err
		}
	}

	run := model.RunRecord{
		VersionedRecord:  versioned(),
		ID:               req.RunID,
		CreatedAtUTC:     time.Now().UTC().Format(time.RFC3339),
		Seed:             req.Seed,
		Population:       req.Population,
		EnsembleSize:     req.EnsembleSize,
		Horizon:          req.Horizon,
		Detection:        req.Detection,
		Smoothing:        req.Smoothing,
		MutationSD:       req.MutationSD,
		Cycles:           len(result.Cycles),
		DegenerateCycles: degenerate,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveCycleDiagnostics(ctx, req.RunID, diagnostics); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveQuantileHistory(ctx, req.RunID, quantiles); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            req.RunID,
		Cycles:           len(result.Cycles),
		DegenerateCycles: degenerate,
		FinalMeanBeta:    meanFloat(result.FinalBetas),
		FinalMeanRecov:   meanFloat(result.FinalRecoveries),
		FinalMeanInfect:  meanInfected(result.FinalStates),
	}, nil
}

// Forecast runs a pure ensemble forecast with fixed parameters and no
// assimilation. EnsembleSize 1 gives the deterministic-prior point
// forecast; larger ensembles quantify process error.
func (c *Client) Forecast(ctx context.Context, req ForecastRequest) (ForecastSummary, error) {
	if req.Horizon <= 0 {
		req.Horizon = defaultHorizon
	}
	if req.EnsembleSize <= 0 {
		req.EnsembleSize = 1
	}
	if req.Workers <= 0 {
		req.Workers = defaultWorkers
	}
	if req.InitialInfected < 0 || req.InitialInfected > req.Population {
		return ForecastSummary{}, fmt.Errorf("initial infected %d outside [0,%d]", req.InitialInfected, req.Population)
	}

	particles := make([]sir.Particle, req.EnsembleSize)
	for i := range particles {
		particles[i] = sir.Particle{
			State: sir.State{
				S: req.Population - req.InitialInfected,
				I: req.InitialInfected,
			},
			Beta:     sir.Constant(req.Beta),
			Recovery: sir.Constant(req.Recovery),
		}
	}

	forecaster, err := sir.NewForecaster(sir.ForecastConfig{
		Horizon: req.Horizon,
		Workers: req.Workers,
		Seed:    req.Seed,
	})
	if err != nil {
		return ForecastSummary{}, err
	}
	tensor, err := forecaster.Forecast(ctx, particles)
	if err != nil {
		return ForecastSummary{}, err
	}
	summary, err := stats.TrajectoryQuantiles(tensor)
	if err != nil {
		return ForecastSummary{}, err
	}

	final := make([]sir.State, tensor.Particles())
	for i := range final {
		final[i] = tensor.At(i, tensor.Steps()-1)
	}
	return ForecastSummary{Quantiles: summary, Final: final}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.CycleDiagnostics, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetCycleDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no diagnostics for run %s", runID)
	}
	return diagnostics, nil
}

func (c *Client) Quantiles(ctx context.Context, req QuantilesRequest) ([]model.CycleQuantiles, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetQuantileHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no quantile history for run %s", runID)
	}
	return history, nil
}

func (c *Client) Ensemble(ctx context.Context, req EnsembleRequest) (model.EnsembleSnapshot, error) {
	if err := c.ensureStore(ctx); err != nil {
		return model.EnsembleSnapshot{}, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return model.EnsembleSnapshot{}, err
	}
	snapshot, ok, err := c.store.GetEnsembleSnapshot(ctx, runID, req.Cycle)
	if err != nil {
		return model.EnsembleSnapshot{}, err
	}
	if !ok {
		return model.EnsembleSnapshot{}, fmt.Errorf("no ensemble snapshot for run %s cycle %d", runID, req.Cycle)
	}
	return snapshot, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", fmt.Errorf("run id is required (or use latest)")
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs recorded")
	}
	return runs[0].ID, nil
}

func toDiagnostics(cycle assim.Cycle) model.CycleDiagnostics {
	d := model.CycleDiagnostics{
		Cycle:            cycle.Index,
		ObservationStep:  cycle.ObservationStep,
		ObservationCount: cycle.ObservationCount,
		Missing:          cycle.Missing,
		Degenerate:       cycle.Degenerate,
		EffectiveSize:    cycle.EffectiveSize,
	}
	// -Inf is not representable in JSON; the Missing/Degenerate flags carry
	// the information instead.
	if !math.IsInf(cycle.MaxLogLikelihood, 0) && !math.IsNaN(cycle.MaxLogLikelihood) {
		d.MaxLogLikelihood = cycle.MaxLogLikelihood
	}
	if cycle.Ensemble != nil {
		rows, _ := cycle.Ensemble.Dims()
		sums := make([]float64, filter.NumColumns)
		for i := 0; i < rows; i++ {
			for j := 0; j < filter.NumColumns; j++ {
				sums[j] += cycle.Ensemble.At(i, j)
			}
		}
		n := float64(rows)
		d.MeanSusceptible = sums[filter.ColS] / n
		d.MeanInfected = sums[filter.ColI] / n
		d.MeanRecovered = sums[filter.ColR] / n
		d.MeanBeta = sums[filter.ColBeta] / n
		d.MeanRecovery = sums[filter.ColRecovery] / n
	}
	return d
}

func toSnapshot(runID string, cycle assim.Cycle) model.EnsembleSnapshot {
	rows, cols := cycle.Ensemble.Dims()
	data := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = cycle.Ensemble.At(i, j)
		}
		data[i] = row
	}
	return model.EnsembleSnapshot{
		VersionedRecord: versioned(),
		RunID:           runID,
		Cycle:           cycle.Index,
		Columns:         append([]string(nil), filter.ColumnNames...),
		Rows:            data,
	}
}

func versioned() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}

func meanFloat(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func meanInfected(states []sir.State) float64 {
	if len(states) == 0 {
		return 0
	}
	sum := 0
	for _, s := range states {
		sum += s.I
	}
	return float64(sum) / float64(len(states))
}
