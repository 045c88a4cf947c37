package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persisted metadata of one assimilation run.
type RunRecord struct {
	VersionedRecord
	ID               string  `json:"id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Seed             uint64  `json:"seed"`
	Population       int     `json:"population"`
	EnsembleSize     int     `json:"ensemble_size"`
	Horizon          int     `json:"horizon"`
	Detection        float64 `json:"detection"`
	Smoothing        float64 `json:"smoothing"`
	MutationSD       float64 `json:"mutation_sd"`
	Cycles           int     `json:"cycles"`
	DegenerateCycles int     `json:"degenerate_cycles"`
}

// CycleDiagnostics records the analysis outcome of one forecast-analysis
// cycle. MaxLogLikelihood is 0 when the cycle had no finite likelihood
// (missing observation or degenerate weights; check the flags).
type CycleDiagnostics struct {
	Cycle            int     `json:"cycle"`
	ObservationStep  int     `json:"observation_step"`
	ObservationCount int     `json:"observation_count"`
	Missing          bool    `json:"missing"`
	Degenerate       bool    `json:"degenerate"`
	EffectiveSize    float64 `json:"effective_sample_size"`
	MaxLogLikelihood float64 `json:"max_log_likelihood"`
	MeanSusceptible  float64 `json:"mean_susceptible"`
	MeanInfected     float64 `json:"mean_infected"`
	MeanRecovered    float64 `json:"mean_recovered"`
	MeanBeta         float64 `json:"mean_beta"`
	MeanRecovery     float64 `json:"mean_recovery"`
}

// CycleQuantiles is one cycle's forecast summary: each band is
// horizon x 3 (S, I, R) at the 2.5/50/97.5 percentiles.
type CycleQuantiles struct {
	Cycle  int         `json:"cycle"`
	Lower  [][]float64 `json:"lower"`
	Median [][]float64 `json:"median"`
	Upper  [][]float64 `json:"upper"`
}

// EnsembleSnapshot is the post-analysis joint state+parameter matrix of one
// cycle, rows = particles.
type EnsembleSnapshot struct {
	VersionedRecord
	RunID   string      `json:"run_id"`
	Cycle   int         `json:"cycle"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}
