package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/arielsaffer/EF-Activities/internal/model"
)

func versionedRecord() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := model.RunRecord{
		VersionedRecord: versionedRecord(),
		ID:              "run-a",
		CreatedAtUTC:    "2026-08-26T10:00:00Z",
		Seed:            42,
		Population:      10000,
		EnsembleSize:    500,
		Horizon:         30,
		Detection:       0.5,
		Smoothing:       0.95,
		Cycles:          3,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != run {
		t.Fatalf("got %+v, want %+v", got, run)
	}

	_, ok, err = store.GetRun(ctx, "absent")
	if err != nil {
		t.Fatalf("get absent: %v", err)
	}
	if ok {
		t.Fatal("absent run reported as found")
	}
}

func TestMemoryStoreListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, run := range []model.RunRecord{
		{VersionedRecord: versionedRecord(), ID: "old", CreatedAtUTC: "2026-08-24T10:00:00Z"},
		{VersionedRecord: versionedRecord(), ID: "new", CreatedAtUTC: "2026-08-26T10:00:00Z"},
		{VersionedRecord: versionedRecord(), ID: "mid", CreatedAtUTC: "2026-08-25T10:00:00Z"},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save %s: %v", run.ID, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if runs[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, runs[i].ID, id)
		}
	}
}

func TestMemoryStoreDiagnosticsAndQuantilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	diagnostics := []model.CycleDiagnostics{
		{Cycle: 0, ObservationStep: 5, ObservationCount: 3, EffectiveSize: 40.5},
		{Cycle: 1, ObservationStep: 10, Missing: true, EffectiveSize: 60},
	}
	if err := store.SaveCycleDiagnostics(ctx, "run-a", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiagnostics, ok, err := store.GetCycleDiagnostics(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get diagnostics: ok=%v err=%v", ok, err)
	}
	if len(gotDiagnostics) != 2 || gotDiagnostics[1].Missing != true {
		t.Fatalf("diagnostics round trip mismatch: %+v", gotDiagnostics)
	}
	// The store hands out copies; mutations must not leak back.
	gotDiagnostics[0].Cycle = 99
	again, _, _ := store.GetCycleDiagnostics(ctx, "run-a")
	if again[0].Cycle != 0 {
		t.Fatal("mutating a returned slice changed the stored diagnostics")
	}

	history := []model.CycleQuantiles{{
		Cycle:  0,
		Lower:  [][]float64{{1, 2, 3}},
		Median: [][]float64{{4, 5, 6}},
		Upper:  [][]float64{{7, 8, 9}},
	}}
	if err := store.SaveQuantileHistory(ctx, "run-a", history); err != nil {
		t.Fatalf("save quantiles: %v", err)
	}
	gotHistory, ok, err := store.GetQuantileHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get quantiles: ok=%v err=%v", ok, err)
	}
	if gotHistory[0].Median[0][1] != 5 {
		t.Fatalf("quantile round trip mismatch: %+v", gotHistory)
	}

	if _, ok, _ := store.GetQuantileHistory(ctx, "absent"); ok {
		t.Fatal("absent history reported as found")
	}
}

func TestMemoryStoreEnsembleSnapshotsAreKeyedByCycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for cycle := 0; cycle < 3; cycle++ {
		snapshot := model.EnsembleSnapshot{
			VersionedRecord: versionedRecord(),
			RunID:           "run-a",
			Cycle:           cycle,
			Columns:         []string{"S", "I", "R", "beta", "recovery"},
			Rows:            [][]float64{{float64(cycle), 0, 0, 0, 0}},
		}
		if err := store.SaveEnsembleSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("save cycle %d: %v", cycle, err)
		}
	}

	got, ok, err := store.GetEnsembleSnapshot(ctx, "run-a", 1)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Rows[0][0] != 1 {
		t.Fatalf("got snapshot for cycle %v, want 1", got.Rows[0][0])
	}
	if _, ok, _ := store.GetEnsembleSnapshot(ctx, "run-a", 7); ok {
		t.Fatal("absent snapshot reported as found")
	}
}

func TestMemoryStoreResetDropsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveRun(ctx, model.RunRecord{VersionedRecord: versionedRecord(), ID: "run-a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("store holds %d runs after reset", len(runs))
	}
}

func TestCodecRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: 99, CodecVersion: CurrentCodecVersion},
		ID:              "run-a",
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("got %v, want ErrVersionMismatch", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	snapshot := model.EnsembleSnapshot{
		VersionedRecord: versionedRecord(),
		RunID:           "run-a",
		Cycle:           2,
		Columns:         []string{"S", "I", "R", "beta", "recovery"},
		Rows:            [][]float64{{9990, 8, 2, 1e-3, 0.2}},
	}
	data, err := EncodeEnsembleSnapshot(snapshot)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeEnsembleSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != "run-a" || got.Cycle != 2 || got.Rows[0][3] != 1e-3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestNewStoreFactoryDefaultsToMemory(t *testing.T) {
	store, err := NewStore(DefaultStoreKind(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("default store is %T, want *MemoryStore", store)
	}
	if _, err := NewStore("bogus", ""); err == nil {
		t.Fatal("expected error for unknown store kind")
	}
}
