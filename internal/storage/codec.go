package storage

import (
	"encoding/json"
	"errors"

	"github.com/arielsaffer/EF-Activities/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeCycleDiagnostics(diagnostics []model.CycleDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeCycleDiagnostics(data []byte) ([]model.CycleDiagnostics, error) {
	var diagnostics []model.CycleDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func EncodeQuantileHistory(history []model.CycleQuantiles) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeQuantileHistory(data []byte) ([]model.CycleQuantiles, error) {
	var history []model.CycleQuantiles
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeEnsembleSnapshot(s model.EnsembleSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeEnsembleSnapshot(data []byte) (model.EnsembleSnapshot, error) {
	var snapshot model.EnsembleSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.EnsembleSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.EnsembleSnapshot{}, err
	}
	return snapshot, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
