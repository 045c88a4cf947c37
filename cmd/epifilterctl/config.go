package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arielsaffer/EF-Activities/pkg/epifilter"
)

func loadRunRequestFromConfig(path string) (epifilter.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return epifilter.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return epifilter.RunRequest{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	var req epifilter.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["ensemble_size"]); ok {
		req.EnsembleSize = v
	}
	if v, ok := asInt(raw["horizon"]); ok {
		req.Horizon = v
	}
	if v, ok := asFloat64(raw["detection"]); ok {
		req.Detection = v
	}
	if v, ok := asFloat64(raw["smoothing"]); ok {
		req.Smoothing = v
	}
	if v, ok := asFloat64(raw["mutation_sd"]); ok {
		req.MutationSD = v
	}
	if v, ok := asUint64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt(raw["max_cycles"]); ok {
		req.MaxCycles = v
	}

	priors, ok := raw["priors"].(map[string]any)
	if !ok {
		return epifilter.RunRequest{}, fmt.Errorf("config %s: missing priors object", path)
	}
	req.InitialInfectedPrior, err = parsePrior(priors, "initial_infected")
	if err != nil {
		return epifilter.RunRequest{}, err
	}
	req.BetaPrior, err = parsePrior(priors, "beta")
	if err != nil {
		return epifilter.RunRequest{}, err
	}
	req.RecoveryPrior, err = parsePrior(priors, "recovery")
	if err != nil {
		return epifilter.RunRequest{}, err
	}

	observations, ok := raw["observations"].([]any)
	if !ok {
		return epifilter.RunRequest{}, fmt.Errorf("config %s: missing observations array", path)
	}
	req.Observations = make([]epifilter.ObservationInput, 0, len(observations))
	for i, entry := range observations {
		obsMap, ok := entry.(map[string]any)
		if !ok {
			return epifilter.RunRequest{}, fmt.Errorf("observation %d is not an object", i)
		}
		var obs epifilter.ObservationInput
		step, ok := asInt(obsMap["step"])
		if !ok {
			return epifilter.RunRequest{}, fmt.Errorf("observation %d has no step", i)
		}
		obs.Step = step
		// A null or absent count marks the step as observed-but-missing.
		if count, ok := asInt(obsMap["count"]); ok {
			obs.Count = &count
		}
		req.Observations = append(req.Observations, obs)
	}

	return req, nil
}

func parsePrior(priors map[string]any, name string) (epifilter.Prior, error) {
	entry, ok := priors[name].(map[string]any)
	if !ok {
		return epifilter.Prior{}, fmt.Errorf("prior %s is missing or not an object", name)
	}
	family, ok := asString(entry["family"])
	if !ok {
		return epifilter.Prior{}, fmt.Errorf("prior %s has no family", name)
	}
	rawParams, ok := entry["params"].([]any)
	if !ok {
		return epifilter.Prior{}, fmt.Errorf("prior %s has no params array", name)
	}
	params := make([]float64, 0, len(rawParams))
	for i, p := range rawParams {
		v, ok := asFloat64(p)
		if !ok {
			return epifilter.Prior{}, fmt.Errorf("prior %s param %d is not numeric", name, i)
		}
		params = append(params, v)
	}
	return epifilter.Prior{Family: family, Params: params}, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case float64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
