package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"evorunner/pkg/evorunner"
)

// loadRunRequestFromConfig reads a JSON run config. Unknown keys are
// ignored; present keys override zero values in the returned request.
func loadRunRequestFromConfig(path string) (evorunner.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return evorunner.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return evorunner.RunRequest{}, err
	}

	var req evorunner.RunRequest
	if v, ok := asString(raw["course"]); ok {
		req.Course = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["elite_count"]); ok {
		req.EliteCount = v
	}
	if v, ok := asFloat64(raw["mutation_rate"]); ok {
		req.MutationRate = v
	}
	if v, ok := asInt(raw["tournament_size"]); ok {
		req.TournamentSize = v
	}
	if v, ok := asFloat64(raw["generation_time_limit"]); ok {
		req.GenerationTimeLimit = v
	}
	if v, ok := asIntSlice(raw["hidden_layers"]); ok {
		req.HiddenLayers = v
	}
	if v, ok := asBoolSlice(raw["gene_locks"]); ok {
		req.GeneLocks = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat64(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asInt64(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func asIntSlice(v any) ([]int, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func asBoolSlice(v any) ([]bool, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]bool, 0, len(list))
	for _, item := range list {
		b, ok := item.(bool)
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}

// mergeRunRequest lays explicit flag values over config file values. Zero
// flag values leave the config value in place.
func mergeRunRequest(base, override evorunner.RunRequest) evorunner.RunRequest {
	merged := base
	if override.Course != "" {
		merged.Course = override.Course
	}
	if override.Population > 0 {
		merged.Population = override.Population
	}
	if override.Generations > 0 {
		merged.Generations = override.Generations
	}
	if override.EliteCount > 0 {
		merged.EliteCount = override.EliteCount
	}
	if override.MutationRate > 0 {
		merged.MutationRate = override.MutationRate
	}
	if override.TournamentSize > 0 {
		merged.TournamentSize = override.TournamentSize
	}
	if override.GenerationTimeLimit > 0 {
		merged.GenerationTimeLimit = override.GenerationTimeLimit
	}
	if len(override.HiddenLayers) > 0 {
		merged.HiddenLayers = override.HiddenLayers
	}
	if len(override.GeneLocks) > 0 {
		merged.GeneLocks = override.GeneLocks
	}
	if override.Seed != 0 {
		merged.Seed = override.Seed
	}
	if override.Workers > 0 {
		merged.Workers = override.Workers
	}
	return merged
}

func usageError(msg string) error {
	return fmt.Errorf("%s\n\nusage: evorunnerctl <init|run|runs|fitness|diagnostics|top|courses|export-genome|import-genome> [flags]", msg)
}
