package main

import (
	"fmt"

	"gopkg.in/ini.v1"

	"evorunner/pkg/evorunner"
)

// runProfile is one named preset in an INI profiles file. Sections map to
// profile names; keys mirror the run config.
type runProfile struct {
	Course              string  `ini:"course"`
	Population          int     `ini:"population"`
	Generations         int     `ini:"generations"`
	EliteCount          int     `ini:"elite_count"`
	MutationRate        float64 `ini:"mutation_rate"`
	TournamentSize      int     `ini:"tournament_size"`
	GenerationTimeLimit float64 `ini:"generation_time_limit"`
	HiddenLayers        []int   `ini:"hidden_layers" delim:","`
	GeneLocks           []bool  `ini:"gene_locks" delim:","`
	Seed                int64   `ini:"seed"`
	Workers             int     `ini:"workers"`
}

// loadRunRequestFromProfile reads the named section of an INI profiles file
// into a run request.
func loadRunRequestFromProfile(path, name string) (evorunner.RunRequest, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return evorunner.RunRequest{}, fmt.Errorf("load profiles file %s: %w", path, err)
	}

	if !cfg.HasSection(name) {
		return evorunner.RunRequest{}, fmt.Errorf("profile not found in %s: %s", path, name)
	}

	var profile runProfile
	if err := cfg.Section(name).MapTo(&profile); err != nil {
		return evorunner.RunRequest{}, fmt.Errorf("map profile %s: %w", name, err)
	}

	return evorunner.RunRequest{
		Course:              profile.Course,
		Population:          profile.Population,
		Generations:         profile.Generations,
		EliteCount:          profile.EliteCount,
		MutationRate:        profile.MutationRate,
		TournamentSize:      profile.TournamentSize,
		GenerationTimeLimit: profile.GenerationTimeLimit,
		HiddenLayers:        profile.HiddenLayers,
		GeneLocks:           profile.GeneLocks,
		Seed:                profile.Seed,
		Workers:             profile.Workers,
	}, nil
}

// listProfiles returns the profile names defined in an INI profiles file.
func listProfiles(path string) ([]string, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("load profiles file %s: %w", path, err)
	}

	names := make([]string, 0)
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		names = append(names, section.Name())
	}
	return names, nil
}
