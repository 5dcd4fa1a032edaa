package storage

import (
	"context"
	"testing"

	"evorunner/internal/model"
)

func TestMemoryStoreGenomeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.Genome{
		VersionedRecord: Stamp(),
		ID:              "g1",
		LayerSizes:      []int{2, 3, 1},
		Weights: [][][]float64{
			{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}},
			{{0.7}, {0.8}, {0.9}},
		},
	}
	if err := store.SaveGenome(ctx, input); err != nil {
		t.Fatalf("save genome: %v", err)
	}

	output, ok, err := store.GetGenome(ctx, "g1")
	if err != nil {
		t.Fatalf("get genome: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted genome")
	}
	if output.ID != input.ID || len(output.Weights) != 2 {
		t.Fatalf("unexpected genome: %+v", output)
	}

	if _, ok, err := store.GetGenome(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing genome lookup: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStorePopulationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.Population{
		VersionedRecord: Stamp(),
		ID:              "pop-1",
		GenomeIDs:       []string{"g1", "g2"},
		Generation:      4,
	}
	if err := store.SavePopulation(ctx, input); err != nil {
		t.Fatalf("save population: %v", err)
	}
	output, ok, err := store.GetPopulation(ctx, "pop-1")
	if err != nil {
		t.Fatalf("get population: %v", err)
	}
	if !ok || output.Generation != 4 || len(output.GenomeIDs) != 2 {
		t.Fatalf("unexpected population: ok=%v %+v", ok, output)
	}
}

func TestMemoryStoreCourseSummaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.CourseSummary{
		VersionedRecord: Stamp(),
		Name:            "corridor",
		Description:     "obstacle corridor with ordered checkpoints",
		BestFitness:     412.5,
	}
	if err := store.SaveCourseSummary(ctx, input); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	output, ok, err := store.GetCourseSummary(ctx, "corridor")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !ok || output.BestFitness != 412.5 {
		t.Fatalf("unexpected summary: ok=%v %+v", ok, output)
	}
}

func TestMemoryStoreFitnessHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []float64{10, 25.5, 42}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted fitness history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}

	// The store hands back a copy, not its internal slice.
	output[0] = -1
	again, _, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history again: %v", err)
	}
	if again[0] != 10 {
		t.Fatalf("store slice aliased by caller: %+v", again)
	}
}

func TestMemoryStoreGenerationDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.GenerationDiagnostics{
		{Generation: 0, BestFitness: 52, MeanFitness: 20, MinFitness: 0, AliveCount: 8},
		{Generation: 1, BestFitness: 97, MeanFitness: 44, MinFitness: 5, AliveCount: 10, TimedOut: true},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", input); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	output, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted diagnostics")
	}
	if len(output) != len(input) || output[1].BestFitness != 97 || !output[1].TimedOut {
		t.Fatalf("unexpected diagnostics: %+v", output)
	}
}

func TestMemoryStoreTopGenomesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.TopGenomeRecord{{
		Rank:    1,
		Fitness: 131,
		Genome: model.Genome{
			VersionedRecord: Stamp(),
			ID:              "g-best",
			LayerSizes:      []int{1, 1},
			Weights:         [][][]float64{{{0.5}}},
		},
	}}
	if err := store.SaveTopGenomes(ctx, "run-1", input); err != nil {
		t.Fatalf("save top genomes: %v", err)
	}
	output, ok, err := store.GetTopGenomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("get top genomes: %v", err)
	}
	if !ok || len(output) != 1 || output[0].Genome.ID != "g-best" {
		t.Fatalf("unexpected top genomes: ok=%v %+v", ok, output)
	}
}
