package evorunner

import (
	"context"
	"path/filepath"
	"testing"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: t.TempDir(),
		ExportsDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return client
}

func smallRun(seed int64) RunRequest {
	return RunRequest{
		Population:          5,
		Generations:         2,
		GenerationTimeLimit: 5,
		Workers:             2,
		Seed:                seed,
	}
}

func TestRunProducesArtifactsAndHistory(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, smallRun(1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.ArtifactsDir == "" {
		t.Fatalf("incomplete summary: %+v", summary)
	}
	if len(summary.BestByGeneration) != 2 {
		t.Fatalf("history length: %d", len(summary.BestByGeneration))
	}

	history, err := client.FitnessHistory(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("persisted history length: %d", len(history))
	}

	diagnostics, err := client.Diagnostics(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 2 || diagnostics[1].Generation != 1 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}

	top, err := client.TopGenomes(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("top genomes: %v", err)
	}
	if len(top) == 0 || top[0].Rank != 1 {
		t.Fatalf("unexpected top genomes: %+v", top)
	}
	if top[0].Fitness != summary.FinalBestFitness {
		t.Fatalf("best fitness mismatch: top=%f summary=%f", top[0].Fitness, summary.FinalBestFitness)
	}
}

func TestRunsListsNewestFirst(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	first, err := client.Run(ctx, smallRun(1))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(ctx, smallRun(2))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	runs, err := client.Runs(RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("run count: %d", len(runs))
	}
	got := map[string]bool{runs[0].RunID: true, runs[1].RunID: true}
	if !got[first.RunID] || !got[second.RunID] {
		t.Fatalf("runs missing entries: %+v", runs)
	}

	limited, err := client.Runs(RunsRequest{Limit: 1})
	if err != nil {
		t.Fatalf("limited runs: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %+v", limited)
	}
}

func TestExportImportGenomeRoundTrip(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	if _, err := client.Run(ctx, smallRun(1)); err != nil {
		t.Fatalf("run: %v", err)
	}

	exported, err := client.ExportGenome(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Ext(exported.Path) != ".json" {
		t.Fatalf("unexpected export path: %s", exported.Path)
	}

	genome, err := client.ImportGenome(ctx, exported.Path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if genome.ID == "" || len(genome.LayerSizes) != 3 {
		t.Fatalf("unexpected genome: %+v", genome)
	}

	stored, ok, err := client.store.GetGenome(ctx, genome.ID)
	if err != nil || !ok {
		t.Fatalf("stored genome: ok=%v err=%v", ok, err)
	}
	if stored.ID != genome.ID {
		t.Fatalf("stored genome id mismatch: %s vs %s", stored.ID, genome.ID)
	}
}

func TestExportGenomeRequiresRuns(t *testing.T) {
	client := testClient(t)
	if _, err := client.ExportGenome(context.Background(), ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected no-runs error")
	}
}

func TestCoursesListing(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	courses, err := client.Courses(ctx)
	if err != nil {
		t.Fatalf("courses: %v", err)
	}
	if len(courses) != 1 || courses[0].Name != DefaultCourseName {
		t.Fatalf("unexpected courses: %+v", courses)
	}

	summary, err := client.Run(ctx, smallRun(1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	courses, err = client.Courses(ctx)
	if err != nil {
		t.Fatalf("courses after run: %v", err)
	}
	if courses[0].BestFitness != summary.FinalBestFitness {
		t.Fatalf("course best fitness: got=%f want=%f", courses[0].BestFitness, summary.FinalBestFitness)
	}
}

func TestLookupsRejectUnknownRun(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	if _, err := client.FitnessHistory(ctx, "nope"); err == nil {
		t.Fatal("expected unknown run error from FitnessHistory")
	}
	if _, err := client.Diagnostics(ctx, "nope"); err == nil {
		t.Fatal("expected unknown run error from Diagnostics")
	}
	if _, err := client.TopGenomes(ctx, "nope"); err == nil {
		t.Fatal("expected unknown run error from TopGenomes")
	}
}

func TestRunControlRequiresStartedArena(t *testing.T) {
	client := testClient(t)
	if err := client.PauseRun("run-1"); err == nil {
		t.Fatal("expected arena-not-started error")
	}
}
