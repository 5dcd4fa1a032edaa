package stats

import (
	"os"
	"path/filepath"
	"testing"

	"evorunner/internal/model"
)

func TestWriteAndReadRunArtifacts(t *testing.T) {
	base := t.TempDir()

	runDir, err := WriteRunArtifacts(base, RunArtifacts{
		Config: RunConfig{
			RunID:          "run-1",
			Course:         "corridor",
			PopulationSize: 10,
			Generations:    5,
			Seed:           7,
		},
		BestByGeneration: []float64{10, 20, 35, 35, 52},
		FinalBestFitness: 52,
		TopGenomes: []model.TopGenomeRecord{{
			Rank:    1,
			Fitness: 52,
			Genome:  model.Genome{ID: "g1", LayerSizes: []int{2, 1}},
		}},
	})
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if filepath.Base(runDir) != "run-1" {
		t.Fatalf("unexpected run dir: %s", runDir)
	}

	cfg, ok, err := ReadRunConfig(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%v err=%v", ok, err)
	}
	if cfg.Course != "corridor" || cfg.PopulationSize != 10 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	top, ok, err := ReadTopGenomes(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read top genomes: ok=%v err=%v", ok, err)
	}
	if len(top) != 1 || top[0].Genome.ID != "g1" {
		t.Fatalf("unexpected top genomes: %+v", top)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestRunIndexOrderingAndUpsert(t *testing.T) {
	base := t.TempDir()

	entries := []RunIndexEntry{
		{RunID: "run-a", CreatedAtUTC: "2026-08-01T10:00:00Z", Course: "corridor", FinalBestFitness: 10},
		{RunID: "run-b", CreatedAtUTC: "2026-08-02T10:00:00Z", Course: "corridor", FinalBestFitness: 20},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(base, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	index, err := ListRunIndex(base)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 2 || index[0].RunID != "run-b" {
		t.Fatalf("index not newest first: %+v", index)
	}

	// Re-appending an existing run replaces its entry in place.
	if err := AppendRunIndex(base, RunIndexEntry{
		RunID: "run-a", CreatedAtUTC: "2026-08-01T10:00:00Z", FinalBestFitness: 99,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	index, err = ListRunIndex(base)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(index) != 2 || index[1].FinalBestFitness != 99 {
		t.Fatalf("upsert failed: %+v", index)
	}
}

func TestListRunIndexMissingDir(t *testing.T) {
	index, err := ListRunIndex(filepath.Join(t.TempDir(), "never-written"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected empty index, got %+v", index)
	}
}

func TestExportRunArtifacts(t *testing.T) {
	base := t.TempDir()
	out := t.TempDir()

	if _, err := WriteRunArtifacts(base, RunArtifacts{
		Config:           RunConfig{RunID: "run-1", Course: "corridor"},
		BestByGeneration: []float64{1},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	dst, err := ExportRunArtifacts(base, "run-1", out)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, file := range []string{"config.json", "fitness_history.json", "generation_diagnostics.json", "top_genomes.json"} {
		if _, err := os.Stat(filepath.Join(dst, file)); err != nil {
			t.Fatalf("exported file %s: %v", file, err)
		}
	}

	if _, err := ExportRunArtifacts(base, "missing", out); err == nil {
		t.Fatal("expected error for unknown run")
	}
}
