// Package evorunner is the embedding surface for the evolution arena: it
// owns a store, a default course catalog, and run artifact management.
package evorunner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"evorunner/internal/model"
	"evorunner/internal/nn"
	"evorunner/internal/platform"
	"evorunner/internal/scape"
	"evorunner/internal/stats"
	"evorunner/internal/storage"
	"evorunner/internal/telemetry"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "evorunner.db"

	// DefaultCourseName is registered on every client start.
	DefaultCourseName = "corridor"
)

type Options struct {
	StoreKind     string
	DBPath        string
	ArtifactsDir  string
	ExportsDir    string
	TelemetryAddr string
	Logger        *slog.Logger
}

type Client struct {
	store  storage.Store
	arena  *platform.Arena
	logger *slog.Logger

	artifactsDir  string
	exportsDir    string
	telemetryAddr string
}

type RunRequest struct {
	Course              string
	Population          int
	Generations         int
	EliteCount          int
	MutationRate        float64
	TournamentSize      int
	GenerationTimeLimit float64
	HiddenLayers        []int
	GeneLocks           []bool
	Seed                int64
	Workers             int
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	FinalBestFitness float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Course           string
	Seed             int64
	Population       int
	Generations      int
	FinalBestFitness float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID string
	Path  string
}

type CourseItem struct {
	Name        string
	Description string
	BestFitness float64
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
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		artifactsDir:  artifactsDir,
		exportsDir:    exportsDir,
		telemetryAddr: opts.TelemetryAddr,
	}, nil
}

func (c *Client) Close() error {
	if c.arena != nil {
		c.arena.Shutdown()
		c.arena = nil
	}
	return storage.CloseIfSupported(c.store)
}

// Start initializes the arena with the default course catalog and, when
// configured, the telemetry hub.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.ensureArena(ctx)
	return err
}

func (c *Client) ensureArena(ctx context.Context) (*platform.Arena, error) {
	if c.arena != nil && c.arena.Started() {
		return c.arena, nil
	}

	var modules []platform.SupportModule
	if c.telemetryAddr != "" {
		modules = append(modules, telemetry.NewHub(c.telemetryAddr, c.logger))
	}

	arena := platform.NewArena(platform.Config{
		Store:          c.store,
		SupportModules: modules,
		Courses: []platform.CourseSpec{{
			Name:        DefaultCourseName,
			Description: "obstacle corridor with ordered checkpoints",
			Corridor:    scape.DefaultCorridor(),
		}},
		Logger: c.logger,
	})
	if err := arena.Init(ctx); err != nil {
		return nil, err
	}
	c.arena = arena
	return arena, nil
}

// Run executes one evolution run and writes its artifacts under the
// artifacts directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Course == "" {
		req.Course = DefaultCourseName
	}
	if req.Population <= 0 {
		req.Population = 20
	}
	if req.Generations <= 0 {
		req.Generations = 50
	}
	if req.EliteCount <= 0 {
		req.EliteCount = 2
	}
	if req.MutationRate <= 0 {
		req.MutationRate = 0.05
	}
	if req.GenerationTimeLimit <= 0 {
		req.GenerationTimeLimit = 30
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if len(req.HiddenLayers) == 0 {
		req.HiddenLayers = []int{10}
	}

	layerSizes := make([]int, 0, len(req.HiddenLayers)+2)
	layerSizes = append(layerSizes, scape.SensorCount)
	layerSizes = append(layerSizes, req.HiddenLayers...)
	layerSizes = append(layerSizes, scape.ActionCount)

	arena, err := c.ensureArena(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%d-%d", req.Course, req.Seed, now.Unix())

	result, err := arena.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:               runID,
		CourseName:          req.Course,
		PopulationSize:      req.Population,
		EliteCount:          req.EliteCount,
		MutationRate:        req.MutationRate,
		TournamentSize:      req.TournamentSize,
		GenerationTimeLimit: req.GenerationTimeLimit,
		Generations:         req.Generations,
		Workers:             req.Workers,
		Seed:                req.Seed,
		LayerSizes:          layerSizes,
		GeneLocks:           req.GeneLocks,
	})
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:               runID,
			Course:              req.Course,
			PopulationSize:      req.Population,
			Generations:         req.Generations,
			EliteCount:          req.EliteCount,
			MutationRate:        req.MutationRate,
			TournamentSize:      req.TournamentSize,
			GenerationTimeLimit: req.GenerationTimeLimit,
			GeneLocks:           req.GeneLocks,
			Seed:                req.Seed,
			Workers:             req.Workers,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.Diagnostics,
		FinalBestFitness:      result.BestFinalFitness,
		TopGenomes:            result.TopFinal,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		CreatedAtUTC:     now.Format(time.RFC3339),
		Course:           req.Course,
		Seed:             req.Seed,
		Population:       req.Population,
		Generations:      req.Generations,
		FinalBestFitness: result.BestFinalFitness,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     runDir,
		BestByGeneration: result.BestByGeneration,
		FinalBestFitness: result.BestFinalFitness,
	}, nil
}

// Runs lists recorded runs, newest first.
func (c *Client) Runs(req RunsRequest) ([]RunItem, error) {
	index, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(index) > req.Limit {
		index = index[:req.Limit]
	}

	items := make([]RunItem, 0, len(index))
	for _, entry := range index {
		items = append(items, RunItem{
			RunID:            entry.RunID,
			CreatedAtUTC:     entry.CreatedAtUTC,
			Course:           entry.Course,
			Seed:             entry.Seed,
			Population:       entry.Population,
			Generations:      entry.Generations,
			FinalBestFitness: entry.FinalBestFitness,
		})
	}
	return items, nil
}

// FitnessHistory returns the per-generation best fitness curve of a run.
func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]float64, error) {
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return history, nil
}

func (c *Client) Diagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, error) {
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return diagnostics, nil
}

func (c *Client) TopGenomes(ctx context.Context, runID string) ([]model.TopGenomeRecord, error) {
	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return top, nil
}

// Courses lists registered courses with their best fitness so far.
func (c *Client) Courses(ctx context.Context) ([]CourseItem, error) {
	arena, err := c.ensureArena(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]CourseItem, 0)
	for _, name := range arena.CourseNames() {
		spec, _ := arena.GetCourse(name)
		item := CourseItem{Name: name, Description: spec.Description}
		if summary, ok, err := c.store.GetCourseSummary(ctx, name); err != nil {
			return nil, err
		} else if ok {
			item.BestFitness = summary.BestFitness
			if item.Description == "" {
				item.Description = summary.Description
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// ExportGenome writes a run's best genome to a standalone JSON file.
func (c *Client) ExportGenome(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID := req.RunID
	if req.Latest {
		index, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(index) == 0 {
			return ExportSummary{}, fmt.Errorf("no runs recorded")
		}
		runID = index[0].RunID
	}
	if runID == "" {
		return ExportSummary{}, fmt.Errorf("run id is required")
	}

	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok || len(top) == 0 {
		return ExportSummary{}, fmt.Errorf("no genomes recorded for run %s", runID)
	}

	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return ExportSummary{}, err
	}

	data, err := storage.EncodeGenome(top[0].Genome)
	if err != nil {
		return ExportSummary{}, err
	}
	path := filepath.Join(outDir, fmt.Sprintf("genome-%s.json", runID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Path: path}, nil
}

// ImportGenome loads a genome JSON file, validates its topology, and saves
// it to the store.
func (c *Client) ImportGenome(ctx context.Context, path string) (model.Genome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Genome{}, err
	}

	genome, err := storage.DecodeGenome(data)
	if err != nil {
		return model.Genome{}, fmt.Errorf("decode genome %s: %w", path, err)
	}
	if _, err := nn.FromRecord(genome.LayerSizes, genome.Weights); err != nil {
		return model.Genome{}, fmt.Errorf("invalid genome %s: %w", path, err)
	}
	if err := c.store.SaveGenome(ctx, genome); err != nil {
		return model.Genome{}, err
	}
	return genome, nil
}

// PauseRun, ContinueRun, StopRun, and AdvanceRun forward control commands to
// an active run.
func (c *Client) PauseRun(runID string) error {
	if c.arena == nil {
		return fmt.Errorf("arena is not started")
	}
	return c.arena.PauseRun(runID)
}

func (c *Client) ContinueRun(runID string) error {
	if c.arena == nil {
		return fmt.Errorf("arena is not started")
	}
	return c.arena.ContinueRun(runID)
}

func (c *Client) StopRun(runID string) error {
	if c.arena == nil {
		return fmt.Errorf("arena is not started")
	}
	return c.arena.StopRun(runID)
}

func (c *Client) AdvanceRun(runID string) error {
	if c.arena == nil {
		return fmt.Errorf("arena is not started")
	}
	return c.arena.AdvanceRun(runID)
}
