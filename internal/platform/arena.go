// Package platform hosts the arena runtime: the persistent store, the course
// registry, support modules, and the run lifecycle around the evolution loop.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"evorunner/internal/course"
	"evorunner/internal/evo"
	"evorunner/internal/model"
	"evorunner/internal/reward"
	"evorunner/internal/scape"
	"evorunner/internal/storage"
)

// checkpointSpacing is the centerline gap between ordered checkpoints laid
// down a registered corridor.
const checkpointSpacing = 20.0

type Config struct {
	Store          storage.Store
	SupportModules []SupportModule
	Courses        []CourseSpec
	Logger         *slog.Logger
}

type SupportModule interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Broadcaster is implemented by support modules that can push live
// diagnostics to subscribers.
type Broadcaster interface {
	Broadcast(v any)
}

type CourseSpec struct {
	Name        string
	Description string
	Corridor    scape.CorridorConfig
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

type EvolutionConfig struct {
	RunID               string
	CourseName          string
	PopulationSize      int
	EliteCount          int
	MutationRate        float64
	TournamentSize      int
	GenerationTimeLimit float64
	Generations         int
	Workers             int
	Seed                int64
	LayerSizes          []int
	GeneLocks           []bool
	Reward              reward.Params
	Control             chan evo.Command
}

type EvolutionResult struct {
	RunID            string
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	BestFinalFitness float64
	TopFinal         []model.TopGenomeRecord
	Population       model.Population
}

// Arena wires the store, registered courses, and support modules together
// and runs evolution against them.
type Arena struct {
	store  storage.Store
	logger *slog.Logger

	mu             sync.RWMutex
	courses        map[string]CourseSpec
	supportModules map[string]SupportModule
	runs           map[string]chan evo.Command
	started        bool
	lastStopReason StopReason

	config Config
}

var (
	defaultArenaMu sync.Mutex
	defaultArena   *Arena
)

func NewArena(cfg Config) *Arena {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Arena{
		store:          cfg.Store,
		logger:         logger,
		courses:        make(map[string]CourseSpec),
		supportModules: make(map[string]SupportModule),
		runs:           make(map[string]chan evo.Command),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

// StartDefault initializes the process-wide arena instance, reusing a live
// one if it exists.
func StartDefault(ctx context.Context, cfg Config) (*Arena, error) {
	defaultArenaMu.Lock()
	defer defaultArenaMu.Unlock()

	if defaultArena != nil && defaultArena.Started() {
		return defaultArena, nil
	}

	a := NewArena(cfg)
	if err := a.Init(ctx); err != nil {
		return nil, err
	}
	defaultArena = a
	return defaultArena, nil
}

func Default() (*Arena, bool) {
	defaultArenaMu.Lock()
	a := defaultArena
	defaultArenaMu.Unlock()

	if a == nil || !a.Started() {
		return nil, false
	}
	return a, true
}

func StopDefault(reason StopReason) error {
	defaultArenaMu.Lock()
	a := defaultArena
	defaultArenaMu.Unlock()
	if a == nil {
		return nil
	}
	if err := a.StopWithReason(reason); err != nil {
		return err
	}
	defaultArenaMu.Lock()
	if defaultArena == a {
		defaultArena = nil
	}
	defaultArenaMu.Unlock()
	return nil
}

func (a *Arena) Init(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("store is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.store.Init(ctx); err != nil {
		return err
	}

	started := make([]SupportModule, 0, len(a.config.SupportModules))
	fail := func(err error) error {
		stopSupportModules(ctx, started)
		a.supportModules = make(map[string]SupportModule)
		a.courses = make(map[string]CourseSpec)
		return err
	}

	for i, module := range a.config.SupportModules {
		if module == nil {
			return fail(fmt.Errorf("support module is nil at index %d", i))
		}
		name := module.Name()
		if name == "" {
			return fail(fmt.Errorf("support module name is required at index %d", i))
		}
		if _, exists := a.supportModules[name]; exists {
			return fail(fmt.Errorf("duplicate support module: %s", name))
		}
		if err := module.Start(ctx); err != nil {
			return fail(fmt.Errorf("start support module %s: %w", name, err))
		}
		a.supportModules[name] = module
		started = append(started, module)
	}

	for i, spec := range a.config.Courses {
		if spec.Name == "" {
			return fail(fmt.Errorf("course name is required at index %d", i))
		}
		if _, exists := a.courses[spec.Name]; exists {
			return fail(fmt.Errorf("duplicate course: %s", spec.Name))
		}
		a.courses[spec.Name] = spec
	}

	a.started = true
	return nil
}

func (a *Arena) Started() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

func (a *Arena) LastStopReason() StopReason {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastStopReason
}

func (a *Arena) Store() storage.Store {
	return a.store
}

// RegisterCourse adds a course after initialization.
func (a *Arena) RegisterCourse(spec CourseSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("course name is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return fmt.Errorf("arena is not initialized")
	}
	a.courses[spec.Name] = spec
	return nil
}

func (a *Arena) GetCourse(name string) (CourseSpec, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	spec, ok := a.courses[name]
	return spec, ok
}

func (a *Arena) CourseNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.courses))
	for name := range a.courses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Arena) Stop() {
	_ = a.StopWithReason(StopReasonNormal)
}

func (a *Arena) Shutdown() {
	_ = a.StopWithReason(StopReasonShutdown)
}

func (a *Arena) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if reason != StopReasonNormal && reason != StopReasonShutdown {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, control := range a.runs {
		select {
		case control <- evo.CommandStop:
		default:
		}
	}
	for _, module := range a.supportModules {
		if err := module.Stop(context.Background()); err != nil {
			a.logger.Warn("stop support module", "module", module.Name(), "err", err)
		}
	}

	a.started = false
	a.lastStopReason = reason
	a.courses = make(map[string]CourseSpec)
	a.supportModules = make(map[string]SupportModule)
	a.runs = make(map[string]chan evo.Command)
	return nil
}

// PauseRun, ContinueRun, and StopRun inject control commands into an active
// run's channel. A full channel is reported as an error rather than blocking.
func (a *Arena) PauseRun(runID string) error    { return a.sendCommand(runID, evo.CommandPause) }
func (a *Arena) ContinueRun(runID string) error { return a.sendCommand(runID, evo.CommandContinue) }
func (a *Arena) StopRun(runID string) error     { return a.sendCommand(runID, evo.CommandStop) }
func (a *Arena) AdvanceRun(runID string) error  { return a.sendCommand(runID, evo.CommandAdvance) }

func (a *Arena) sendCommand(runID string, cmd evo.Command) error {
	a.mu.RLock()
	control, ok := a.runs[runID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run %s control channel is full", runID)
	}
}

// RunEvolution executes one full evolution run on a registered course and
// persists its artifacts under the run ID.
func (a *Arena) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.CourseName == "" {
		return EvolutionResult{}, fmt.Errorf("course name is required")
	}
	if cfg.Generations <= 0 {
		return EvolutionResult{}, fmt.Errorf("generations must be > 0, got %d", cfg.Generations)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	a.mu.RLock()
	spec, ok := a.courses[cfg.CourseName]
	started := a.started
	a.mu.RUnlock()

	if !started {
		return EvolutionResult{}, fmt.Errorf("arena is not initialized")
	}
	if !ok {
		return EvolutionResult{}, fmt.Errorf("course not registered: %s", cfg.CourseName)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	control := cfg.Control
	if control == nil {
		control = make(chan evo.Command, 16)
	}
	if err := a.registerRunControl(runID, control); err != nil {
		return EvolutionResult{}, err
	}
	defer a.unregisterRunControl(runID)

	courseTracker, err := course.NewTracker(
		course.DefaultConfig(spec.Corridor.CheckpointLine(checkpointSpacing)),
		cfg.PopulationSize,
	)
	if err != nil {
		return EvolutionResult{}, err
	}

	ctrl, err := evo.NewController(evo.Config{
		PopulationSize:      cfg.PopulationSize,
		EliteCount:          cfg.EliteCount,
		MutationRate:        cfg.MutationRate,
		TournamentSize:      cfg.TournamentSize,
		GenerationTimeLimit: cfg.GenerationTimeLimit,
		LayerSizes:          cfg.LayerSizes,
		GeneLocks:           cfg.GeneLocks,
		Seed:                cfg.Seed,
		Reward:              cfg.Reward,
		Course:              courseTracker,
		Logger:              a.logger,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	world, err := scape.NewCorridor(spec.Corridor, ctrl)
	if err != nil {
		return EvolutionResult{}, err
	}

	var (
		bestByGeneration []float64
		diagnostics      []model.GenerationDiagnostics
	)
	err = world.Run(ctx, scape.RunConfig{
		Generations: cfg.Generations,
		Workers:     cfg.Workers,
		Control:     control,
		OnGeneration: func(r evo.GenerationReport) {
			d := toDiagnostics(r)
			bestByGeneration = append(bestByGeneration, d.BestFitness)
			diagnostics = append(diagnostics, d)
			a.broadcast(map[string]any{
				"run_id":       runID,
				"generation":   d.Generation,
				"best_fitness": d.BestFitness,
				"mean_fitness": d.MeanFitness,
				"alive_count":  d.AliveCount,
			})
			a.logger.Info("generation complete",
				"run", runID,
				"generation", d.Generation,
				"best", d.BestFitness,
				"mean", d.MeanFitness,
				"alive", d.AliveCount,
			)
		},
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	return a.persistRun(ctx, runID, cfg.CourseName, ctrl, bestByGeneration, diagnostics)
}

func (a *Arena) persistRun(
	ctx context.Context,
	runID, courseName string,
	ctrl *evo.Controller,
	bestByGeneration []float64,
	diagnostics []model.GenerationDiagnostics,
) (EvolutionResult, error) {
	agents := ctrl.Agents()
	population := model.Population{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Generation:      ctrl.Generation(),
	}

	scored := make([]model.TopGenomeRecord, 0, len(agents))
	for _, runner := range agents {
		g := runner.Genome()
		record := model.Genome{
			VersionedRecord: storage.Stamp(),
			ID:              uuid.NewString(),
			LayerSizes:      g.LayerSizes(),
			Weights:         g.Weights(),
		}
		if err := a.store.SaveGenome(ctx, record); err != nil {
			return EvolutionResult{}, err
		}
		population.GenomeIDs = append(population.GenomeIDs, record.ID)
		scored = append(scored, model.TopGenomeRecord{Fitness: runner.Fitness(), Genome: record})
	}
	if err := a.store.SavePopulation(ctx, population); err != nil {
		return EvolutionResult{}, err
	}
	if err := a.store.SaveFitnessHistory(ctx, runID, bestByGeneration); err != nil {
		return EvolutionResult{}, err
	}
	if err := a.store.SaveGenerationDiagnostics(ctx, runID, diagnostics); err != nil {
		return EvolutionResult{}, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Fitness > scored[j].Fitness
	})
	topCount := 5
	if len(scored) < topCount {
		topCount = len(scored)
	}
	top := make([]model.TopGenomeRecord, topCount)
	for i := 0; i < topCount; i++ {
		top[i] = scored[i]
		top[i].Rank = i + 1
	}
	if err := a.store.SaveTopGenomes(ctx, runID, top); err != nil {
		return EvolutionResult{}, err
	}

	bestFinal := 0.0
	if len(top) > 0 {
		bestFinal = top[0].Fitness
	}
	if err := a.updateCourseSummary(ctx, courseName, bestFinal); err != nil {
		return EvolutionResult{}, err
	}

	return EvolutionResult{
		RunID:            runID,
		BestByGeneration: bestByGeneration,
		Diagnostics:      diagnostics,
		BestFinalFitness: bestFinal,
		TopFinal:         top,
		Population:       population,
	}, nil
}

func (a *Arena) updateCourseSummary(ctx context.Context, name string, bestFitness float64) error {
	summary, ok, err := a.store.GetCourseSummary(ctx, name)
	if err != nil {
		return err
	}
	if ok && summary.BestFitness >= bestFitness {
		return nil
	}
	if !ok {
		spec, _ := a.GetCourse(name)
		summary = model.CourseSummary{
			VersionedRecord: storage.Stamp(),
			Name:            name,
			Description:     spec.Description,
		}
	}
	summary.BestFitness = bestFitness
	return a.store.SaveCourseSummary(ctx, summary)
}

func (a *Arena) broadcast(v any) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, module := range a.supportModules {
		if b, ok := module.(Broadcaster); ok {
			b.Broadcast(v)
		}
	}
}

func (a *Arena) registerRunControl(runID string, control chan evo.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return fmt.Errorf("arena is not initialized")
	}
	if _, exists := a.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	a.runs[runID] = control
	return nil
}

func (a *Arena) unregisterRunControl(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.runs, runID)
}

func toDiagnostics(r evo.GenerationReport) model.GenerationDiagnostics {
	return model.GenerationDiagnostics{
		Generation:    r.Generation,
		BestFitness:   r.Summary.Best,
		MeanFitness:   r.Summary.Mean,
		MinFitness:    r.Summary.Min,
		StdDevFitness: r.Summary.StdDev,
		MedianFitness: r.Summary.Median,
		AliveCount:    r.AliveCount,
		TimedOut:      r.TimedOut,
		Forced:        r.Forced,
	}
}

func stopSupportModules(ctx context.Context, modules []SupportModule) {
	for i := len(modules) - 1; i >= 0; i-- {
		_ = modules[i].Stop(ctx)
	}
}
