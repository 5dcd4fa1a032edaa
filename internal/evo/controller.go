// Package evo runs the generation lifecycle: timing a cohort, scoring it,
// and breeding the next one under elitism and per-action gene locks.
package evo

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"evorunner/internal/agent"
	"evorunner/internal/course"
	"evorunner/internal/model"
	"evorunner/internal/nn"
	"evorunner/internal/reward"
	"evorunner/internal/stats"
)

type Phase string

const (
	PhaseRunning    Phase = "running"
	PhaseEvaluating Phase = "evaluating"
	PhaseSelecting  Phase = "selecting"
	PhaseMutating   Phase = "mutating"
	PhaseResetting  Phase = "resetting"
)

const (
	// MaxEliteCount caps how many top genomes are carried over unchanged.
	MaxEliteCount = 10
	// DefaultTournamentSize is the sample size for parent selection, capped
	// at the population size.
	DefaultTournamentSize = 5
)

type Config struct {
	PopulationSize      int
	EliteCount          int
	MutationRate        float64
	TournamentSize      int
	GenerationTimeLimit float64 // seconds since the last reset
	LayerSizes          []int
	GeneLocks           []bool // one flag per output action; empty means unlocked
	Seed                int64
	Reward              reward.Params
	Course              *course.Tracker
	Start               model.Position
	Logger              *slog.Logger
}

// GenerationReport is emitted once per completed generation, from the
// Evaluating phase's frozen fitness snapshot.
type GenerationReport struct {
	Generation int
	Summary    stats.Summary
	AliveCount int
	TimedOut   bool
	Forced     bool
	BestIndex  int
}

// Controller owns the agent cohort and the Running -> Evaluating ->
// Selecting -> Mutating -> Resetting state machine. Agents are reused in
// place across generations; only their genomes are replaced.
type Controller struct {
	cfg    Config
	rng    *rand.Rand
	logger *slog.Logger

	agents  []*agent.Runner
	course  *course.Tracker
	locks   []bool
	weights reward.Params

	generation int
	elapsed    float64
	phase      Phase
	lastReport GenerationReport
	hasReport  bool
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0, got %d", cfg.PopulationSize)
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = 1
	}
	if cfg.EliteCount > MaxEliteCount {
		return nil, fmt.Errorf("elite count must be in [1, %d], got %d", MaxEliteCount, cfg.EliteCount)
	}
	if cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count %d exceeds population size %d", cfg.EliteCount, cfg.PopulationSize)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0, 1], got %f", cfg.MutationRate)
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = DefaultTournamentSize
	}
	if cfg.GenerationTimeLimit <= 0 {
		return nil, fmt.Errorf("generation time limit must be > 0, got %f", cfg.GenerationTimeLimit)
	}
	if len(cfg.LayerSizes) < 2 {
		return nil, fmt.Errorf("at least two layers are required, got %v", cfg.LayerSizes)
	}
	if cfg.Course == nil {
		return nil, fmt.Errorf("course tracker is required")
	}
	if cfg.Course.PopulationSize() != cfg.PopulationSize {
		return nil, fmt.Errorf("course tracker sized for %d agents, population is %d", cfg.Course.PopulationSize(), cfg.PopulationSize)
	}
	outputs := cfg.LayerSizes[len(cfg.LayerSizes)-1]
	if len(cfg.GeneLocks) != 0 && len(cfg.GeneLocks) != outputs {
		return nil, fmt.Errorf("gene locks must have one flag per output action: got=%d want=%d", len(cfg.GeneLocks), outputs)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		logger:  cfg.Logger,
		course:  cfg.Course,
		weights: cfg.Reward.Normalize(),
		phase:   PhaseRunning,
	}
	c.locks = make([]bool, outputs)
	copy(c.locks, cfg.GeneLocks)

	c.agents = make([]*agent.Runner, cfg.PopulationSize)
	for i := range c.agents {
		genome, err := nn.New(cfg.LayerSizes, c.rng)
		if err != nil {
			return nil, err
		}
		runner, err := agent.NewRunner(i, genome, c.weights, cfg.Start)
		if err != nil {
			return nil, err
		}
		c.agents[i] = runner
	}
	return c, nil
}

func (c *Controller) Agents() []*agent.Runner {
	return c.agents
}

func (c *Controller) Course() *course.Tracker {
	return c.course
}

func (c *Controller) Generation() int {
	return c.generation
}

func (c *Controller) Elapsed() float64 {
	return c.elapsed
}

func (c *Controller) Phase() Phase {
	return c.phase
}

func (c *Controller) GeneLocks() []bool {
	return append([]bool(nil), c.locks...)
}

// SetGeneLock toggles one output action's lock for subsequent generations.
func (c *Controller) SetGeneLock(action int, locked bool) error {
	if action < 0 || action >= len(c.locks) {
		return fmt.Errorf("action index out of range: %d", action)
	}
	c.locks[action] = locked
	return nil
}

// LastReport returns the most recent generation report, if any generation
// has completed.
func (c *Controller) LastReport() (GenerationReport, bool) {
	return c.lastReport, c.hasReport
}

// SwapCourse installs a new course tracker on level change and clears every
// agent back to the start of the new course mid-generation.
func (c *Controller) SwapCourse(tracker *course.Tracker, start model.Position) error {
	if tracker == nil {
		return fmt.Errorf("course tracker is required")
	}
	if tracker.PopulationSize() != len(c.agents) {
		return fmt.Errorf("course tracker sized for %d agents, population is %d", tracker.PopulationSize(), len(c.agents))
	}
	c.course = tracker
	c.cfg.Start = start
	for _, runner := range c.agents {
		runner.Reward().Reset(start)
	}
	c.elapsed = 0
	return nil
}

// Tick advances the generation timer. When every agent is dead or the timer
// expires, the full Evaluating -> Resetting sequence runs and the completed
// generation's report is returned with ok=true.
func (c *Controller) Tick(dt float64) (GenerationReport, bool) {
	if c.phase != PhaseRunning || dt <= 0 {
		return GenerationReport{}, false
	}
	c.elapsed += dt

	timedOut := c.elapsed >= c.cfg.GenerationTimeLimit
	if !timedOut && c.aliveCount() > 0 {
		return GenerationReport{}, false
	}
	return c.advance(timedOut, false), true
}

// ForceAdvance ends the current generation immediately, bypassing the
// all-dead and timeout checks.
func (c *Controller) ForceAdvance() GenerationReport {
	return c.advance(false, true)
}

func (c *Controller) aliveCount() int {
	alive := 0
	for _, runner := range c.agents {
		if !runner.Dead() {
			alive++
		}
	}
	return alive
}

type scoredAgent struct {
	idx     int
	fitness float64
	genome  *nn.Genome
}

func (c *Controller) advance(timedOut, forced bool) GenerationReport {
	if len(c.agents) == 0 {
		c.logger.Warn("generation advance with empty population", "generation", c.generation)
		return GenerationReport{Generation: c.generation}
	}

	// Evaluating: freeze the fitness snapshot before anything mutates.
	c.phase = PhaseEvaluating
	report := c.evaluate(timedOut, forced)

	// Selecting: elites first, then tournament-bred offspring, all against
	// the frozen snapshot.
	c.phase = PhaseSelecting
	ranked := c.rank()
	eliteRef := ranked[0].genome.OutputColumns()
	next := c.breed(ranked)

	// Mutating: elites included, then locked columns are forced back to the
	// captured reference regardless of what breeding produced.
	c.phase = PhaseMutating
	c.mutate(next, eliteRef)

	// Resetting: reuse agents in place with the new genomes.
	c.phase = PhaseResetting
	for i, runner := range c.agents {
		if err := runner.Reset(next[i], c.cfg.Start); err != nil {
			c.logger.Warn("agent reset failed", "agent", i, "err", err)
		}
	}
	c.course.ResetAll()
	c.elapsed = 0
	c.generation++
	c.phase = PhaseRunning

	c.lastReport = report
	c.hasReport = true
	return report
}

func (c *Controller) evaluate(timedOut, forced bool) GenerationReport {
	fitness := make([]float64, len(c.agents))
	bestIdx := 0
	for i, runner := range c.agents {
		fitness[i] = runner.Fitness()
		if fitness[i] > fitness[bestIdx] {
			bestIdx = i
		}
	}
	return GenerationReport{
		Generation: c.generation,
		Summary:    stats.Summarize(fitness),
		AliveCount: c.aliveCount(),
		TimedOut:   timedOut,
		Forced:     forced,
		BestIndex:  bestIdx,
	}
}

// rank orders the frozen snapshot by fitness descending; ties keep
// population order.
func (c *Controller) rank() []scoredAgent {
	ranked := make([]scoredAgent, len(c.agents))
	for i, runner := range c.agents {
		ranked[i] = scoredAgent{idx: i, fitness: runner.Fitness(), genome: runner.Genome()}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].fitness > ranked[j].fitness
	})
	return ranked
}

func (c *Controller) breed(ranked []scoredAgent) []*nn.Genome {
	next := make([]*nn.Genome, 0, len(c.agents))
	for i := 0; i < c.cfg.EliteCount && i < len(ranked); i++ {
		next = append(next, ranked[i].genome.Copy())
	}

	if len(ranked) < 2 {
		for len(next) < len(c.agents) {
			next = append(next, ranked[0].genome.Copy())
		}
		return next
	}

	for len(next) < len(c.agents) {
		parent1 := c.tournament(ranked)
		parent2 := c.tournament(ranked)
		child := parent1.Copy()
		if err := child.Crossover(parent2, c.locks, c.rng); err != nil {
			c.logger.Warn("crossover failed, keeping first parent", "err", err)
		}
		next = append(next, child)
	}
	return next
}

// tournament samples with replacement from the frozen snapshot and keeps the
// fittest contender.
func (c *Controller) tournament(ranked []scoredAgent) *nn.Genome {
	size := c.cfg.TournamentSize
	if size > len(ranked) {
		size = len(ranked)
	}

	var best *scoredAgent
	for i := 0; i < size; i++ {
		candidate := &ranked[c.rng.Intn(len(ranked))]
		if candidate.genome == nil {
			continue
		}
		if best == nil || candidate.fitness > best.fitness {
			best = candidate
		}
	}
	if best == nil {
		c.logger.Warn("tournament found no valid contender, falling back to first agent")
		return ranked[0].genome
	}
	return best.genome
}

func (c *Controller) mutate(next []*nn.Genome, eliteRef [][]float64) {
	anyLocked := false
	for _, locked := range c.locks {
		if locked {
			anyLocked = true
			break
		}
	}

	for i, genome := range next {
		genome.Mutate(c.cfg.MutationRate, c.locks, c.rng)
		if anyLocked {
			if err := genome.ApplyLockedWeights(c.locks, eliteRef); err != nil {
				c.logger.Warn("locked weight override failed", "genome", i, "err", err)
			}
		}
	}
}
