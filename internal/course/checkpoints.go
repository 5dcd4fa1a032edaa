// Package course tracks ordered checkpoint progress for every agent on the
// active course. Exactly one tracker is active per course; level changes swap
// the whole tracker rather than mutating it.
package course

import (
	"fmt"

	"evorunner/internal/model"
)

// Config describes a course's checkpoint topology.
type Config struct {
	Checkpoints []model.Position
	Radius      float64
	BaseReward  float64
	// OrderMultiplier scales BaseReward for visits made in sequence.
	OrderMultiplier float64
}

func DefaultConfig(checkpoints []model.Position) Config {
	return Config{
		Checkpoints:     checkpoints,
		Radius:          3,
		BaseReward:      25,
		OrderMultiplier: 2,
	}
}

type progress struct {
	visited      map[int]struct{}
	lastOrderly  int
	totalEarned  float64
	orderedCount int
}

// Tracker holds per-agent checkpoint progress. Entries are created up front
// so that concurrent ticks for different agents never write the same map.
type Tracker struct {
	cfg     Config
	agents  []progress
	courseN int
}

func NewTracker(cfg Config, populationSize int) (*Tracker, error) {
	if len(cfg.Checkpoints) == 0 {
		return nil, fmt.Errorf("at least one checkpoint is required")
	}
	if cfg.Radius <= 0 {
		return nil, fmt.Errorf("checkpoint radius must be > 0, got %f", cfg.Radius)
	}
	if cfg.BaseReward <= 0 {
		return nil, fmt.Errorf("base reward must be > 0, got %f", cfg.BaseReward)
	}
	if cfg.OrderMultiplier < 1 {
		return nil, fmt.Errorf("order multiplier must be >= 1, got %f", cfg.OrderMultiplier)
	}
	if populationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0, got %d", populationSize)
	}

	t := &Tracker{cfg: cfg, courseN: len(cfg.Checkpoints), agents: make([]progress, populationSize)}
	for i := range t.agents {
		t.agents[i] = newProgress()
	}
	return t, nil
}

func newProgress() progress {
	return progress{visited: make(map[int]struct{}), lastOrderly: -1}
}

func (t *Tracker) Count() int {
	return t.courseN
}

// Checkpoint returns the position of checkpoint i. The index must be in
// [0, Count).
func (t *Tracker) Checkpoint(i int) model.Position {
	return t.cfg.Checkpoints[i]
}

func (t *Tracker) PopulationSize() int {
	return len(t.agents)
}

// Check awards one-time rewards for every checkpoint the agent newly entered
// this tick and returns their sum. An in-order visit (index exactly one past
// the orderly frontier) earns the order multiplier plus a progress bonus;
// any other first visit earns the flat base reward.
func (t *Tracker) Check(agentIdx int, pos model.Position) (float64, error) {
	if agentIdx < 0 || agentIdx >= len(t.agents) {
		return 0, fmt.Errorf("agent index out of range: %d", agentIdx)
	}

	p := &t.agents[agentIdx]
	earned := 0.0
	for i, checkpoint := range t.cfg.Checkpoints {
		if _, seen := p.visited[i]; seen {
			continue
		}
		if pos.DistanceTo(checkpoint) > t.cfg.Radius {
			continue
		}

		p.visited[i] = struct{}{}
		if i == p.lastOrderly+1 {
			earned += t.cfg.BaseReward*t.cfg.OrderMultiplier + float64(i+1)*2
			p.lastOrderly = i
			p.orderedCount++
		} else {
			earned += t.cfg.BaseReward
		}
	}
	p.totalEarned += earned
	return earned, nil
}

// Progress reports how many checkpoints the agent has reached at all and the
// highest index reached in strict order.
func (t *Tracker) Progress(agentIdx int) (visited int, lastOrderly int, err error) {
	if agentIdx < 0 || agentIdx >= len(t.agents) {
		return 0, 0, fmt.Errorf("agent index out of range: %d", agentIdx)
	}
	p := &t.agents[agentIdx]
	return len(p.visited), p.lastOrderly, nil
}

// ResetAgent clears one agent's progress for a new generation.
func (t *Tracker) ResetAgent(agentIdx int) error {
	if agentIdx < 0 || agentIdx >= len(t.agents) {
		return fmt.Errorf("agent index out of range: %d", agentIdx)
	}
	t.agents[agentIdx] = newProgress()
	return nil
}

// ResetAll clears every agent's progress.
func (t *Tracker) ResetAll() {
	for i := range t.agents {
		t.agents[i] = newProgress()
	}
}
