// Package agent composes one policy genome with one reward tracker into a
// lifecycle-managed population member.
package agent

import (
	"fmt"

	"evorunner/internal/model"
	"evorunner/internal/nn"
	"evorunner/internal/reward"
)

// Runner is a pure state container: the scape owns physics, the runner owns
// the policy and the score. Lifecycle is alive -> dead -> reset.
type Runner struct {
	idx     int
	genome  *nn.Genome
	tracker *reward.Tracker

	malformedInputs int
}

func NewRunner(idx int, genome *nn.Genome, params reward.Params, start model.Position) (*Runner, error) {
	if idx < 0 {
		return nil, fmt.Errorf("agent index must be >= 0, got %d", idx)
	}
	if genome == nil {
		return nil, fmt.Errorf("genome is required")
	}
	return &Runner{
		idx:     idx,
		genome:  genome,
		tracker: reward.NewTracker(params, start),
	}, nil
}

func (r *Runner) Index() int {
	return r.idx
}

func (r *Runner) Genome() *nn.Genome {
	return r.genome
}

func (r *Runner) Reward() *reward.Tracker {
	return r.tracker
}

func (r *Runner) Fitness() float64 {
	return r.tracker.Fitness()
}

func (r *Runner) Dead() bool {
	return r.tracker.Dead()
}

// MalformedInputs counts sensor vectors that needed defensive padding.
func (r *Runner) MalformedInputs() int {
	return r.malformedInputs
}

// Act runs one forward pass. A sensor vector shorter than the input layer is
// padded with zeros instead of failing the tick; a longer one is truncated.
// Both cases are counted so the boundary fault is visible upstream.
func (r *Runner) Act(sensors []float64) ([]float64, error) {
	want := r.genome.InputSize()
	if len(sensors) != want {
		r.malformedInputs++
		padded := make([]float64, want)
		copy(padded, sensors)
		sensors = padded
	}
	actions, err := r.genome.Forward(sensors)
	if err != nil {
		return nil, fmt.Errorf("agent %d forward pass: %w", r.idx, err)
	}
	return actions, nil
}

// Reset installs the next generation's genome and clears all telemetry.
func (r *Runner) Reset(genome *nn.Genome, start model.Position) error {
	if genome == nil {
		return fmt.Errorf("genome is required")
	}
	r.genome = genome
	r.tracker.Reset(start)
	r.malformedInputs = 0
	return nil
}
