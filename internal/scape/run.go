package scape

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"evorunner/internal/evo"
)

// ErrStopped reports a run ended early by CommandStop.
var ErrStopped = errors.New("run stopped by command")

type RunConfig struct {
	Generations  int
	Workers      int
	OnGeneration func(evo.GenerationReport)
	Control      <-chan evo.Command
}

// Run advances the world tick by tick until the requested number of
// generations has completed. Per-agent work inside one tick fans out over a
// worker pool; the generation clock advances strictly after every agent's
// tick has finished.
func (w *Corridor) Run(ctx context.Context, cfg RunConfig) error {
	if cfg.Generations <= 0 {
		return fmt.Errorf("generations must be > 0, got %d", cfg.Generations)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(w.states) {
		workers = len(w.states)
	}

	completed := 0
	for completed < cfg.Generations {
		if err := ctx.Err(); err != nil {
			return err
		}

		advance := false
		switch cmd, err := w.poll(ctx, cfg.Control); {
		case err != nil:
			return err
		case cmd == evo.CommandStop:
			return ErrStopped
		case cmd == evo.CommandAdvance:
			advance = true
		}

		var report evo.GenerationReport
		ok := false
		if advance {
			report, ok = w.ctrl.ForceAdvance(), true
		} else {
			if err := w.step(ctx, workers); err != nil {
				return err
			}
			report, ok = w.ctrl.Tick(w.cfg.TickDuration)
		}
		if !ok {
			continue
		}

		completed++
		w.resetStates()
		if cfg.OnGeneration != nil {
			cfg.OnGeneration(report)
		}
	}
	return nil
}

// poll drains pending control commands without blocking; a pause blocks
// until continue, stop, or context cancellation.
func (w *Corridor) poll(ctx context.Context, control <-chan evo.Command) (evo.Command, error) {
	if control == nil {
		return "", nil
	}
	for {
		select {
		case cmd := <-control:
			switch cmd {
			case evo.CommandPause:
				if resumed, err := w.waitForContinue(ctx, control); err != nil || !resumed {
					return evo.CommandStop, err
				}
			case evo.CommandStop, evo.CommandAdvance:
				return cmd, nil
			}
		default:
			return "", nil
		}
	}
}

func (w *Corridor) waitForContinue(ctx context.Context, control <-chan evo.Command) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case cmd := <-control:
			switch cmd {
			case evo.CommandContinue:
				return true, nil
			case evo.CommandStop:
				return false, nil
			}
		}
	}
}

// step runs one simulated tick for every live agent. Each job touches only
// its own agent's physics state, reward tracker, and checkpoint entry, so
// jobs are safe to run in parallel.
func (w *Corridor) step(ctx context.Context, workers int) error {
	agents := w.ctrl.Agents()
	jobs := make(chan int)
	results := make(chan error, len(agents))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- w.tickAgent(ctx, idx)
			}
		}()
	}

	for idx := range agents {
		if agents[idx].Dead() {
			continue
		}
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Corridor) tickAgent(ctx context.Context, idx int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sensors, err := w.sensors[idx].Read(ctx)
	if err != nil {
		return fmt.Errorf("agent %d sense: %w", idx, err)
	}
	actions, err := w.ctrl.Agents()[idx].Act(sensors)
	if err != nil {
		return fmt.Errorf("agent %d act: %w", idx, err)
	}
	if err := w.actuators[idx].Write(ctx, actions); err != nil {
		return fmt.Errorf("agent %d actuate: %w", idx, err)
	}
	return nil
}
