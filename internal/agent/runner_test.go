package agent

import (
	"math/rand"
	"testing"

	"evorunner/internal/model"
	"evorunner/internal/nn"
	"evorunner/internal/reward"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	genome, err := nn.New([]int{4, 6, 3}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	runner, err := NewRunner(0, genome, reward.DefaultParams(), model.Position{})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func TestActProducesActionVector(t *testing.T) {
	runner := newRunner(t)
	actions, err := runner.Act([]float64{0.2, 0.4, 0.6, 1})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("action count: got=%d want=3", len(actions))
	}
	if runner.MalformedInputs() != 0 {
		t.Fatalf("well-formed input counted as malformed: %d", runner.MalformedInputs())
	}
}

func TestActPadsShortSensorVector(t *testing.T) {
	runner := newRunner(t)
	actions, err := runner.Act([]float64{0.2})
	if err != nil {
		t.Fatalf("act with short input: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("action count: got=%d want=3", len(actions))
	}
	if runner.MalformedInputs() != 1 {
		t.Fatalf("malformed input not counted: %d", runner.MalformedInputs())
	}

	// Padding must match an explicit zero-extended vector.
	want, err := runner.Act([]float64{0.2, 0, 0, 0})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("padded output mismatch at %d: got=%f want=%f", i, actions[i], want[i])
		}
	}
}

func TestResetInstallsGenomeAndClearsState(t *testing.T) {
	runner := newRunner(t)
	runner.Reward().ReportMove(model.Position{X: 10}, 0, 0.5)
	runner.Reward().Kill()
	_, _ = runner.Act([]float64{1}) // malformed on purpose

	next, err := nn.New([]int{4, 6, 3}, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("new genome: %v", err)
	}
	if err := runner.Reset(next, model.Position{X: 1}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if runner.Dead() {
		t.Fatal("runner still dead after reset")
	}
	if runner.Fitness() != 0 {
		t.Fatalf("fitness not cleared: %f", runner.Fitness())
	}
	if runner.Genome() != next {
		t.Fatal("reset did not install the new genome")
	}
	if runner.MalformedInputs() != 0 {
		t.Fatal("malformed input counter not cleared")
	}

	if err := runner.Reset(nil, model.Position{}); err == nil {
		t.Fatal("expected error for nil genome")
	}
}
