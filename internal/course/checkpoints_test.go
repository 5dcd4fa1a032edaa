package course

import (
	"testing"

	"evorunner/internal/model"
)

func lineCourse(n int, spacing float64) []model.Position {
	out := make([]model.Position, n)
	for i := range out {
		out[i] = model.Position{X: float64(i+1) * spacing}
	}
	return out
}

func mustTracker(t *testing.T, cfg Config, population int) *Tracker {
	t.Helper()
	tracker, err := NewTracker(cfg, population)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return tracker
}

func TestNewTrackerValidation(t *testing.T) {
	if _, err := NewTracker(DefaultConfig(nil), 4); err == nil {
		t.Fatal("expected error for empty checkpoint list")
	}
	cfg := DefaultConfig(lineCourse(3, 10))
	if _, err := NewTracker(cfg, 0); err == nil {
		t.Fatal("expected error for zero population")
	}
	cfg.Radius = 0
	if _, err := NewTracker(cfg, 4); err == nil {
		t.Fatal("expected error for zero radius")
	}
}

func TestInOrderVisitReward(t *testing.T) {
	cfg := DefaultConfig(lineCourse(3, 10))
	tracker := mustTracker(t, cfg, 1)

	earned, err := tracker.Check(0, model.Position{X: 10})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := cfg.BaseReward*cfg.OrderMultiplier + 2 // index 0, progress bonus (0+1)*2
	if earned != want {
		t.Fatalf("in-order reward: got=%f want=%f", earned, want)
	}
	visited, lastOrderly, err := tracker.Progress(0)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if visited != 1 || lastOrderly != 0 {
		t.Fatalf("progress after first checkpoint: visited=%d lastOrderly=%d", visited, lastOrderly)
	}
}

func TestOutOfOrderVisitGetsFlatReward(t *testing.T) {
	cfg := DefaultConfig(lineCourse(3, 10))
	tracker := mustTracker(t, cfg, 1)

	earned, err := tracker.Check(0, model.Position{X: 30}) // index 2, skipping ahead
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if earned != cfg.BaseReward {
		t.Fatalf("skip-ahead reward: got=%f want=%f", earned, cfg.BaseReward)
	}
	_, lastOrderly, _ := tracker.Progress(0)
	if lastOrderly != -1 {
		t.Fatalf("skip-ahead advanced orderly index: %d", lastOrderly)
	}

	// Index 0 afterwards is still the next orderly checkpoint.
	earned, err = tracker.Check(0, model.Position{X: 10})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if want := cfg.BaseReward*cfg.OrderMultiplier + 2; earned != want {
		t.Fatalf("orderly visit after skip: got=%f want=%f", earned, want)
	}
}

func TestOrderedRunBeatsShuffledRun(t *testing.T) {
	cfg := DefaultConfig(lineCourse(3, 10))
	ordered := mustTracker(t, cfg, 1)
	shuffled := mustTracker(t, cfg, 1)

	totalOrdered := 0.0
	for _, x := range []float64{10, 20, 30} {
		earned, err := ordered.Check(0, model.Position{X: x})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		totalOrdered += earned
	}

	totalShuffled := 0.0
	for _, x := range []float64{30, 10, 20} {
		earned, err := shuffled.Check(0, model.Position{X: x})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		totalShuffled += earned
	}

	if totalOrdered <= totalShuffled {
		t.Fatalf("ordered run should outscore shuffled run: ordered=%f shuffled=%f", totalOrdered, totalShuffled)
	}
}

func TestNoDoubleReward(t *testing.T) {
	cfg := DefaultConfig(lineCourse(2, 10))
	tracker := mustTracker(t, cfg, 1)

	first, err := tracker.Check(0, model.Position{X: 10})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if first == 0 {
		t.Fatal("first visit earned nothing")
	}
	again, err := tracker.Check(0, model.Position{X: 10})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if again != 0 {
		t.Fatalf("second visit earned reward: %f", again)
	}
}

func TestRadiusGatesVisits(t *testing.T) {
	cfg := DefaultConfig(lineCourse(1, 10))
	cfg.Radius = 2
	tracker := mustTracker(t, cfg, 1)

	earned, err := tracker.Check(0, model.Position{X: 7.5})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if earned != 0 {
		t.Fatalf("visit outside radius earned reward: %f", earned)
	}
	earned, err = tracker.Check(0, model.Position{X: 8.5})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if earned == 0 {
		t.Fatal("visit inside radius earned nothing")
	}
}

func TestAgentsAreIndependent(t *testing.T) {
	cfg := DefaultConfig(lineCourse(2, 10))
	tracker := mustTracker(t, cfg, 2)

	if _, err := tracker.Check(0, model.Position{X: 10}); err != nil {
		t.Fatalf("check: %v", err)
	}
	visited, _, _ := tracker.Progress(1)
	if visited != 0 {
		t.Fatalf("agent 1 inherited agent 0 progress: visited=%d", visited)
	}

	earned, err := tracker.Check(1, model.Position{X: 10})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if earned == 0 {
		t.Fatal("agent 1 first visit earned nothing")
	}
}

func TestResetClearsProgress(t *testing.T) {
	cfg := DefaultConfig(lineCourse(2, 10))
	tracker := mustTracker(t, cfg, 2)
	for agent := 0; agent < 2; agent++ {
		if _, err := tracker.Check(agent, model.Position{X: 10}); err != nil {
			t.Fatalf("check: %v", err)
		}
	}

	if err := tracker.ResetAgent(0); err != nil {
		t.Fatalf("reset agent: %v", err)
	}
	visited, lastOrderly, _ := tracker.Progress(0)
	if visited != 0 || lastOrderly != -1 {
		t.Fatalf("reset agent kept progress: visited=%d lastOrderly=%d", visited, lastOrderly)
	}

	tracker.ResetAll()
	visited, lastOrderly, _ = tracker.Progress(1)
	if visited != 0 || lastOrderly != -1 {
		t.Fatalf("reset all kept progress: visited=%d lastOrderly=%d", visited, lastOrderly)
	}

	// A reset agent earns fresh rewards again.
	earned, err := tracker.Check(0, model.Position{X: 10})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if earned == 0 {
		t.Fatal("post-reset visit earned nothing")
	}
}

func TestCheckRejectsBadIndex(t *testing.T) {
	tracker := mustTracker(t, DefaultConfig(lineCourse(1, 10)), 1)
	if _, err := tracker.Check(5, model.Position{}); err == nil {
		t.Fatal("expected index error")
	}
	if _, _, err := tracker.Progress(-1); err == nil {
		t.Fatal("expected index error")
	}
	if err := tracker.ResetAgent(9); err == nil {
		t.Fatal("expected index error")
	}
}
