package stats

import (
	"math"
	"testing"
)

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("empty snapshot: got=%+v", got)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize([]float64{10, 50, 30, 20, 40})
	if got.Count != 5 || got.Best != 50 || got.Min != 10 {
		t.Fatalf("bounds: %+v", got)
	}
	if math.Abs(got.Mean-30) > 1e-9 {
		t.Fatalf("mean: got=%f want=30", got.Mean)
	}
	if got.Median != 30 {
		t.Fatalf("median: got=%f want=30", got.Median)
	}
	if got.StdDev <= 0 {
		t.Fatalf("stddev: got=%f", got.StdDev)
	}
}

func TestSummarizeSingle(t *testing.T) {
	got := Summarize([]float64{7})
	if got.Best != 7 || got.Min != 7 || got.Mean != 7 || got.StdDev != 0 {
		t.Fatalf("single value: %+v", got)
	}
}
