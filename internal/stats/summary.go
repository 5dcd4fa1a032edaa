// Package stats summarizes per-generation fitness distributions.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

type Summary struct {
	Count  int
	Best   float64
	Min    float64
	Mean   float64
	StdDev float64
	Median float64
}

// Summarize computes distribution statistics over one generation's fitness
// snapshot. An empty snapshot yields the zero Summary.
func Summarize(fitness []float64) Summary {
	if len(fitness) == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), fitness...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(sorted),
		Best:   sorted[len(sorted)-1],
		Min:    sorted[0],
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}
