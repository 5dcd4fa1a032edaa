package nn

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	// WeightInitRange bounds the uniform distribution used for fresh weights.
	WeightInitRange = 1.0
	// OutputSeedBias is added to every connection feeding the first output
	// neuron so that fresh genomes have a forward-motion prior instead of
	// starting fully symmetric.
	OutputSeedBias = 0.5
	// MutationDelta bounds the uniform perturbation applied by Mutate.
	MutationDelta = 0.1
)

// Genome is a fixed-topology feedforward network. The topology is immutable
// after construction; the weight tensor only changes through the genetic
// operators or through a whole-tensor SetWeights.
type Genome struct {
	layerSizes []int
	weights    [][][]float64 // weights[l][i][j]: layer l neuron i -> layer l+1 neuron j
}

// New builds a genome with weights drawn uniformly from
// [-WeightInitRange, WeightInitRange].
func New(layerSizes []int, rng *rand.Rand) (*Genome, error) {
	if len(layerSizes) < 2 {
		return nil, fmt.Errorf("at least two layers are required, got %d", len(layerSizes))
	}
	for i, size := range layerSizes {
		if size <= 0 {
			return nil, fmt.Errorf("layer size must be > 0 at index %d, got %d", i, size)
		}
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}

	g := &Genome{layerSizes: append([]int(nil), layerSizes...)}
	g.weights = make([][][]float64, len(layerSizes)-1)
	last := len(g.weights) - 1
	for l := range g.weights {
		g.weights[l] = make([][]float64, layerSizes[l])
		for i := range g.weights[l] {
			row := make([]float64, layerSizes[l+1])
			for j := range row {
				row[j] = (rng.Float64()*2 - 1) * WeightInitRange
				if l == last && j == 0 {
					row[j] += OutputSeedBias
				}
			}
			g.weights[l][i] = row
		}
	}
	return g, nil
}

// FromRecord rebuilds a genome from its serialized layer sizes and weights.
func FromRecord(layerSizes []int, weights [][][]float64) (*Genome, error) {
	g, err := New(layerSizes, rand.New(rand.NewSource(0)))
	if err != nil {
		return nil, err
	}
	if err := g.SetWeights(weights); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Genome) LayerSizes() []int {
	return append([]int(nil), g.layerSizes...)
}

func (g *Genome) InputSize() int {
	return g.layerSizes[0]
}

func (g *Genome) OutputSize() int {
	return g.layerSizes[len(g.layerSizes)-1]
}

// Forward computes the network output for one sensor vector. Input neurons
// take the sensor values directly; every later neuron applies tanh to its
// weighted sum.
func (g *Genome) Forward(inputs []float64) ([]float64, error) {
	if len(inputs) != g.layerSizes[0] {
		return nil, fmt.Errorf("input size mismatch: got=%d want=%d", len(inputs), g.layerSizes[0])
	}

	values := append([]float64(nil), inputs...)
	for l := range g.weights {
		next := make([]float64, g.layerSizes[l+1])
		for j := range next {
			total := 0.0
			for i, value := range values {
				total += value * g.weights[l][i][j]
			}
			next[j] = math.Tanh(total)
		}
		values = next
	}
	return values, nil
}

// Copy returns a deep copy sharing no mutable state with the receiver.
func (g *Genome) Copy() *Genome {
	clone := &Genome{
		layerSizes: append([]int(nil), g.layerSizes...),
		weights:    make([][][]float64, len(g.weights)),
	}
	for l := range g.weights {
		clone.weights[l] = make([][]float64, len(g.weights[l]))
		for i := range g.weights[l] {
			clone.weights[l][i] = append([]float64(nil), g.weights[l][i]...)
		}
	}
	return clone
}

// Mutate perturbs each weight independently with the given probability by a
// uniform delta in [-MutationDelta, MutationDelta]. Locks apply to the final
// weight layer only: a locked output index freezes that neuron's entire
// incoming column.
func (g *Genome) Mutate(rate float64, locks []bool, rng *rand.Rand) {
	if rng == nil || rate <= 0 {
		return
	}
	last := len(g.weights) - 1
	for l := range g.weights {
		for i := range g.weights[l] {
			for j := range g.weights[l][i] {
				if l == last && lockedOutput(locks, j) {
					continue
				}
				if rng.Float64() < rate {
					g.weights[l][i][j] += (rng.Float64()*2 - 1) * MutationDelta
				}
			}
		}
	}
}

// Crossover overwrites the receiver's weights in place: each unlocked weight
// is replaced by other's value at the same coordinate with probability 0.5.
// Call it on a fresh Copy of one parent so the originals survive.
func (g *Genome) Crossover(other *Genome, locks []bool, rng *rand.Rand) error {
	if other == nil {
		return fmt.Errorf("crossover partner is required")
	}
	if rng == nil {
		return fmt.Errorf("random source is required")
	}
	if !sameTopology(g.layerSizes, other.layerSizes) {
		return fmt.Errorf("topology mismatch: got=%v want=%v", other.layerSizes, g.layerSizes)
	}

	last := len(g.weights) - 1
	for l := range g.weights {
		for i := range g.weights[l] {
			for j := range g.weights[l][i] {
				if l == last && lockedOutput(locks, j) {
					continue
				}
				if rng.Float64() < 0.5 {
					g.weights[l][i][j] = other.weights[l][i][j]
				}
			}
		}
	}
	return nil
}

// ApplyLockedWeights overwrites the incoming final-layer column of every
// locked output neuron with the supplied reference column. columns holds one
// slice per output neuron; unlocked entries may be nil.
func (g *Genome) ApplyLockedWeights(locks []bool, columns [][]float64) error {
	if len(locks) == 0 {
		return nil
	}
	last := len(g.weights) - 1
	penultimate := g.layerSizes[len(g.layerSizes)-2]
	for j := 0; j < g.OutputSize(); j++ {
		if !lockedOutput(locks, j) {
			continue
		}
		if j >= len(columns) || columns[j] == nil {
			return fmt.Errorf("missing reference column for locked output %d", j)
		}
		if len(columns[j]) != penultimate {
			return fmt.Errorf("reference column size mismatch for output %d: got=%d want=%d", j, len(columns[j]), penultimate)
		}
		for i := 0; i < penultimate; i++ {
			g.weights[last][i][j] = columns[j][i]
		}
	}
	return nil
}

// OutputColumns snapshots the final weight layer as one column per output
// neuron, the reference format consumed by ApplyLockedWeights.
func (g *Genome) OutputColumns() [][]float64 {
	last := len(g.weights) - 1
	penultimate := g.layerSizes[len(g.layerSizes)-2]
	columns := make([][]float64, g.OutputSize())
	for j := range columns {
		column := make([]float64, penultimate)
		for i := 0; i < penultimate; i++ {
			column[i] = g.weights[last][i][j]
		}
		columns[j] = column
	}
	return columns
}

// Weights returns a deep copy of the full weight tensor.
func (g *Genome) Weights() [][][]float64 {
	out := make([][][]float64, len(g.weights))
	for l := range g.weights {
		out[l] = make([][]float64, len(g.weights[l]))
		for i := range g.weights[l] {
			out[l][i] = append([]float64(nil), g.weights[l][i]...)
		}
	}
	return out
}

// SetWeights replaces the whole tensor. Validation is atomic: any shape
// mismatch rejects the call and leaves the genome unchanged.
func (g *Genome) SetWeights(weights [][][]float64) error {
	if len(weights) != len(g.layerSizes)-1 {
		return fmt.Errorf("weight layer count mismatch: got=%d want=%d", len(weights), len(g.layerSizes)-1)
	}
	for l := range weights {
		if len(weights[l]) != g.layerSizes[l] {
			return fmt.Errorf("layer %d row count mismatch: got=%d want=%d", l, len(weights[l]), g.layerSizes[l])
		}
		for i := range weights[l] {
			if len(weights[l][i]) != g.layerSizes[l+1] {
				return fmt.Errorf("layer %d row %d size mismatch: got=%d want=%d", l, i, len(weights[l][i]), g.layerSizes[l+1])
			}
			for j, w := range weights[l][i] {
				if math.IsNaN(w) || math.IsInf(w, 0) {
					return fmt.Errorf("layer %d weight [%d][%d] is not finite", l, i, j)
				}
			}
		}
	}

	for l := range weights {
		for i := range weights[l] {
			copy(g.weights[l][i], weights[l][i])
		}
	}
	return nil
}

func lockedOutput(locks []bool, j int) bool {
	return j < len(locks) && locks[j]
}

func sameTopology(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
