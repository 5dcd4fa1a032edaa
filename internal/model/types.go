package model

import "math"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Genome is the serialization surface of a policy network: the fixed layer
// topology plus the full weight tensor, indexed [layer][from][to].
type Genome struct {
	VersionedRecord
	ID         string        `json:"id"`
	LayerSizes []int         `json:"layer_sizes"`
	Weights    [][][]float64 `json:"weights"`
}

type Population struct {
	VersionedRecord
	ID         string   `json:"id"`
	GenomeIDs  []string `json:"genome_ids"`
	Generation int      `json:"generation"`
}

// GenerationDiagnostics summarizes one generation's fitness distribution.
type GenerationDiagnostics struct {
	Generation    int     `json:"generation"`
	BestFitness   float64 `json:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	MedianFitness float64 `json:"median_fitness"`
	AliveCount    int     `json:"alive_count"`
	TimedOut      bool    `json:"timed_out"`
	Forced        bool    `json:"forced"`
}

type TopGenomeRecord struct {
	Rank    int     `json:"rank"`
	Fitness float64 `json:"fitness"`
	Genome  Genome  `json:"genome"`
}

// CourseSummary tracks the best observed fitness on a named course.
type CourseSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BestFitness float64 `json:"best_fitness"`
}

// Position is a point on a course's ground plane. Y is vertical and only
// meaningful while an agent is airborne.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
