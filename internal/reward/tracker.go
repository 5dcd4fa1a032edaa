// Package reward turns raw behavioral telemetry into a fitness scalar.
package reward

import (
	"fmt"
	"math"

	"evorunner/internal/model"
)

// Params are the shaping constants for one run. Zero values fall back to the
// defaults below via Normalize.
type Params struct {
	ExplorationBonus    float64 // fitness per unique grid cell visited
	ExplorationCellSize float64 // ground-plane quantization in world units
	LoopPenalty         float64 // standing penalty per consecutive circle
	LoopCheckInterval   float64 // seconds between displacement checks
	LoopMinDisplacement float64 // displacement below this counts as circling
	MaxConsecutiveLoops int     // circles tolerated before the agent is killed
	SpinRatioThreshold  float64 // |heading change| per unit distance before spin penalty
	SpinPenaltyRate     float64 // penalty per second while spinning in place
	MaxCollisions       int     // collision that reaches this count is fatal
}

const (
	correctJumpReward    = 10.0
	incorrectJumpPenalty = 15.0
	collisionPenalty     = 5.0
	loopKillPenalty      = 50.0
	timePenaltyRate      = 0.1
	timePenaltyCap       = 10.0
	distanceWeight       = 0.5
	displacementWeight   = 0.3
	correctJumpWeight    = 15.0
	incorrectJumpWeight  = 8.0
	jumpEfficiencyWeight = 20.0
)

// DeathCause labels the terminal condition recorded when an agent dies.
type DeathCause string

const (
	DeathNone       DeathCause = ""
	DeathCollisions DeathCause = "collisions"
	DeathLooping    DeathCause = "looping"
	DeathExternal   DeathCause = "external"
)

func DefaultParams() Params {
	return Params{
		ExplorationBonus:    5,
		ExplorationCellSize: 5,
		LoopPenalty:         10,
		LoopCheckInterval:   2,
		LoopMinDisplacement: 3,
		MaxConsecutiveLoops: 3,
		SpinRatioThreshold:  10,
		SpinPenaltyRate:     1,
		MaxCollisions:       5,
	}
}

func (p Params) Normalize() Params {
	def := DefaultParams()
	if p.ExplorationBonus == 0 {
		p.ExplorationBonus = def.ExplorationBonus
	}
	if p.ExplorationCellSize <= 0 {
		p.ExplorationCellSize = def.ExplorationCellSize
	}
	if p.LoopPenalty == 0 {
		p.LoopPenalty = def.LoopPenalty
	}
	if p.LoopCheckInterval <= 0 {
		p.LoopCheckInterval = def.LoopCheckInterval
	}
	if p.LoopMinDisplacement <= 0 {
		p.LoopMinDisplacement = def.LoopMinDisplacement
	}
	if p.MaxConsecutiveLoops <= 0 {
		p.MaxConsecutiveLoops = def.MaxConsecutiveLoops
	}
	if p.SpinRatioThreshold <= 0 {
		p.SpinRatioThreshold = def.SpinRatioThreshold
	}
	if p.SpinPenaltyRate == 0 {
		p.SpinPenaltyRate = def.SpinPenaltyRate
	}
	if p.MaxCollisions <= 0 {
		p.MaxCollisions = def.MaxCollisions
	}
	return p
}

type cell struct {
	x int
	z int
}

// Telemetry is a read-only snapshot of the running counters.
type Telemetry struct {
	TotalDistance      float64
	DistanceFromStart  float64
	TimeAlive          float64
	CorrectJumps       int
	IncorrectJumps     int
	Collisions         int
	UniqueCells        int
	ConsecutiveCircles int
	CheckpointReward   float64
	Fitness            float64
	Dead               bool
	Cause              DeathCause
}

// Tracker accumulates one agent's telemetry and recomputes its fitness every
// tick. Once the agent dies all counters freeze until Reset.
type Tracker struct {
	params Params

	start    model.Position
	last     model.Position
	loopMark model.Position

	totalDistance      float64
	distanceFromStart  float64
	timeAlive          float64
	correctJumps       int
	incorrectJumps     int
	collisions         int
	consecutiveCircles int
	checkpointReward   float64
	eventAdjustment    float64
	spinPenalty        float64
	headingAccum       float64
	loopTimer          float64
	visited            map[cell]struct{}

	fitness float64
	dead    bool
	cause   DeathCause
}

func NewTracker(params Params, start model.Position) *Tracker {
	t := &Tracker{params: params.Normalize()}
	t.Reset(start)
	return t
}

// Reset clears all telemetry for a new generation.
func (t *Tracker) Reset(start model.Position) {
	t.start = start
	t.last = start
	t.loopMark = start
	t.totalDistance = 0
	t.distanceFromStart = 0
	t.timeAlive = 0
	t.correctJumps = 0
	t.incorrectJumps = 0
	t.collisions = 0
	t.consecutiveCircles = 0
	t.checkpointReward = 0
	t.eventAdjustment = 0
	t.spinPenalty = 0
	t.headingAccum = 0
	t.loopTimer = 0
	t.visited = make(map[cell]struct{})
	t.fitness = 0
	t.dead = false
	t.cause = DeathNone
}

// ReportMove feeds one tick of movement telemetry: the new position, the
// absolute heading change over the tick, and the tick duration.
func (t *Tracker) ReportMove(pos model.Position, headingDelta, dt float64) {
	if t.dead || dt <= 0 {
		return
	}

	t.timeAlive += dt
	t.totalDistance += t.last.DistanceTo(pos)
	t.distanceFromStart = t.start.DistanceTo(pos)
	t.headingAccum += math.Abs(headingDelta)
	t.last = pos

	t.markCell(pos)
	t.checkLoop(pos, dt)
	if !t.dead {
		t.checkSpin(dt)
	}
	t.recompute()
}

// ReportJump classifies a jump against the obstacle context at the moment it
// happened. A low-but-not-high obstacle makes the jump correct; anything else
// is incorrect.
func (t *Tracker) ReportJump(lowObstacle, highObstacle bool) {
	if t.dead {
		return
	}
	if lowObstacle && !highObstacle {
		t.correctJumps++
		t.eventAdjustment += correctJumpReward
	} else {
		t.incorrectJumps++
		t.eventAdjustment -= incorrectJumpPenalty
	}
	t.recompute()
}

// ReportCollision records one collision. It returns true when the collision
// budget is exhausted and the agent has been killed.
func (t *Tracker) ReportCollision() bool {
	if t.dead {
		return false
	}
	t.collisions++
	if t.collisions >= t.params.MaxCollisions {
		t.kill(DeathCollisions)
		return true
	}
	t.eventAdjustment -= collisionPenalty
	t.recompute()
	return false
}

// AddCheckpointReward folds newly earned checkpoint reward into the running
// total. Earned reward is retained for the rest of the generation.
func (t *Tracker) AddCheckpointReward(r float64) {
	if t.dead || r == 0 {
		return
	}
	t.checkpointReward += r
	t.recompute()
}

// Kill marks the agent dead for a reason outside the tracker's own rules.
func (t *Tracker) Kill() {
	if t.dead {
		return
	}
	t.kill(DeathExternal)
}

func (t *Tracker) Fitness() float64 {
	return t.fitness
}

func (t *Tracker) Dead() bool {
	return t.dead
}

func (t *Tracker) Snapshot() Telemetry {
	return Telemetry{
		TotalDistance:      t.totalDistance,
		DistanceFromStart:  t.distanceFromStart,
		TimeAlive:          t.timeAlive,
		CorrectJumps:       t.correctJumps,
		IncorrectJumps:     t.incorrectJumps,
		Collisions:         t.collisions,
		UniqueCells:        len(t.visited),
		ConsecutiveCircles: t.consecutiveCircles,
		CheckpointReward:   t.checkpointReward,
		Fitness:            t.fitness,
		Dead:               t.dead,
		Cause:              t.cause,
	}
}

func (t *Tracker) String() string {
	return fmt.Sprintf("fitness=%.2f dist=%.2f cells=%d circles=%d dead=%v",
		t.fitness, t.totalDistance, len(t.visited), t.consecutiveCircles, t.dead)
}

func (t *Tracker) markCell(pos model.Position) {
	c := cell{
		x: int(math.Floor(pos.X / t.params.ExplorationCellSize)),
		z: int(math.Floor(pos.Z / t.params.ExplorationCellSize)),
	}
	t.visited[c] = struct{}{}
}

// checkLoop compares displacement against the last mark on a fixed interval.
// Escalation lives in the repetitive penalty term; the third consecutive
// circle is terminal.
func (t *Tracker) checkLoop(pos model.Position, dt float64) {
	t.loopTimer += dt
	if t.loopTimer < t.params.LoopCheckInterval {
		return
	}
	t.loopTimer = 0

	if t.loopMark.DistanceTo(pos) < t.params.LoopMinDisplacement {
		t.consecutiveCircles++
		if t.consecutiveCircles >= t.params.MaxConsecutiveLoops {
			t.eventAdjustment -= loopKillPenalty
			t.kill(DeathLooping)
			return
		}
	} else {
		t.consecutiveCircles = 0
	}
	t.loopMark = pos
}

// checkSpin catches spinning in place that the displacement check misses:
// rotation accumulated far faster than distance covered.
func (t *Tracker) checkSpin(dt float64) {
	if t.totalDistance <= 0 {
		return
	}
	if t.headingAccum/t.totalDistance > t.params.SpinRatioThreshold {
		t.spinPenalty += t.params.SpinPenaltyRate * dt
	}
}

func (t *Tracker) kill(cause DeathCause) {
	t.recompute()
	t.dead = true
	t.cause = cause
}

func (t *Tracker) recompute() {
	jumpEfficiency := 0.0
	if total := t.correctJumps + t.incorrectJumps; total > 0 {
		jumpEfficiency = float64(t.correctJumps) / float64(total)
	}

	base := distanceWeight*t.totalDistance +
		t.params.ExplorationBonus*float64(len(t.visited)) +
		displacementWeight*t.distanceFromStart +
		correctJumpWeight*float64(t.correctJumps) -
		incorrectJumpWeight*float64(t.incorrectJumps) +
		jumpEfficiencyWeight*jumpEfficiency +
		t.checkpointReward +
		t.eventAdjustment -
		t.spinPenalty

	timePenalty := math.Min(timePenaltyRate*t.timeAlive, timePenaltyCap)
	repetitivePenalty := float64(t.consecutiveCircles) * t.params.LoopPenalty

	t.fitness = math.Max(0, base-timePenalty-repetitivePenalty)
}
