// Package scape hosts simulation worlds that drive the evolution core: they
// build sensor vectors, consume action vectors, and report movement, jump,
// and collision events into each agent's reward tracker.
package scape

import (
	"context"
	"fmt"
	"math"

	"evorunner/internal/evo"
	"evorunner/internal/model"
	protoio "evorunner/internal/io"
)

// SensorCount is the corridor's sensor vector width: obstacle distance,
// obstacle-low flag, obstacle-high flag, checkpoint bearing, checkpoint
// distance, grounded flag, and a constant bias term.
const SensorCount = 7

// ActionCount is the corridor's action vector width: forward thrust,
// turn-left, turn-right, jump trigger.
const ActionCount = 4

const (
	actionThrust = iota
	actionTurnLeft
	actionTurnRight
	actionJump
)

const jumpThreshold = 0.5

// Obstacle is a barrier across the corridor at a fixed X. Low obstacles can
// be jumped; high obstacles must be steered around through the open span.
type Obstacle struct {
	X    float64
	High bool
	ZMin float64
	ZMax float64
}

func (o Obstacle) blocks(z float64) bool {
	return z >= o.ZMin && z <= o.ZMax
}

type CorridorConfig struct {
	Name         string
	Length       float64
	HalfWidth    float64
	Obstacles    []Obstacle
	MaxSpeed     float64
	TurnRate     float64 // radians per second at full deflection
	JumpDuration float64 // seconds airborne
	JumpWindow   float64 // obstacle distance that counts as jump context
	SensorRange  float64 // obstacle lookahead for the distance channel
	TickDuration float64 // seconds of simulated time per tick
}

// DefaultCorridor is a course with two jumpable barriers, two high barriers
// with side gaps, and checkpoints marching down the centerline.
func DefaultCorridor() CorridorConfig {
	return CorridorConfig{
		Name:      "corridor",
		Length:    120,
		HalfWidth: 10,
		Obstacles: []Obstacle{
			{X: 22, High: false, ZMin: -10, ZMax: 10},
			{X: 45, High: true, ZMin: -10, ZMax: 4},
			{X: 70, High: false, ZMin: -10, ZMax: 10},
			{X: 95, High: true, ZMin: -4, ZMax: 10},
		},
		MaxSpeed:     8,
		TurnRate:     2.5,
		JumpDuration: 0.6,
		JumpWindow:   4,
		SensorRange:  25,
		TickDuration: 0.1,
	}
}

// CheckpointLine lays checkpoints down the corridor centerline, one every
// spacing units starting at spacing.
func (c CorridorConfig) CheckpointLine(spacing float64) []model.Position {
	if spacing <= 0 {
		spacing = 20
	}
	var out []model.Position
	for x := spacing; x <= c.Length; x += spacing {
		out = append(out, model.Position{X: x})
	}
	return out
}

func (c CorridorConfig) validate() error {
	if c.Length <= 0 || c.HalfWidth <= 0 {
		return fmt.Errorf("corridor dimensions must be > 0: length=%f halfWidth=%f", c.Length, c.HalfWidth)
	}
	if c.MaxSpeed <= 0 || c.TurnRate <= 0 {
		return fmt.Errorf("corridor motion limits must be > 0: maxSpeed=%f turnRate=%f", c.MaxSpeed, c.TurnRate)
	}
	if c.JumpDuration <= 0 || c.JumpWindow <= 0 || c.SensorRange <= 0 {
		return fmt.Errorf("corridor jump/sensor ranges must be > 0")
	}
	if c.TickDuration <= 0 {
		return fmt.Errorf("tick duration must be > 0, got %f", c.TickDuration)
	}
	for i, o := range c.Obstacles {
		if o.X <= 0 || o.X >= c.Length {
			return fmt.Errorf("obstacle %d outside corridor: x=%f", i, o.X)
		}
		if o.ZMin >= o.ZMax {
			return fmt.Errorf("obstacle %d has empty span", i)
		}
	}
	return nil
}

type runnerState struct {
	pos      model.Position
	heading  float64
	airborne float64 // seconds of jump time remaining
	finished bool
}

func (s *runnerState) grounded() bool {
	return s.airborne <= 0
}

// Corridor steps a whole population through the course, one tick at a time,
// and drives the generation controller's clock.
type Corridor struct {
	cfg    CorridorConfig
	ctrl   *evo.Controller
	states []runnerState

	sensors   []protoio.Sensor
	actuators []protoio.Actuator
}

func NewCorridor(cfg CorridorConfig, ctrl *evo.Controller) (*Corridor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ctrl == nil {
		return nil, fmt.Errorf("generation controller is required")
	}
	agents := ctrl.Agents()
	if len(agents) == 0 {
		return nil, fmt.Errorf("controller has no agents")
	}
	if got := agents[0].Genome().InputSize(); got != SensorCount {
		return nil, fmt.Errorf("genome input size mismatch: got=%d want=%d", got, SensorCount)
	}
	if got := agents[0].Genome().OutputSize(); got != ActionCount {
		return nil, fmt.Errorf("genome output size mismatch: got=%d want=%d", got, ActionCount)
	}

	w := &Corridor{cfg: cfg, ctrl: ctrl, states: make([]runnerState, len(agents))}
	w.sensors = make([]protoio.Sensor, len(agents))
	w.actuators = make([]protoio.Actuator, len(agents))
	for i := range agents {
		idx := i
		w.sensors[i] = protoio.SensorFunc{
			SensorName: fmt.Sprintf("%s/sense/%d", cfg.Name, idx),
			ReadFunc: func(context.Context) ([]float64, error) {
				return w.sense(idx), nil
			},
		}
		w.actuators[i] = protoio.ActuatorFunc{
			ActuatorName: fmt.Sprintf("%s/act/%d", cfg.Name, idx),
			WriteFunc: func(_ context.Context, values []float64) error {
				return w.apply(idx, values)
			},
		}
	}
	w.resetStates()
	return w, nil
}

func (w *Corridor) Name() string {
	return w.cfg.Name
}

func (w *Corridor) resetStates() {
	for i := range w.states {
		w.states[i] = runnerState{}
	}
}

// State exposes an agent's physical position for inspection.
func (w *Corridor) State(idx int) (model.Position, float64, error) {
	if idx < 0 || idx >= len(w.states) {
		return model.Position{}, 0, fmt.Errorf("agent index out of range: %d", idx)
	}
	return w.states[idx].pos, w.states[idx].heading, nil
}

// nearestObstacle returns the closest obstacle ahead of x within the given
// range, if any.
func (w *Corridor) nearestObstacle(x, within float64) (Obstacle, float64, bool) {
	best := Obstacle{}
	bestDist := math.MaxFloat64
	found := false
	for _, o := range w.cfg.Obstacles {
		d := o.X - x
		if d < 0 || d > within {
			continue
		}
		if d < bestDist {
			best, bestDist, found = o, d, true
		}
	}
	return best, bestDist, found
}

func (w *Corridor) sense(idx int) []float64 {
	s := &w.states[idx]
	v := make([]float64, SensorCount)

	if o, dist, ok := w.nearestObstacle(s.pos.X, w.cfg.SensorRange); ok && o.blocks(s.pos.Z) {
		v[0] = 1 - dist/w.cfg.SensorRange
		if o.High {
			v[2] = 1
		} else {
			v[1] = 1
		}
	}

	target, ok := w.nextCheckpoint(idx)
	if ok {
		dz := target.Z - s.pos.Z
		dx := target.X - s.pos.X
		bearing := math.Atan2(dz, dx) - s.heading
		for bearing > math.Pi {
			bearing -= 2 * math.Pi
		}
		for bearing < -math.Pi {
			bearing += 2 * math.Pi
		}
		v[3] = bearing / math.Pi
		v[4] = math.Min(s.pos.DistanceTo(target)/w.cfg.Length, 1)
	}

	if s.grounded() {
		v[5] = 1
	}
	v[6] = 1 // bias
	return v
}

func (w *Corridor) nextCheckpoint(idx int) (model.Position, bool) {
	tracker := w.ctrl.Course()
	_, lastOrderly, err := tracker.Progress(idx)
	if err != nil {
		return model.Position{}, false
	}
	next := lastOrderly + 1
	if next >= tracker.Count() {
		return model.Position{}, false
	}
	return tracker.Checkpoint(next), true
}

// apply consumes one action vector: integrates motion, fires jump and
// collision events, and feeds movement telemetry plus checkpoint rewards
// into the agent's trackers.
func (w *Corridor) apply(idx int, actions []float64) error {
	if len(actions) != ActionCount {
		return fmt.Errorf("action size mismatch: got=%d want=%d", len(actions), ActionCount)
	}

	runner := w.ctrl.Agents()[idx]
	if runner.Dead() {
		return nil
	}
	s := &w.states[idx]
	dt := w.cfg.TickDuration
	tracker := runner.Reward()

	if s.airborne > 0 {
		s.airborne -= dt
	}

	if actions[actionJump] > jumpThreshold && s.grounded() {
		low, high := false, false
		if o, _, ok := w.nearestObstacle(s.pos.X, w.cfg.JumpWindow); ok && o.blocks(s.pos.Z) {
			low, high = !o.High, o.High
		}
		tracker.ReportJump(low, high)
		if tracker.Dead() {
			return nil
		}
		s.airborne = w.cfg.JumpDuration
	}

	turn := clamp(actions[actionTurnRight], 0, 1) - clamp(actions[actionTurnLeft], 0, 1)
	headingDelta := turn * w.cfg.TurnRate * dt
	s.heading += headingDelta

	speed := clamp(actions[actionThrust], 0, 1) * w.cfg.MaxSpeed
	prevX := s.pos.X
	s.pos.X += math.Cos(s.heading) * speed * dt
	s.pos.Z += math.Sin(s.heading) * speed * dt

	if w.collide(idx, s, prevX) {
		return nil
	}

	tracker.ReportMove(s.pos, headingDelta, dt)
	if tracker.Dead() {
		return nil
	}

	earned, err := w.ctrl.Course().Check(idx, s.pos)
	if err != nil {
		return err
	}
	tracker.AddCheckpointReward(earned)
	return nil
}

// collide resolves wall and obstacle contact after a motion step. It returns
// true when the collision was fatal.
func (w *Corridor) collide(idx int, s *runnerState, prevX float64) bool {
	tracker := w.ctrl.Agents()[idx].Reward()

	if math.Abs(s.pos.Z) > w.cfg.HalfWidth {
		s.pos.Z = clamp(s.pos.Z, -w.cfg.HalfWidth, w.cfg.HalfWidth)
		if tracker.ReportCollision() {
			return true
		}
	}

	for _, o := range w.cfg.Obstacles {
		if prevX >= o.X || s.pos.X < o.X || !o.blocks(s.pos.Z) {
			continue
		}
		cleared := !o.High && !s.grounded()
		if cleared {
			continue
		}
		s.pos.X = o.X - 0.5
		if tracker.ReportCollision() {
			return true
		}
	}

	if s.pos.X > w.cfg.Length {
		s.pos.X = w.cfg.Length
		s.finished = true
	}
	if s.pos.X < 0 {
		s.pos.X = 0
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
