// Package steering moves a single agent along a grid path with seek,
// arrival deceleration, obstacle avoidance and smoothed facing.
package steering

import (
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
)

// State is the controller's path-following state.
type State uint8

const (
	Idle State = iota
	Following
	Arrived
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Following:
		return "following"
	case Arrived:
		return "arrived"
	}
	return "unknown"
}

var up = r3.Vec{Y: 1}

// ArrivedFunc is called once when an agent reaches its final target.
type ArrivedFunc func(a *Agent)

// PathChangedFunc receives the cells that joined and left the active path.
type PathChangedFunc func(a *Agent, entered, exited []*grid.Cell)

// Agent is the kinematic state and path-following controller of one agent.
// It is driven by a single goroutine.
type Agent struct {
	params Params
	prober Prober

	pos      r3.Vec
	velocity r3.Vec
	facing   r3.Vec // unit, ground plane, points opposite the movement direction
	steering r3.Vec // velocity change applied on the last tick

	state          State
	path           []*grid.Cell
	index          int // next waypoint to follow
	target         r3.Vec
	lastTarget     r3.Vec
	targetDistance float64

	pathCells mapset.Set

	onArrived     []ArrivedFunc
	onPathChanged []PathChangedFunc
}

// NewAgent creates an idle agent at pos, projected onto the ground plane.
func NewAgent(pos r3.Vec, params Params) *Agent {
	pos.Y = 0
	return &Agent{
		params:    params,
		pos:       pos,
		facing:    r3.Vec{Z: 1},
		target:    pos,
		pathCells: mapset.NewThreadUnsafeSet(),
	}
}

// OnArrived registers fn to run on every arrival. Callbacks may call SetPath.
func (a *Agent) OnArrived(fn ArrivedFunc) {
	a.onArrived = append(a.onArrived, fn)
}

// OnPathChanged registers fn to run when the set of cells on the active
// path changes.
func (a *Agent) OnPathChanged(fn PathChangedFunc) {
	a.onPathChanged = append(a.onPathChanged, fn)
}

// SetProber sets the obstacle probe used for avoidance. nil disables it.
func (a *Agent) SetProber(p Prober) { a.prober = p }

// SetParams replaces the locomotion parameters.
func (a *Agent) SetParams(p Params) { a.params = p }

// Params returns the locomotion parameters.
func (a *Agent) Params() Params { return a.params }

// SetPosition teleports the agent. Velocity is kept.
func (a *Agent) SetPosition(pos r3.Vec) {
	pos.Y = 0
	a.pos = pos
}

// SetPath starts following path from its second waypoint. Empty paths are
// ignored. A single-element path targets its only cell, so the agent
// arrives on the next update.
func (a *Agent) SetPath(path []*grid.Cell) {
	if len(path) == 0 {
		return
	}

	a.path = path
	a.index = 1
	a.state = Following
	a.lastTarget = path[len(path)-1].Position
	if len(path) == 1 {
		a.setTarget(path[0].Position)
	} else {
		a.followNextTarget()
	}
	a.replacePathCells(path)
}

// SetTarget steers straight at point, discarding any path.
func (a *Agent) SetTarget(point r3.Vec) {
	point.Y = 0
	a.path = nil
	a.index = 0
	a.state = Following
	a.lastTarget = point
	a.setTarget(point)
	a.replacePathCells(nil)
}

// Stop halts the agent in place and drops its path without firing arrival
// callbacks.
func (a *Agent) Stop() {
	a.path = nil
	a.index = 0
	a.state = Idle
	a.velocity = r3.Vec{}
	a.target = a.pos
	a.lastTarget = a.pos
	a.targetDistance = 0
	a.replacePathCells(nil)
}

func (a *Agent) setTarget(t r3.Vec) {
	a.target = t
	a.targetDistance = r3.Norm(r3.Sub(t, a.pos))
}

// followNextTarget moves the steering target to the next waypoint, if any.
func (a *Agent) followNextTarget() {
	if a.index >= len(a.path) {
		return
	}
	a.setTarget(a.path[a.index].Position)
	a.index++
}

// onFinalTarget reports whether the current target is the end of the path.
func (a *Agent) onFinalTarget() bool {
	return a.index >= len(a.path)
}

// Update advances the agent by dt seconds. It does nothing unless the agent
// is following a path or target.
func (a *Agent) Update(dt float64) {
	a.steering = r3.Vec{}
	if a.state != Following {
		return
	}

	if a.distanceTo(a.target) < a.params.ArrivalEpsilon {
		if a.onFinalTarget() {
			a.arrive()
			return
		}
		a.followNextTarget()
	}

	desired := r3.Sub(a.target, a.pos)
	if n := r3.Norm(desired); n > 0 {
		desired = r3.Scale(a.params.MaxSpeed/n, desired)
	}

	// Decelerate on approach to the final destination only
	if d := a.distanceTo(a.lastTarget); d < a.params.SlowRadius {
		desired = r3.Scale(d/a.params.SlowRadius, desired)
	}

	force := clampLength(r3.Add(r3.Sub(desired, a.velocity), a.avoidance()), a.params.MaxForce)
	prev := a.velocity
	a.velocity = clampLength(r3.Add(a.velocity, force), a.params.MaxSpeed)
	a.steering = r3.Sub(a.velocity, prev)
	a.pos = r3.Add(a.pos, r3.Scale(dt, a.velocity))

	a.turn()

	if a.distanceTo(a.target) < a.params.TargetRadius {
		a.followNextTarget()
	}
}

func (a *Agent) arrive() {
	a.state = Arrived
	a.velocity = r3.Vec{}
	a.replacePathCells(nil)

	// State is settled before callbacks so they can SetPath.
	for _, fn := range a.onArrived {
		fn(a)
	}
}

// turn blends facing toward the inverse of the movement direction.
func (a *Agent) turn() {
	move := a.velocity
	move.Y = 0
	if r3.Norm(move) == 0 {
		move = r3.Sub(a.target, a.pos)
		move.Y = 0
	}
	if r3.Norm(move) == 0 {
		return
	}
	goal := r3.Scale(-1, r3.Unit(move))

	diff := r3.Sub(goal, a.facing)
	if r3.Norm(diff) < a.params.TurnRate {
		return
	}

	var next r3.Vec
	if r3.Dot(goal, a.facing) <= -1+1e-9 {
		// Exactly reversed: blending along the same line never turns.
		side := r3.Vec{X: -a.facing.Z, Z: a.facing.X}
		next = r3.Add(a.facing, r3.Scale(a.params.TurnRate, side))
	} else {
		next = r3.Add(a.facing, r3.Scale(a.params.TurnRate, r3.Unit(diff)))
	}
	next.Y = 0
	if r3.Norm(next) == 0 {
		return
	}
	a.facing = r3.Unit(next)
}

func (a *Agent) distanceTo(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, a.pos))
}

func clampLength(v r3.Vec, max float64) r3.Vec {
	if n := r3.Norm(v); n > max {
		return r3.Scale(max/n, v)
	}
	return v
}

// replacePathCells swaps the active path cell set and notifies listeners of
// the difference.
func (a *Agent) replacePathCells(path []*grid.Cell) {
	next := mapset.NewThreadUnsafeSet()
	for _, c := range path {
		next.Add(c)
	}

	entered := cellSlice(next.Difference(a.pathCells))
	exited := cellSlice(a.pathCells.Difference(next))
	a.pathCells = next

	if len(entered) == 0 && len(exited) == 0 {
		return
	}
	for _, fn := range a.onPathChanged {
		fn(a, entered, exited)
	}
}

func cellSlice(s mapset.Set) []*grid.Cell {
	items := s.ToSlice()
	cells := make([]*grid.Cell, 0, len(items))
	for _, it := range items {
		cells = append(cells, it.(*grid.Cell))
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].IX != cells[j].IX {
			return cells[i].IX < cells[j].IX
		}
		return cells[i].IY < cells[j].IY
	})
	return cells
}

// Position returns the agent's ground-plane position.
func (a *Agent) Position() r3.Vec { return a.pos }

// Velocity returns the agent's velocity.
func (a *Agent) Velocity() r3.Vec { return a.velocity }

// Steering returns the velocity change applied on the last update.
func (a *Agent) Steering() r3.Vec { return a.steering }

// Facing returns the unit facing vector. It points opposite the direction
// of travel.
func (a *Agent) Facing() r3.Vec { return a.facing }

// Heading returns the yaw in radians that maps +Z onto Facing.
func (a *Agent) Heading() float64 {
	return math.Atan2(a.facing.X, a.facing.Z)
}

// Orientation returns the agent's rotation about +Y.
func (a *Agent) Orientation() r3.Rotation {
	return r3.NewRotation(a.Heading(), up)
}

// AnimationIntent returns |velocity| / MaxSpeed in [0, 1].
func (a *Agent) AnimationIntent() float64 {
	if a.params.MaxSpeed <= 0 {
		return 0
	}
	return math.Min(1, r3.Norm(a.velocity)/a.params.MaxSpeed)
}

func (a *Agent) State() State            { return a.state }
func (a *Agent) Target() r3.Vec          { return a.target }
func (a *Agent) LastTarget() r3.Vec      { return a.lastTarget }
func (a *Agent) TargetDistance() float64 { return a.targetDistance }
func (a *Agent) Path() []*grid.Cell      { return a.path }

// WaypointIndex returns the index of the next waypoint to be targeted.
func (a *Agent) WaypointIndex() int { return a.index }

// Remaining returns the number of waypoints not yet targeted.
func (a *Agent) Remaining() int {
	if a.index >= len(a.path) {
		return 0
	}
	return len(a.path) - a.index
}
