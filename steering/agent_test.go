package steering

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
	"github.com/pthm-cable/stride/pathfind"
)

const (
	testDT  = 1.0 / 60.0
	floatEp = 1e-9
)

func openGrid(t *testing.T, size int) *grid.Grid {
	t.Helper()
	g, err := grid.Build(size, 1)
	if err != nil {
		t.Fatalf("grid.Build: %v", err)
	}
	return g
}

func cell(t *testing.T, g *grid.Grid, ix, iy int) *grid.Cell {
	t.Helper()
	c, err := g.CellAt(ix, iy)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// runUntil updates the agent until done returns true or maxTicks elapse.
// Returns the number of ticks run.
func runUntil(a *Agent, maxTicks int, done func() bool) int {
	for i := 0; i < maxTicks; i++ {
		if done() {
			return i
		}
		a.Update(testDT)
	}
	return maxTicks
}

func TestNewAgentIsIdle(t *testing.T) {
	a := NewAgent(r3.Vec{X: 1, Y: 5, Z: 2}, DefaultParams())

	if a.State() != Idle {
		t.Errorf("state = %v, want idle", a.State())
	}
	if a.Position().Y != 0 {
		t.Errorf("position should be projected to the ground, got %v", a.Position())
	}
	before := a.Position()
	a.Update(testDT)
	if a.Position() != before || a.Velocity() != (r3.Vec{}) {
		t.Error("idle agent should not move")
	}
}

func TestSetPathIgnoresEmpty(t *testing.T) {
	a := NewAgent(r3.Vec{}, DefaultParams())
	a.SetPath(nil)
	a.SetPath([]*grid.Cell{})

	if a.State() != Idle {
		t.Errorf("empty path changed state to %v", a.State())
	}
	if a.Path() != nil {
		t.Error("empty path should not be stored")
	}
}

// TestSetPathTargetsSecondWaypoint verifies index 0 is treated as occupied.
func TestSetPathTargetsSecondWaypoint(t *testing.T) {
	g := openGrid(t, 5)
	path := pathfind.AStar(cell(t, g, 0, 0), cell(t, g, 3, 0), g)
	a := NewAgent(path[0].Position, DefaultParams())

	a.SetPath(path)

	if a.State() != Following {
		t.Fatalf("state = %v, want following", a.State())
	}
	if a.Target() != path[1].Position {
		t.Errorf("target = %v, want waypoint 1 %v", a.Target(), path[1].Position)
	}
	if a.LastTarget() != path[len(path)-1].Position {
		t.Errorf("last target = %v, want %v", a.LastTarget(), path[len(path)-1].Position)
	}
	if a.WaypointIndex() != 2 {
		t.Errorf("waypoint index = %d, want 2", a.WaypointIndex())
	}
	if math.Abs(a.TargetDistance()-1) > floatEp {
		t.Errorf("target distance = %v, want 1", a.TargetDistance())
	}
}

// TestStraightPathArrivesOnce verifies the agent reaches the end of a straight
// path and fires exactly one arrival callback.
func TestStraightPathArrivesOnce(t *testing.T) {
	g := openGrid(t, 8)
	path := pathfind.AStar(cell(t, g, 0, 3), cell(t, g, 7, 3), g)
	a := NewAgent(path[0].Position, DefaultParams())

	arrivals := 0
	a.OnArrived(func(got *Agent) {
		if got != a {
			t.Error("callback received a different agent")
		}
		arrivals++
	})
	a.SetPath(path)

	ticks := runUntil(a, 2000, func() bool { return a.State() == Arrived })
	if a.State() != Arrived {
		t.Fatalf("agent did not arrive after %d ticks, at %v", ticks, a.Position())
	}

	// Keep ticking: arrival must not repeat.
	for i := 0; i < 200; i++ {
		a.Update(testDT)
	}
	if arrivals != 1 {
		t.Errorf("arrival callbacks = %d, want 1", arrivals)
	}

	goal := path[len(path)-1].Position
	if d := r3.Norm(r3.Sub(a.Position(), goal)); d >= a.Params().TargetRadius {
		t.Errorf("final distance %v not within target radius", d)
	}
	if a.Velocity() != (r3.Vec{}) {
		t.Errorf("velocity after arrival = %v, want zero", a.Velocity())
	}
	if a.AnimationIntent() != 0 {
		t.Errorf("animation intent after arrival = %v, want 0", a.AnimationIntent())
	}
	t.Logf("arrived after %d ticks", ticks)
}

// TestSetTargetReachesPoint verifies direct steering from the origin to (0,0,2).
func TestSetTargetReachesPoint(t *testing.T) {
	p := DefaultParams()
	a := NewAgent(r3.Vec{}, p)
	target := r3.Vec{Z: 2}

	a.SetTarget(target)
	if a.State() != Following {
		t.Fatalf("state = %v, want following", a.State())
	}

	// Bounded by a multiple of the straight-line travel time plus ramp-up.
	bound := 4*int(math.Ceil(2/(p.MaxSpeed*testDT))) + 60
	ticks := runUntil(a, bound, func() bool {
		return r3.Norm(r3.Sub(a.Position(), target)) < p.TargetRadius
	})
	if ticks >= bound {
		t.Fatalf("did not reach target within %d ticks, at %v", bound, a.Position())
	}

	runUntil(a, bound, func() bool { return a.State() == Arrived })
	if a.State() != Arrived {
		t.Errorf("state = %v, want arrived", a.State())
	}
}

func TestSinglePathArrivesNextTick(t *testing.T) {
	g := openGrid(t, 3)
	c := cell(t, g, 1, 1)
	path := pathfind.AStar(c, c, g)
	a := NewAgent(c.Position, DefaultParams())

	arrived := false
	a.OnArrived(func(*Agent) { arrived = true })
	a.SetPath(path)
	a.Update(testDT)

	if !arrived || a.State() != Arrived {
		t.Errorf("single-element path should arrive on the next tick (state %v)", a.State())
	}
}

// TestArrivalCallbackCanReplan verifies SetPath from inside OnArrived restarts following.
func TestArrivalCallbackCanReplan(t *testing.T) {
	g := openGrid(t, 6)
	first := pathfind.AStar(cell(t, g, 0, 0), cell(t, g, 2, 0), g)
	second := pathfind.AStar(cell(t, g, 2, 0), cell(t, g, 2, 4), g)
	a := NewAgent(first[0].Position, DefaultParams())

	arrivals := 0
	a.OnArrived(func(a *Agent) {
		arrivals++
		if arrivals == 1 {
			a.SetPath(second)
		}
	})
	a.SetPath(first)

	runUntil(a, 3000, func() bool { return arrivals >= 2 })
	if arrivals != 2 {
		t.Fatalf("arrivals = %d, want 2", arrivals)
	}
	goal := second[len(second)-1].Position
	if d := r3.Norm(r3.Sub(a.Position(), goal)); d >= a.Params().ArrivalEpsilon {
		t.Errorf("agent %v from second goal", d)
	}
}

// TestSpeedAndForceLimits checks |velocity| <= MaxSpeed and |steering| <= MaxForce
// on every tick across random paths, with avoidance pushing on every probe.
func TestSpeedAndForceLimits(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := openGrid(t, 10)
	p := DefaultParams()
	p.AvoidanceStrength = 2

	always := ProberFunc(func(origin, dir r3.Vec, maxDist float64) (Hit, bool) {
		obstacle := r3.Add(origin, r3.Vec{X: rng.Float64() - 0.5, Z: rng.Float64() - 0.5})
		return Hit{Point: obstacle, Obstacle: obstacle, Distance: 0.5}, true
	})

	for trial := 0; trial < 10; trial++ {
		start := cell(t, g, rng.Intn(10), rng.Intn(10))
		goal := cell(t, g, rng.Intn(10), rng.Intn(10))
		a := NewAgent(start.Position, p)
		if trial%2 == 0 {
			a.SetProber(always)
		}
		a.SetPath(pathfind.AStar(start, goal, g))

		for tick := 0; tick < 600; tick++ {
			dt := testDT * (0.5 + rng.Float64())
			a.Update(dt)
			if v := r3.Norm(a.Velocity()); v > p.MaxSpeed+floatEp {
				t.Fatalf("trial %d tick %d: |velocity| = %v > %v", trial, tick, v, p.MaxSpeed)
			}
			if s := r3.Norm(a.Steering()); s > p.MaxForce+floatEp {
				t.Fatalf("trial %d tick %d: |steering| = %v > %v", trial, tick, s, p.MaxForce)
			}
			if ai := a.AnimationIntent(); ai < 0 || ai > 1 {
				t.Fatalf("animation intent %v outside [0,1]", ai)
			}
			if a.Position().Y != 0 {
				t.Fatalf("agent left the ground plane: %v", a.Position())
			}
		}
	}
}

// TestFacingTurnsGradually verifies facing stays unit length and never
// snaps much more than TurnRate per tick. Renormalising after the blend can
// stretch the chord slightly past TurnRate.
func TestFacingTurnsGradually(t *testing.T) {
	p := DefaultParams()
	a := NewAgent(r3.Vec{}, p)
	a.SetTarget(r3.Vec{X: 5})

	for i := 0; i < 120; i++ {
		before := a.Facing()
		a.Update(testDT)
		after := a.Facing()

		if n := r3.Norm(after); math.Abs(n-1) > 1e-9 {
			t.Fatalf("tick %d: |facing| = %v", i, n)
		}
		if step := r3.Norm(r3.Sub(after, before)); step > p.TurnRate*1.01 {
			t.Fatalf("tick %d: facing moved %v > turn rate", i, step)
		}
	}

	// Travelling +X, facing settles near -X.
	if r3.Dot(a.Facing(), r3.Vec{X: -1}) < 0.99 {
		t.Errorf("facing %v did not settle opposite the direction of travel", a.Facing())
	}
	rotated := a.Orientation().Rotate(r3.Vec{Z: 1})
	if r3.Norm(r3.Sub(rotated, a.Facing())) > 1e-9 {
		t.Errorf("orientation maps +Z to %v, want facing %v", rotated, a.Facing())
	}
}

// TestAvoidancePushesAway verifies a probe hit deflects the agent sideways.
func TestAvoidancePushesAway(t *testing.T) {
	p := DefaultParams()
	var gotOrigin r3.Vec
	var gotDist float64

	rightAhead := ProberFunc(func(origin, dir r3.Vec, maxDist float64) (Hit, bool) {
		gotOrigin, gotDist = origin, maxDist
		obstacle := r3.Add(r3.Add(origin, dir), r3.Vec{X: 0.5})
		return Hit{Point: obstacle, Obstacle: obstacle, Distance: 1}, true
	})

	control := NewAgent(r3.Vec{}, p)
	avoider := NewAgent(r3.Vec{}, p)
	avoider.SetProber(rightAhead)

	for _, a := range []*Agent{control, avoider} {
		a.SetTarget(r3.Vec{Z: 10})
		for i := 0; i < 60; i++ {
			a.Update(testDT)
		}
	}

	if math.Abs(control.Position().X) > floatEp {
		t.Errorf("control agent drifted sideways to %v", control.Position())
	}
	if avoider.Position().X >= -1e-3 {
		t.Errorf("avoiding agent at %v, expected a push toward -X", avoider.Position())
	}
	if gotOrigin.Y != p.ProbeHeight {
		t.Errorf("probe origin height %v, want %v", gotOrigin.Y, p.ProbeHeight)
	}
	if gotDist != p.ProbeDistance {
		t.Errorf("probe distance %v, want %v", gotDist, p.ProbeDistance)
	}
}

func TestNoHitMeansNoAvoidance(t *testing.T) {
	p := DefaultParams()
	miss := ProberFunc(func(r3.Vec, r3.Vec, float64) (Hit, bool) { return Hit{}, false })

	a := NewAgent(r3.Vec{}, p)
	b := NewAgent(r3.Vec{}, p)
	b.SetProber(miss)
	for _, ag := range []*Agent{a, b} {
		ag.SetTarget(r3.Vec{X: 3, Z: 1})
		for i := 0; i < 30; i++ {
			ag.Update(testDT)
		}
	}
	if a.Position() != b.Position() {
		t.Errorf("missed probe changed trajectory: %v vs %v", a.Position(), b.Position())
	}
}

// TestPathChangedEvents verifies entered/exited cell sets across re-plans.
func TestPathChangedEvents(t *testing.T) {
	g := openGrid(t, 5)
	a := NewAgent(r3.Vec{}, DefaultParams())

	var entered, exited []*grid.Cell
	calls := 0
	a.OnPathChanged(func(_ *Agent, in, out []*grid.Cell) {
		calls++
		entered, exited = in, out
	})

	first := pathfind.AStar(cell(t, g, 0, 0), cell(t, g, 2, 0), g)
	a.SetPath(first)
	if calls != 1 || len(entered) != 3 || len(exited) != 0 {
		t.Fatalf("first path: calls=%d entered=%v exited=%v", calls, entered, exited)
	}

	// Overlaps the first path at (0,0).
	second := pathfind.AStar(cell(t, g, 0, 0), cell(t, g, 0, 2), g)
	a.SetPath(second)
	if len(entered) != 2 || len(exited) != 2 {
		t.Errorf("second path: entered=%v exited=%v", entered, exited)
	}
	for _, c := range exited {
		if c.IY != 0 || c.IX == 0 {
			t.Errorf("unexpected exited cell %v", c)
		}
	}

	// Same set again: no event.
	a.SetPath(second)
	if calls != 2 {
		t.Errorf("re-setting an identical path emitted an event (calls=%d)", calls)
	}

	a.SetTarget(r3.Vec{X: 1})
	if len(exited) != 3 || len(entered) != 0 {
		t.Errorf("SetTarget should clear path cells: entered=%v exited=%v", entered, exited)
	}
}

func TestArrivalClearsPathCells(t *testing.T) {
	g := openGrid(t, 4)
	path := pathfind.AStar(cell(t, g, 0, 0), cell(t, g, 1, 0), g)
	a := NewAgent(path[0].Position, DefaultParams())

	var exited []*grid.Cell
	a.OnPathChanged(func(_ *Agent, _, out []*grid.Cell) { exited = out })
	a.SetPath(path)

	runUntil(a, 1000, func() bool { return a.State() == Arrived })
	if len(exited) != 2 {
		t.Errorf("arrival should release both path cells, got %v", exited)
	}
}

func TestStopHaltsWithoutArrival(t *testing.T) {
	g := openGrid(t, 6)
	path := pathfind.AStar(cell(t, g, 0, 0), cell(t, g, 5, 0), g)
	a := NewAgent(path[0].Position, DefaultParams())

	arrivals := 0
	var exited []*grid.Cell
	a.OnArrived(func(*Agent) { arrivals++ })
	a.OnPathChanged(func(_ *Agent, _, out []*grid.Cell) { exited = out })
	a.SetPath(path)
	runUntil(a, 30, func() bool { return false })

	a.Stop()
	if a.State() != Idle {
		t.Errorf("state = %v, want idle", a.State())
	}
	if a.Velocity() != (r3.Vec{}) || a.Path() != nil {
		t.Errorf("stop left velocity %v path %v", a.Velocity(), a.Path())
	}
	if len(exited) != len(path) {
		t.Errorf("stop released %d cells, want %d", len(exited), len(path))
	}

	pos := a.Position()
	runUntil(a, 30, func() bool { return false })
	if a.Position() != pos || arrivals != 0 {
		t.Errorf("stopped agent moved to %v or arrived %d times", a.Position(), arrivals)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("default params invalid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"zero speed", func(p *Params) { p.MaxSpeed = 0 }},
		{"zero force", func(p *Params) { p.MaxForce = 0 }},
		{"radius below epsilon", func(p *Params) { p.TargetRadius = 0.01 }},
		{"negative avoidance", func(p *Params) { p.AvoidanceStrength = -1 }},
		{"zero turn rate", func(p *Params) { p.TurnRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
