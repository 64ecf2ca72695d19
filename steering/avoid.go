package steering

import "gonum.org/v1/gonum/spatial/r3"

// Hit is the nearest obstacle intersected by a probe.
type Hit struct {
	Point    r3.Vec  // where the probe struck
	Obstacle r3.Vec  // centre of the struck obstacle
	Distance float64 // from the probe origin
}

// Prober answers obstacle queries along a ray. Implementations must not
// mutate simulation state.
type Prober interface {
	Probe(origin, dir r3.Vec, maxDist float64) (Hit, bool)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(origin, dir r3.Vec, maxDist float64) (Hit, bool)

// Probe calls f.
func (f ProberFunc) Probe(origin, dir r3.Vec, maxDist float64) (Hit, bool) {
	return f(origin, dir, maxDist)
}

// avoidance probes ahead of the agent along its movement direction and
// returns a ground-plane push away from the first obstacle found.
func (a *Agent) avoidance() r3.Vec {
	if a.prober == nil || a.params.ProbeDistance <= 0 || a.params.AvoidanceStrength == 0 {
		return r3.Vec{}
	}

	dir := r3.Scale(-1, a.facing)
	origin := r3.Add(a.pos, r3.Vec{Y: a.params.ProbeHeight})

	hit, ok := a.prober.Probe(origin, dir, a.params.ProbeDistance)
	if !ok {
		return r3.Vec{}
	}

	ahead := r3.Add(origin, r3.Scale(a.params.ProbeDistance, dir))
	away := r3.Sub(ahead, hit.Obstacle)
	if r3.Norm(away) == 0 {
		return r3.Vec{}
	}
	avoid := r3.Scale(a.params.AvoidanceStrength, r3.Unit(away))
	avoid.Y = 0
	return avoid
}
