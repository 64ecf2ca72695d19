package obstacle

import (
	"math"

	"github.com/Tarliton/collision2d"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
)

// minProbeRadius keeps the cell test a circle test when clearance is zero.
const minProbeRadius = 1e-6

// Rasterize marks every cell whose clearance circle overlaps a shape as
// grid.Blocked and returns the number of cells newly blocked.
// Must only be called between ticks.
func Rasterize(g *grid.Grid, shapes []Shape, clearance float64) int {
	radius := math.Max(clearance, minProbeRadius)
	agent := collision2d.Circle{Pos: collision2d.Vector{X: 0, Y: 0}, R: radius}

	blocked := 0
	for _, s := range shapes {
		if s.Validate() != nil {
			continue
		}
		lo, hi := s.bounds(radius)
		minX, minY := g.WorldToGrid(lo)
		maxX, maxY := g.WorldToGrid(hi)

		for ix := minX; ix <= maxX; ix++ {
			for iy := minY; iy <= maxY; iy++ {
				if g.IsBlocked(ix, iy) {
					continue
				}
				c, err := g.CellAt(ix, iy)
				if err != nil {
					continue
				}
				agent.Pos = collision2d.NewVector(c.Position.X, c.Position.Z)
				if !s.overlaps(agent) {
					continue
				}
				if err := g.SetCost(ix, iy, grid.Blocked); err == nil {
					blocked++
				}
			}
		}
	}
	return blocked
}

// bounds returns the ground-plane bounding box grown by margin.
func (s Shape) bounds(margin float64) (lo, hi r3.Vec) {
	ext := r3.Vec{X: s.Radius, Z: s.Radius}
	if s.Kind == Box {
		ext = s.HalfExtents
	}
	ext = r3.Add(ext, r3.Vec{X: margin, Z: margin})
	return r3.Sub(s.Center, ext), r3.Add(s.Center, ext)
}

// overlaps runs the SAT test between the shape and a circle.
func (s Shape) overlaps(c collision2d.Circle) bool {
	switch s.Kind {
	case Box:
		result, _ := collision2d.TestPolygonCircle(s.polygon(), c)
		return result
	case Circle:
		result, _ := collision2d.TestCircleCircle(collision2d.Circle{Pos: collision2d.NewVector(s.Center.X, s.Center.Z), R: s.Radius}, c)
		return result
	}
	return false
}

// polygon builds the box as a counter-clockwise collision2d polygon.
func (s Shape) polygon() collision2d.Polygon {
	hx, hz := s.HalfExtents.X, s.HalfExtents.Z
	pos := collision2d.NewVector(s.Center.X, s.Center.Z)
	offset := collision2d.NewVector(0.0, 0.0)
	angle := 0.0
	return collision2d.NewPolygon(pos, offset, angle, []float64{
		-hx, -hz,
		hx, -hz,
		hx, hz,
		-hx, hz,
	})
}

// Contains reports whether p lies inside the shape on the ground plane.
func (s Shape) Contains(p r3.Vec) bool {
	return s.overlaps(collision2d.Circle{Pos: collision2d.NewVector(p.X, p.Z), R: minProbeRadius})
}
