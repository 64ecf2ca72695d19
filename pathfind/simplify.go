package pathfind

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
)

// Simplify removes waypoints that can be skipped by walking straight from the
// previous kept waypoint to the next one. The first and last cells are always
// kept. Cell costs are ignored; only blocked cells break line of sight.
func Simplify(g *grid.Grid, path Path) Path {
	if len(path) <= 2 {
		return path
	}

	simplified := make(Path, 0, len(path))
	simplified = append(simplified, path[0])
	anchor := path[0]

	for i := 1; i < len(path)-1; i++ {
		next := path[i+1]
		if !hasLineOfSight(g, anchor.Position, next.Position) {
			simplified = append(simplified, path[i])
			anchor = path[i]
		}
	}

	simplified = append(simplified, path[len(path)-1])
	return simplified
}

// hasLineOfSight checks if there's a clear line between two points on the grid.
func hasLineOfSight(g *grid.Grid, from, to r3.Vec) bool {
	delta := r3.Sub(to, from)
	dist := r3.Norm(delta)
	if dist < 1e-9 {
		return true
	}

	// Step along the line at a quarter cell so corners are sampled
	stepSize := g.CellSize() * 0.25
	steps := int(dist/stepSize) + 1
	dir := r3.Scale(1/dist, delta)

	for i := 0; i <= steps; i++ {
		t := float64(i) * stepSize
		if t > dist {
			t = dist
		}
		if g.CellAtWorld(r3.Add(from, r3.Scale(t, dir))).IsBlocked() {
			return false
		}
	}
	return true
}
