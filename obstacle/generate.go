package obstacle

import (
	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
)

// NoiseParams controls procedural obstacle layouts.
type NoiseParams struct {
	Seed      int64
	Scale     float64 // Noise frequency per cell
	Threshold float64 // Normalized noise in [0,1] above which a cell gets a box
	KeepOut   []r3.Vec
	// Cells whose centre is within this distance of a KeepOut point stay clear
	KeepOutRadius float64
}

// Generate places one cell-sized box on every cell where simplex noise
// exceeds the threshold. The same seed always yields the same layout.
func Generate(g *grid.Grid, p NoiseParams) []Shape {
	noise := opensimplex.New(p.Seed)
	half := g.CellSize() / 2

	var shapes []Shape
	g.Each(func(c *grid.Cell) {
		// Eval2 is in [-1, 1]
		v := (noise.Eval2(float64(c.IX)*p.Scale, float64(c.IY)*p.Scale) + 1) / 2
		if v <= p.Threshold {
			return
		}
		for _, k := range p.KeepOut {
			k.Y = 0
			if r3.Norm(r3.Sub(c.Position, k)) <= p.KeepOutRadius {
				return
			}
		}
		shapes = append(shapes, Shape{
			Kind:        Box,
			Center:      c.Position,
			HalfExtents: r3.Vec{X: half, Z: half},
		})
	})
	return shapes
}
