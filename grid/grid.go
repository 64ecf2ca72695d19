// Package grid provides the navigation grid: a fixed N×N array of cells on the
// ground plane and the mapping between world and grid coordinates.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Blocked is the traversal cost of an unreachable cell.
var Blocked = math.Inf(1)

var (
	// ErrInvalidSize is returned by Build for a non-positive grid size.
	ErrInvalidSize = errors.New("grid: size must be positive")
	// ErrInvalidCellSize is returned by Build for a non-positive cell size.
	ErrInvalidCellSize = errors.New("grid: cell size must be positive")
	// ErrOutOfRange is returned when grid indices fall outside [0, size-1].
	ErrOutOfRange = errors.New("grid: coordinates out of range")
	// ErrInvalidCost is returned by SetCost for negative or NaN costs.
	ErrInvalidCost = errors.New("grid: cost must be >= 0")
)

// Cell is a single grid tile. IX, IY and Position are set by Build and are
// read-only afterwards: Index, Neighbors and the planner key cells by them.
// Only the cost changes, through Grid.SetCost.
type Cell struct {
	IX, IY   int
	Position r3.Vec // world-space centre, Y = 0

	// Tag is an opaque slot for the presentation layer (mesh handle, colour
	// state). Nothing in the navigation code reads it.
	Tag any

	cost float64
}

// Cost returns the traversal cost multiplier of the cell.
func (c *Cell) Cost() float64 { return c.cost }

// IsBlocked reports whether the cell is unreachable.
func (c *Cell) IsBlocked() bool { return math.IsInf(c.cost, 1) }

func (c *Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.IX, c.IY)
}

// Neighbor is an adjacent traversable cell and the cost of stepping into it.
type Neighbor struct {
	Cell *Cell
	Cost float64
}

// Grid owns all cells of a square navigation grid.
type Grid struct {
	cells    [][]*Cell // [ix][iy]
	size     int
	cellSize float64
	origin   r3.Vec

	// Smallest finite cell cost, recomputed lazily after a cost increase
	// on a cell that held the minimum.
	minCost      float64
	minCostDirty bool
}

// Option configures a Grid at build time.
type Option func(*Grid)

// WithOrigin offsets every cell centre by origin.
func WithOrigin(origin r3.Vec) Option {
	return func(g *Grid) {
		g.origin = r3.Vec{X: origin.X, Z: origin.Z}
	}
}

// Build allocates a size×size grid of cells with uniform cost 1.
func Build(size int, cellSize float64, opts ...Option) (*Grid, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCellSize, cellSize)
	}

	g := &Grid{
		size:     size,
		cellSize: cellSize,
		minCost:  1,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.cells = make([][]*Cell, size)
	for ix := 0; ix < size; ix++ {
		column := make([]*Cell, size)
		for iy := 0; iy < size; iy++ {
			column[iy] = &Cell{
				IX:       ix,
				IY:       iy,
				Position: g.GridToWorld(ix, iy),
				cost:     1,
			}
		}
		g.cells[ix] = column
	}

	return g, nil
}

// Size returns the number of cells per side.
func (g *Grid) Size() int { return g.size }

// CellSize returns the world units per cell.
func (g *Grid) CellSize() float64 { return g.cellSize }

// Origin returns the world position of cell (0,0).
func (g *Grid) Origin() r3.Vec { return g.origin }

// InBounds reports whether (ix, iy) addresses a cell.
func (g *Grid) InBounds(ix, iy int) bool {
	return ix >= 0 && iy >= 0 && ix < g.size && iy < g.size
}

// CellAt returns the cell at (ix, iy). Indices are not clamped.
func (g *Grid) CellAt(ix, iy int) (*Cell, error) {
	if !g.InBounds(ix, iy) {
		return nil, fmt.Errorf("%w: (%d,%d) on %dx%d grid", ErrOutOfRange, ix, iy, g.size, g.size)
	}
	return g.cells[ix][iy], nil
}

// cell is CellAt without the bounds error, for callers that already checked.
func (g *Grid) cell(ix, iy int) *Cell {
	if !g.InBounds(ix, iy) {
		return nil
	}
	return g.cells[ix][iy]
}

// GridToWorld returns the world-space centre of cell (ix, iy).
func (g *Grid) GridToWorld(ix, iy int) r3.Vec {
	return r3.Vec{
		X: g.origin.X + float64(ix)*g.cellSize,
		Y: 0,
		Z: g.origin.Z + float64(iy)*g.cellSize,
	}
}

// WorldToGrid converts a world position to the nearest cell coordinates,
// clamped into the grid. It always succeeds.
func (g *Grid) WorldToGrid(pos r3.Vec) (ix, iy int) {
	ix = g.clamp(int(math.Floor((pos.X-g.origin.X)/g.cellSize + 0.5)))
	iy = g.clamp(int(math.Floor((pos.Z-g.origin.Z)/g.cellSize + 0.5)))
	return ix, iy
}

// CellAtWorld returns the cell nearest to pos, clamped into the grid.
func (g *Grid) CellAtWorld(pos r3.Vec) *Cell {
	ix, iy := g.WorldToGrid(pos)
	return g.cells[ix][iy]
}

func (g *Grid) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= g.size {
		return g.size - 1
	}
	return i
}

// Each calls fn for every cell in [ix][iy] order.
func (g *Grid) Each(fn func(*Cell)) {
	for ix := 0; ix < g.size; ix++ {
		for iy := 0; iy < g.size; iy++ {
			fn(g.cells[ix][iy])
		}
	}
}

// Index returns a dense integer key for the cell, unique within the grid.
func (g *Grid) Index(c *Cell) int {
	return c.IX*g.size + c.IY
}

// IsBlocked reports whether (ix, iy) is unreachable. Out-of-bounds is blocked.
func (g *Grid) IsBlocked(ix, iy int) bool {
	c := g.cell(ix, iy)
	return c == nil || c.IsBlocked()
}

// SetCost changes the traversal cost of a cell. Use Blocked to make it
// unreachable. Must not be called while a search is running.
func (g *Grid) SetCost(ix, iy int, cost float64) error {
	c, err := g.CellAt(ix, iy)
	if err != nil {
		return err
	}
	if math.IsNaN(cost) || cost < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidCost, cost)
	}

	old := c.cost
	c.cost = cost
	switch {
	case cost < g.minCost:
		g.minCost = cost
	case old == g.minCost && cost > old:
		g.minCostDirty = true
	}
	return nil
}

// MinCost returns the smallest finite traversal cost on the grid, or 1 when
// every cell is blocked.
func (g *Grid) MinCost() float64 {
	if g.minCostDirty {
		g.minCost = math.Inf(1)
		g.Each(func(c *Cell) {
			if c.cost < g.minCost {
				g.minCost = c.cost
			}
		})
		if math.IsInf(g.minCost, 1) {
			g.minCost = 1
		}
		g.minCostDirty = false
	}
	return g.minCost
}

// Direction offsets for the 8-connected neighbourhood.
// Cardinal directions first, then diagonals.
var neighborOffsets = [8][2]int{
	{-1, 0}, {1, 0}, {0, -1}, {0, 1},
	{-1, -1}, {1, -1}, {-1, 1}, {1, 1},
}

// Neighbors returns the traversable 8-connected neighbours of c with their
// step costs (step length times the entered cell's cost). Diagonal steps
// that would cut past a blocked orthogonal cell are excluded.
func (g *Grid) Neighbors(c *Cell) []Neighbor {
	result := make([]Neighbor, 0, 8)
	for i, off := range neighborOffsets {
		nx, ny := c.IX+off[0], c.IY+off[1]
		if g.IsBlocked(nx, ny) {
			continue
		}

		step := g.cellSize
		if i >= 4 {
			// Prevent cutting corners
			if g.IsBlocked(c.IX+off[0], c.IY) || g.IsBlocked(c.IX, c.IY+off[1]) {
				continue
			}
			step = g.cellSize * math.Sqrt2
		}

		n := g.cells[nx][ny]
		result = append(result, Neighbor{Cell: n, Cost: step * n.cost})
	}
	return result
}

// StepCost returns the cost of moving from a to an adjacent cell b, or +Inf
// when b is not a traversable neighbour of a.
func (g *Grid) StepCost(a, b *Cell) float64 {
	for _, n := range g.Neighbors(a) {
		if n.Cell == b {
			return n.Cost
		}
	}
	return math.Inf(1)
}

// NearestOpen returns the closest unblocked cell to c, searching square rings
// out to maxRadius. c itself is returned when it is open.
func (g *Grid) NearestOpen(c *Cell, maxRadius int) (*Cell, bool) {
	if !c.IsBlocked() {
		return c, true
	}
	for radius := 1; radius <= maxRadius; radius++ {
		var best *Cell
		bestDist := math.Inf(1)
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				// Only cells on the current ring
				if abs(dx) != radius && abs(dy) != radius {
					continue
				}
				n := g.cell(c.IX+dx, c.IY+dy)
				if n == nil || n.IsBlocked() {
					continue
				}
				if d := r3.Norm2(r3.Sub(n.Position, c.Position)); d < bestDist {
					best, bestDist = n, d
				}
			}
		}
		if best != nil {
			return best, true
		}
	}
	return nil, false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
