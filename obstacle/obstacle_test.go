package obstacle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
	"github.com/pthm-cable/stride/pathfind"
)

func unitBox(x, z float64) Shape {
	return Shape{Kind: Box, Center: r3.Vec{X: x, Z: z}, HalfExtents: r3.Vec{X: 0.5, Z: 0.5}}
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, unitBox(0, 0).Validate())
	assert.NoError(t, Shape{Kind: Circle, Radius: 1}.Validate())

	for _, s := range []Shape{
		{Kind: Box, HalfExtents: r3.Vec{X: 1}},
		{Kind: Circle},
		{Kind: Kind(9), Radius: 1},
	} {
		err := s.Validate()
		assert.True(t, errors.Is(err, ErrInvalidShape), "shape %+v: %v", s, err)
	}

	k, err := ParseKind("circle")
	require.NoError(t, err)
	assert.Equal(t, Circle, k)
	_, err = ParseKind("cone")
	assert.True(t, errors.Is(err, ErrInvalidShape))
}

func TestFieldAddRejectsInvalid(t *testing.T) {
	f := NewField()
	_, err := f.Add(Shape{Kind: Circle})
	require.Error(t, err)
	assert.Equal(t, 0, f.Len())

	i, err := f.Add(unitBox(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.Equal(t, 1, f.Len())
}

func TestProbeHitsBoxAhead(t *testing.T) {
	f := NewField()
	_, err := f.Add(unitBox(0, 2))
	require.NoError(t, err)

	origin := r3.Vec{Y: 0.3}
	hit, ok := f.Probe(origin, r3.Vec{Z: 1}, 3)
	require.True(t, ok, "expected a hit on the box 1.5 units ahead")

	assert.InDelta(t, 1.5, hit.Point.Z, 1e-6)
	assert.InDelta(t, 0, hit.Point.X, 1e-6)
	assert.InDelta(t, 1.5, hit.Distance, 1e-6)
	assert.Equal(t, r3.Vec{X: 0, Z: 2}, hit.Obstacle)
}

func TestProbeMisses(t *testing.T) {
	f := NewField()
	_, err := f.Add(unitBox(0, 2))
	require.NoError(t, err)

	_, ok := f.Probe(r3.Vec{}, r3.Vec{Z: 1}, 1.0)
	assert.False(t, ok, "box is beyond the probe distance")

	_, ok = f.Probe(r3.Vec{}, r3.Vec{Z: -1}, 5)
	assert.False(t, ok, "box is behind the probe")

	_, ok = f.Probe(r3.Vec{}, r3.Vec{Y: 1}, 5)
	assert.False(t, ok, "vertical probe has no ground direction")

	_, ok = NewField().Probe(r3.Vec{}, r3.Vec{Z: 1}, 5)
	assert.False(t, ok, "empty field")
}

func TestProbeReturnsClosest(t *testing.T) {
	f := NewField()
	_, err := f.Add(Shape{Kind: Circle, Center: r3.Vec{X: 4}, Radius: 0.5})
	require.NoError(t, err)
	_, err = f.Add(Shape{Kind: Circle, Center: r3.Vec{X: 2}, Radius: 0.5})
	require.NoError(t, err)

	hit, ok := f.Probe(r3.Vec{}, r3.Vec{X: 2}, 10)
	require.True(t, ok)
	assert.Equal(t, 2.0, hit.Obstacle.X)
	assert.InDelta(t, 1.5, hit.Distance, 1e-6)
}

func TestRasterizeBlocksOverlappedCells(t *testing.T) {
	g, err := grid.Build(7, 1)
	require.NoError(t, err)

	// 3x1 box centred on (3,3) covers cells (2..4, 3).
	wall := Shape{Kind: Box, Center: r3.Vec{X: 3, Z: 3}, HalfExtents: r3.Vec{X: 1.4, Z: 0.4}}
	n := Rasterize(g, []Shape{wall}, 0)
	assert.Equal(t, 3, n)
	for ix := 2; ix <= 4; ix++ {
		assert.True(t, g.IsBlocked(ix, 3), "cell (%d,3) should be blocked", ix)
	}
	assert.False(t, g.IsBlocked(1, 3))
	assert.False(t, g.IsBlocked(3, 2))

	// Re-rasterizing blocks nothing new.
	assert.Equal(t, 0, Rasterize(g, []Shape{wall}, 0))
}

func TestRasterizeClearanceGrowsFootprint(t *testing.T) {
	g, err := grid.Build(7, 1)
	require.NoError(t, err)

	post := Shape{Kind: Circle, Center: r3.Vec{X: 3, Z: 3}, Radius: 0.2}
	assert.Equal(t, 1, Rasterize(g, []Shape{post}, 0))

	// Orthogonal neighbours are 1.0 away: 0.2 + 0.9 reaches them, not the diagonals.
	assert.Equal(t, 4, Rasterize(g, []Shape{post}, 0.9))
	assert.True(t, g.IsBlocked(2, 3))
	assert.False(t, g.IsBlocked(2, 2))
}

func TestRasterizeForcesDetour(t *testing.T) {
	g, err := grid.Build(5, 1)
	require.NoError(t, err)
	Rasterize(g, []Shape{unitBox(2, 2)}, 0.3)

	start, _ := g.CellAt(0, 0)
	goal, _ := g.CellAt(4, 4)
	p := pathfind.AStar(start, goal, g)
	require.NotNil(t, p)
	for _, c := range p {
		assert.False(t, c.IX == 2 && c.IY == 2, "path crosses the obstacle")
	}
}

func TestContains(t *testing.T) {
	b := unitBox(1, 1)
	assert.True(t, b.Contains(r3.Vec{X: 1.2, Z: 0.8}))
	assert.False(t, b.Contains(r3.Vec{X: 2, Z: 1}))

	c := Shape{Kind: Circle, Center: r3.Vec{X: -1}, Radius: 1}
	assert.True(t, c.Contains(r3.Vec{X: -1.5, Y: 9}))
	assert.False(t, c.Contains(r3.Vec{X: 0.5}))
}

func TestGenerateDeterministic(t *testing.T) {
	g, err := grid.Build(16, 1)
	require.NoError(t, err)
	p := NoiseParams{
		Seed:          42,
		Scale:         0.3,
		Threshold:     0.5,
		KeepOut:       []r3.Vec{{X: 0, Z: 0}},
		KeepOutRadius: 2,
	}

	a := Generate(g, p)
	b := Generate(g, p)
	require.Equal(t, a, b)
	require.NotEmpty(t, a, "threshold 0.5 should place some boxes on a 16x16 grid")

	for _, s := range a {
		assert.Equal(t, Box, s.Kind)
		assert.Greater(t, r3.Norm(s.Center), 2.0, "box inside keep-out radius at %v", s.Center)
	}

	p.Threshold = 1
	assert.Empty(t, Generate(g, p))
}
