package pathfind

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/pthm-cable/stride/grid"
)

func buildGrid(t *testing.T, size int, cellSize float64) *grid.Grid {
	t.Helper()
	g, err := grid.Build(size, cellSize)
	if err != nil {
		t.Fatalf("grid.Build: %v", err)
	}
	return g
}

func cellAt(t *testing.T, g *grid.Grid, ix, iy int) *grid.Cell {
	t.Helper()
	c, err := g.CellAt(ix, iy)
	if err != nil {
		t.Fatalf("CellAt(%d,%d): %v", ix, iy, err)
	}
	return c
}

// TestAStarDiagonal verifies the 5x5 diagonal scenario: cost 4√2 over 5 cells.
func TestAStarDiagonal(t *testing.T) {
	g := buildGrid(t, 5, 1)
	start, goal := cellAt(t, g, 0, 0), cellAt(t, g, 4, 4)

	p := AStar(start, goal, g)
	if len(p) != 5 {
		t.Fatalf("expected 5 waypoints, got %d: %v", len(p), p)
	}
	if p[0] != start || p[len(p)-1] != goal {
		t.Errorf("path endpoints %v..%v, want %v..%v", p[0], p[len(p)-1], start, goal)
	}
	if got, want := Cost(g, p), 4*math.Sqrt2; math.Abs(got-want) > 1e-9 {
		t.Errorf("cost = %v, want %v", got, want)
	}
	for i, c := range p {
		if c.IX != i || c.IY != i {
			t.Errorf("waypoint %d = %v, want (%d,%d)", i, c, i, i)
		}
	}
}

// TestAStarAroundObstacle verifies the blocked-centre scenario routes around (2,2).
func TestAStarAroundObstacle(t *testing.T) {
	g := buildGrid(t, 5, 1)
	start, goal := cellAt(t, g, 0, 0), cellAt(t, g, 4, 4)
	if err := g.SetCost(2, 2, grid.Blocked); err != nil {
		t.Fatal(err)
	}

	p := AStar(start, goal, g)
	if p == nil {
		t.Fatal("expected path around obstacle, got nil")
	}
	for i, c := range p {
		if c.IX == 2 && c.IY == 2 {
			t.Errorf("waypoint %d is the blocked cell", i)
		}
	}
	if got := Cost(g, p); got <= 4*math.Sqrt2 {
		t.Errorf("detour cost %v should exceed the straight diagonal", got)
	}

	t.Logf("Path has %d waypoints (navigated around obstacle)", len(p))
}

func TestAStarStartEqualsGoal(t *testing.T) {
	g := buildGrid(t, 3, 1)
	c := cellAt(t, g, 1, 1)

	p := AStar(c, c, g)
	if len(p) != 1 || p[0] != c {
		t.Errorf("expected single-element path [%v], got %v", c, p)
	}
	if Cost(g, p) != 0 {
		t.Errorf("trivial path cost = %v, want 0", Cost(g, p))
	}
}

// TestAStarNoPath verifies A* returns nil when a wall separates start and goal.
func TestAStarNoPath(t *testing.T) {
	g := buildGrid(t, 5, 1)
	for iy := 0; iy < 5; iy++ {
		_ = g.SetCost(2, iy, grid.Blocked)
	}

	p := AStar(cellAt(t, g, 0, 0), cellAt(t, g, 4, 4), g)
	if p != nil {
		t.Errorf("expected no path through complete wall, got %d waypoints", len(p))
	}
}

func TestAStarBlockedGoal(t *testing.T) {
	g := buildGrid(t, 4, 1)
	_ = g.SetCost(3, 3, grid.Blocked)

	if p := AStar(cellAt(t, g, 0, 0), cellAt(t, g, 3, 3), g); p != nil {
		t.Errorf("blocked goal should yield nil, got %v", p)
	}
}

func TestAStarNilCells(t *testing.T) {
	g := buildGrid(t, 2, 1)
	if p := AStar(nil, cellAt(t, g, 1, 1), g); p != nil {
		t.Error("nil start should yield nil")
	}
}

// TestAStarPrefersCheapCells verifies the planner detours around expensive terrain.
func TestAStarPrefersCheapCells(t *testing.T) {
	g := buildGrid(t, 5, 1)
	// A costly band across the middle row except at the far right.
	for ix := 0; ix < 4; ix++ {
		_ = g.SetCost(ix, 2, 50)
	}

	p := AStar(cellAt(t, g, 0, 0), cellAt(t, g, 0, 4), g)
	if p == nil {
		t.Fatal("expected a path")
	}
	crossed := false
	for _, c := range p {
		if c.IY == 2 && c.IX == 4 {
			crossed = true
		}
		if c.IY == 2 && c.IX < 4 {
			t.Errorf("path crosses expensive cell %v", c)
		}
	}
	if !crossed {
		t.Error("path should cross at the cheap gap (4,2)")
	}
}

// TestAStarDeterministic verifies identical inputs give identical paths.
func TestAStarDeterministic(t *testing.T) {
	g := buildGrid(t, 12, 1)
	rng := rand.New(rand.NewSource(7))
	randomizeCosts(g, rng, 0.2)
	start, goal := cellAt(t, g, 0, 0), cellAt(t, g, 11, 11)
	_ = g.SetCost(0, 0, 1)
	_ = g.SetCost(11, 11, 1)

	planner := NewPlanner()
	first := planner.FindPath(g, start, goal)
	for i := 0; i < 5; i++ {
		again := planner.FindPath(g, start, goal)
		if len(again) != len(first) {
			t.Fatalf("run %d: length %d, want %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d: waypoint %d differs: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
	if planner.Expanded() == 0 && first != nil {
		t.Error("Expanded should count popped nodes")
	}
}

// TestAStarMatchesDijkstra compares path costs against gonum's Dijkstra on
// randomized grids built from the same neighbour relation.
func TestAStarMatchesDijkstra(t *testing.T) {
	rng := rand.New(rand.NewSource(12345))
	planner := NewPlanner()

	for trial := 0; trial < 40; trial++ {
		size := 4 + rng.Intn(9)
		g := buildGrid(t, size, 0.5+rng.Float64())
		randomizeCosts(g, rng, 0.25)

		oracle := simple.NewWeightedDirectedGraph(0, math.Inf(1))
		g.Each(func(c *grid.Cell) {
			id := int64(g.Index(c))
			if oracle.Node(id) == nil {
				oracle.AddNode(simple.Node(id))
			}
			for _, n := range g.Neighbors(c) {
				nid := int64(g.Index(n.Cell))
				if oracle.Node(nid) == nil {
					oracle.AddNode(simple.Node(nid))
				}
				oracle.SetWeightedEdge(oracle.NewWeightedEdge(simple.Node(id), simple.Node(nid), n.Cost))
			}
		})

		for q := 0; q < 5; q++ {
			start := cellAt(t, g, rng.Intn(size), rng.Intn(size))
			goal := cellAt(t, g, rng.Intn(size), rng.Intn(size))

			shortest := path.DijkstraFrom(simple.Node(g.Index(start)), oracle)
			want := shortest.WeightTo(int64(g.Index(goal)))

			p := planner.FindPath(g, start, goal)
			if math.IsInf(want, 1) {
				if p != nil {
					t.Errorf("trial %d: %v->%v unreachable per oracle, A* returned %v", trial, start, goal, p)
				}
				continue
			}
			if p == nil {
				t.Errorf("trial %d: %v->%v reachable (cost %v), A* returned nil", trial, start, goal, want)
				continue
			}
			if p[0] != start || p[len(p)-1] != goal {
				t.Errorf("trial %d: bad endpoints %v..%v", trial, p[0], p[len(p)-1])
			}
			if got := Cost(g, p); math.Abs(got-want) > 1e-9 {
				t.Errorf("trial %d: %v->%v cost %v, oracle %v", trial, start, goal, got, want)
			}
		}
	}
}

func TestCostInvalidStep(t *testing.T) {
	g := buildGrid(t, 4, 1)
	p := Path{cellAt(t, g, 0, 0), cellAt(t, g, 2, 0)}
	if got := Cost(g, p); !math.IsInf(got, 1) {
		t.Errorf("non-adjacent step cost = %v, want +Inf", got)
	}
}

// TestBlocked verifies remaining-path validation after obstacle edits.
func TestBlocked(t *testing.T) {
	g := buildGrid(t, 5, 1)
	p := AStar(cellAt(t, g, 0, 0), cellAt(t, g, 4, 0), g)
	if len(p) != 5 {
		t.Fatalf("expected straight 5-cell path, got %v", p)
	}

	if Blocked(p, 0) {
		t.Error("fresh path should not be blocked")
	}
	_ = g.SetCost(1, 0, grid.Blocked)
	if !Blocked(p, 0) {
		t.Error("path through blocked cell should report blocked")
	}
	if Blocked(p, 2) {
		t.Error("blocked cell behind the agent should be ignored")
	}
	if Blocked(nil, 0) {
		t.Error("empty path has nothing to block")
	}
}

func TestObstructed(t *testing.T) {
	g := buildGrid(t, 6, 1)
	full := AStar(cellAt(t, g, 0, 0), cellAt(t, g, 5, 0), g)
	short := Simplify(g, full)
	if len(short) != 2 {
		t.Fatalf("expected simplified path of 2 waypoints, got %v", short)
	}

	if Obstructed(g, short, 0) {
		t.Error("fresh simplified path should not be obstructed")
	}
	_ = g.SetCost(3, 0, grid.Blocked)
	if Blocked(short, 0) {
		t.Error("blocked cell lies between waypoints, not on one")
	}
	if !Obstructed(g, short, 0) {
		t.Error("segment through blocked cell should be obstructed")
	}
	if !Obstructed(g, full, 0) {
		t.Error("unsimplified path through blocked cell should be obstructed")
	}
	if Obstructed(g, full, 4) {
		t.Error("blocked cell behind the agent should be ignored")
	}
	if Obstructed(g, nil, 0) {
		t.Error("empty path has nothing to obstruct")
	}
}

func randomizeCosts(g *grid.Grid, rng *rand.Rand, blockedFraction float64) {
	g.Each(func(c *grid.Cell) {
		switch r := rng.Float64(); {
		case r < blockedFraction:
			_ = g.SetCost(c.IX, c.IY, grid.Blocked)
		case r < blockedFraction+0.1:
			_ = g.SetCost(c.IX, c.IY, 0.2+rng.Float64()*0.3)
		default:
			_ = g.SetCost(c.IX, c.IY, 1+rng.Float64()*4)
		}
	})
}
