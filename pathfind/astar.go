// Package pathfind finds least-cost routes across a navigation grid.
package pathfind

import (
	"container/heap"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
)

// Path is an ordered waypoint sequence from start (index 0) to goal.
// A nil path means the goal is unreachable. A single-element path means
// start and goal are the same cell.
type Path []*grid.Cell

// Planner runs A* searches and reuses its buffers between them.
// A Planner is not safe for concurrent use.
type Planner struct {
	// Per-cell search state, indexed by grid.Index. Reallocated when the
	// grid size changes.
	nodes    []astarNode
	openHeap nodeHeap
	seq      uint64

	expanded int
}

type nodeState uint8

const (
	unvisited nodeState = iota
	open
	closed
)

// astarNode is a node in the A* search.
type astarNode struct {
	cell   *grid.Cell
	parent *astarNode
	g, h   float64
	seq    uint64 // insertion order, breaks f/h ties
	index  int    // heap index
	state  nodeState
}

func (n *astarNode) f() float64 { return n.g + n.h }

// nodeHeap implements heap.Interface for the A* open set.
type nodeHeap []*astarNode

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	fi, fj := h[i].f(), h[j].f()
	if fi != fj {
		return fi < fj
	}
	if h[i].h != h[j].h {
		return h[i].h < h[j].h
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[0 : n-1]
	return node
}

// NewPlanner creates a planner with empty buffers.
func NewPlanner() *Planner {
	return &Planner{}
}

// AStar finds a least-cost path from start to goal on g using a fresh planner.
func AStar(start, goal *grid.Cell, g *grid.Grid) Path {
	return NewPlanner().FindPath(g, start, goal)
}

// Expanded returns the number of nodes popped by the last FindPath call.
func (p *Planner) Expanded() int { return p.expanded }

// FindPath computes a least-cost path from start to goal using A*.
// Returns nil if the goal is unreachable or blocked.
func (p *Planner) FindPath(g *grid.Grid, start, goal *grid.Cell) Path {
	p.expanded = 0
	if start == nil || goal == nil || goal.IsBlocked() {
		return nil
	}

	// Same cell - no search needed
	if start == goal {
		return Path{start}
	}

	p.reset(g)
	minCost := g.MinCost()
	heuristic := func(c *grid.Cell) float64 {
		return r3.Norm(r3.Sub(goal.Position, c.Position)) * minCost
	}

	startNode := p.node(g, start)
	startNode.g = 0
	startNode.h = heuristic(start)
	p.push(startNode)

	for p.openHeap.Len() > 0 {
		current := heap.Pop(&p.openHeap).(*astarNode)
		current.state = closed
		p.expanded++

		// Goal reached
		if current.cell == goal {
			return reconstructPath(current)
		}

		for _, n := range g.Neighbors(current.cell) {
			tentativeG := current.g + n.Cost
			next := p.node(g, n.Cell)

			if next.state != unvisited && tentativeG >= next.g {
				continue
			}

			// This is a better path
			next.parent = current
			next.g = tentativeG
			switch next.state {
			case unvisited:
				next.h = heuristic(n.Cell)
				p.push(next)
			case open:
				heap.Fix(&p.openHeap, next.index)
			case closed:
				// Reopen
				p.push(next)
			}
		}
	}

	// No path found
	return nil
}

func (p *Planner) reset(g *grid.Grid) {
	total := g.Size() * g.Size()
	if cap(p.nodes) < total {
		p.nodes = make([]astarNode, total)
	} else {
		p.nodes = p.nodes[:total]
		for i := range p.nodes {
			p.nodes[i] = astarNode{}
		}
	}
	p.openHeap = p.openHeap[:0]
	p.seq = 0
}

func (p *Planner) node(g *grid.Grid, c *grid.Cell) *astarNode {
	n := &p.nodes[g.Index(c)]
	if n.cell == nil {
		n.cell = c
		n.index = -1
	}
	return n
}

func (p *Planner) push(n *astarNode) {
	n.state = open
	n.seq = p.seq
	p.seq++
	heap.Push(&p.openHeap, n)
}

// reconstructPath follows parent pointers back from the goal and reverses.
func reconstructPath(goal *astarNode) Path {
	length := 0
	for n := goal; n != nil; n = n.parent {
		length++
	}
	path := make(Path, length)
	for n, i := goal, length-1; n != nil; n, i = n.parent, i-1 {
		path[i] = n.cell
	}
	return path
}

// Cost returns the total traversal cost of path under g's current costs.
// Returns +Inf if any consecutive pair is not a traversable step.
func Cost(g *grid.Grid, path Path) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		step := g.StepCost(path[i-1], path[i])
		if math.IsInf(step, 1) {
			return step
		}
		total += step
	}
	return total
}

// Blocked reports whether any waypoint of path from index from onward has
// become unreachable.
func Blocked(path Path, from int) bool {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(path); i++ {
		if path[i].IsBlocked() {
			return true
		}
	}
	return false
}

// Obstructed reports whether the remaining route of path from index from
// onward crosses a blocked cell, either at a waypoint or on the straight
// segment between two waypoints. Simplified paths skip cells between
// waypoints, so Blocked alone misses obstacles placed on a segment.
func Obstructed(g *grid.Grid, path Path, from int) bool {
	if from < 0 {
		from = 0
	}
	if Blocked(path, from) {
		return true
	}
	for i := from + 1; i < len(path); i++ {
		if !hasLineOfSight(g, path[i-1].Position, path[i].Position) {
			return true
		}
	}
	return false
}
