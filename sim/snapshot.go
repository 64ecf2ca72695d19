package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/grid"
)

// Point is a ground-plane position.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func pointOf(v r3.Vec) Point { return Point{X: v.X, Z: v.Z} }

// CellRef identifies a grid cell.
type CellRef struct {
	IX int `json:"ix"`
	IY int `json:"iy"`
}

// AgentView is a copy of one agent's observable state.
type AgentView struct {
	ID        uint32    `json:"id"`
	Name      string    `json:"name"`
	Policy    string    `json:"policy"`
	State     string    `json:"state"`
	Position  Point     `json:"position"`
	Velocity  Point     `json:"velocity"`
	Facing    Point     `json:"facing"`
	Heading   float64   `json:"heading"`
	Intent    float64   `json:"intent"` // |velocity| / max speed
	Target    Point     `json:"target"`
	Goal      *CellRef  `json:"goal,omitempty"`
	Path      []CellRef `json:"path,omitempty"`
	Waypoint  int       `json:"waypoint"` // Index of the next waypoint
	Remaining int       `json:"remaining"`
	Replans   int32     `json:"replans"`
}

// Snapshot is a point-in-time copy of every agent. It shares no memory
// with the simulation.
type Snapshot struct {
	Tick   int32       `json:"tick"`
	Time   float64     `json:"time"`
	Agents []AgentView `json:"agents"`
}

// CellView is one cell of a GridView.
type CellView struct {
	IX      int     `json:"ix"`
	IY      int     `json:"iy"`
	Cost    float64 `json:"cost"` // 0 when blocked
	Blocked bool    `json:"blocked"`
	OnPath  int     `json:"on_path"` // Active paths covering the cell
}

// GridView is a copy of the grid's costs and path coverage.
type GridView struct {
	Size     int        `json:"size"`
	CellSize float64    `json:"cell_size"`
	Origin   Point      `json:"origin"`
	Cells    []CellView `json:"cells"`
}

// Snapshot copies the state of every agent, ordered by ID.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:   s.tick,
		Time:   float64(s.tick) * s.cfg.Simulation.DT,
		Agents: make([]AgentView, 0, len(s.entities)),
	}
	for _, id := range s.AgentIDs() {
		v, _ := s.AgentView(id)
		snap.Agents = append(snap.Agents, v)
	}
	return snap
}

// AgentView copies the state of agent id.
func (s *Simulation) AgentView(id uint32) (AgentView, error) {
	e, ok := s.entities[id]
	if !ok {
		return AgentView{}, errUnknown(id)
	}
	a := s.navMap.Get(e).Agent
	ident := s.identMap.Get(e)
	goal := s.goalMap.Get(e)

	v := AgentView{
		ID:        ident.ID,
		Name:      ident.Name,
		Policy:    s.behMap.Get(e).Policy,
		State:     a.State().String(),
		Position:  pointOf(a.Position()),
		Velocity:  pointOf(a.Velocity()),
		Facing:    pointOf(a.Facing()),
		Heading:   a.Heading(),
		Intent:    a.AnimationIntent(),
		Target:    pointOf(a.Target()),
		Waypoint:  a.WaypointIndex(),
		Remaining: a.Remaining(),
		Replans:   goal.Replans,
	}
	if goal.Valid {
		v.Goal = &CellRef{IX: goal.IX, IY: goal.IY}
	}
	if path := a.Path(); len(path) > 0 {
		v.Path = make([]CellRef, len(path))
		for i, c := range path {
			v.Path[i] = CellRef{IX: c.IX, IY: c.IY}
		}
	}
	return v, nil
}

// GridView copies the grid's costs and path coverage.
func (s *Simulation) GridView() GridView {
	gv := GridView{
		Size:     s.grid.Size(),
		CellSize: s.grid.CellSize(),
		Origin:   pointOf(s.grid.Origin()),
		Cells:    make([]CellView, 0, s.grid.Size()*s.grid.Size()),
	}
	s.grid.Each(func(c *grid.Cell) {
		cv := CellView{IX: c.IX, IY: c.IY, Blocked: c.IsBlocked(), OnPath: PathCoverage(c)}
		if !cv.Blocked {
			cv.Cost = c.Cost()
		}
		gv.Cells = append(gv.Cells, cv)
	})
	return gv
}
