// Package sim runs agents over a navigation grid: spawning, goal planning,
// steering, obstacle edits and telemetry.
package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"github.com/mlange-42/ark/ecs"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/components"
	"github.com/pthm-cable/stride/config"
	"github.com/pthm-cable/stride/grid"
	"github.com/pthm-cable/stride/obstacle"
	"github.com/pthm-cable/stride/pathfind"
	"github.com/pthm-cable/stride/steering"
	"github.com/pthm-cable/stride/telemetry"
)

// ErrUnknownAgent is returned for an agent ID that does not exist.
var ErrUnknownAgent = errors.New("unknown agent")

func errUnknown(id uint32) error {
	return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
}

// maxPendingEvents caps the Events buffer when nobody drains it.
const maxPendingEvents = 4096

// Command mutates the simulation between ticks.
type Command func(s *Simulation)

// SpawnSpec describes a new agent.
type SpawnSpec struct {
	Position r3.Vec
	Name     string // Defaults to agent-<id>
	Policy   string // Defaults to policy.kind
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOutput enables CSV output.
func WithOutput(om *telemetry.OutputManager) Option {
	return func(s *Simulation) { s.output = om }
}

// WithStatsCallback registers fn to receive every flushed stats window.
func WithStatsCallback(fn func(telemetry.WindowStats)) Option {
	return func(s *Simulation) { s.statsCallback = fn }
}

// WithPolicy registers or replaces a named arrival policy.
func WithPolicy(name string, p Policy) Option {
	return func(s *Simulation) { s.policies[name] = p }
}

// Simulation holds the complete navigation state. It is not safe for
// concurrent use; Runner serializes access.
type Simulation struct {
	cfg *config.Config
	log *zap.Logger
	rng *rand.Rand

	grid      *grid.Grid
	field     *obstacle.Field
	planner   *pathfind.Planner
	params    steering.Params
	clearance float64

	world    *ecs.World
	mapper   *ecs.Map5[components.Identity, components.Navigator, components.Goal, components.Trip, components.Behavior]
	filter   *ecs.Filter5[components.Identity, components.Navigator, components.Goal, components.Trip, components.Behavior]
	navMap   *ecs.Map[components.Navigator]
	goalMap  *ecs.Map[components.Goal]
	tripMap  *ecs.Map[components.Trip]
	identMap *ecs.Map[components.Identity]
	behMap   *ecs.Map[components.Behavior]

	entities map[uint32]ecs.Entity
	policies map[string]Policy
	arrived  []uint32 // filled by OnArrived during the steer phase
	retry    []uint32 // agents whose last policy goal was unreachable

	tick   int32
	nextID uint32

	events        []telemetry.Event
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	output        *telemetry.OutputManager
	statsCallback func(telemetry.WindowStats)
}

// New builds the grid, obstacles and initial agents described by cfg.
func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Prepare(); err != nil {
		return nil, err
	}

	origin := r3.Vec{X: cfg.Derived.OriginX, Z: cfg.Derived.OriginZ}
	g, err := grid.Build(cfg.Grid.Size, cfg.Grid.CellSize, grid.WithOrigin(origin))
	if err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}

	world := ecs.NewWorld()
	s := &Simulation{
		cfg:       cfg,
		log:       zap.NewNop(),
		rng:       rand.New(rand.NewSource(cfg.Simulation.Seed)),
		grid:      g,
		field:     obstacle.NewField(),
		planner:   pathfind.NewPlanner(),
		params:    ParamsFromConfig(cfg.Agent),
		clearance: cfg.Agent.Radius + cfg.Obstacles.Clearance,
		world:     world,
		mapper: ecs.NewMap5[components.Identity, components.Navigator, components.Goal,
			components.Trip, components.Behavior](world),
		filter: ecs.NewFilter5[components.Identity, components.Navigator, components.Goal,
			components.Trip, components.Behavior](world),
		navMap:    ecs.NewMap[components.Navigator](world),
		goalMap:   ecs.NewMap[components.Goal](world),
		tripMap:   ecs.NewMap[components.Trip](world),
		identMap:  ecs.NewMap[components.Identity](world),
		behMap:    ecs.NewMap[components.Behavior](world),
		entities:  make(map[uint32]ecs.Entity),
		policies:  map[string]Policy{PolicyRandom: RandomGoal{}, PolicyStay: Stay{}},
		nextID:    1,
		collector: telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Simulation.DT),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
	}

	if cfg.Policy.Kind == PolicyScript || cfg.Policy.Script != "" || cfg.Policy.ScriptFile != "" {
		p, err := loadScriptPolicy(cfg.Policy)
		if err != nil {
			return nil, err
		}
		s.policies[PolicyScript] = p
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.buildObstacles(); err != nil {
		return nil, err
	}
	if err := s.spawnInitial(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadScriptPolicy(pc config.PolicyConfig) (*ScriptPolicy, error) {
	src := pc.Script
	if pc.ScriptFile != "" {
		data, err := os.ReadFile(pc.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("reading policy script: %w", err)
		}
		src = string(data)
	}
	if src == "" {
		return nil, fmt.Errorf("%w: script policy without script", config.ErrInvalid)
	}
	return NewScriptPolicy(src)
}

// ParamsFromConfig converts the agent config section to steering parameters.
func ParamsFromConfig(a config.AgentConfig) steering.Params {
	return steering.Params{
		MaxSpeed:          a.MaxSpeed,
		MaxForce:          a.MaxForce,
		ArrivalEpsilon:    a.ArrivalEpsilon,
		TargetRadius:      a.TargetRadius,
		SlowRadius:        a.SlowRadius,
		ProbeDistance:     a.ProbeDistance,
		ProbeHeight:       a.ProbeHeight,
		AvoidanceStrength: a.AvoidanceStrength,
		TurnRate:          a.TurnRate,
	}
}

// ShapeFromConfig converts one configured obstacle.
func ShapeFromConfig(sc config.ShapeConfig) (obstacle.Shape, error) {
	kind, err := obstacle.ParseKind(sc.Kind)
	if err != nil {
		return obstacle.Shape{}, err
	}
	s := obstacle.Shape{
		Kind:        kind,
		Center:      r3.Vec{X: sc.X, Z: sc.Z},
		HalfExtents: r3.Vec{X: sc.HX, Z: sc.HZ},
		Radius:      sc.Radius,
	}
	return s, s.Validate()
}

func (s *Simulation) buildObstacles() error {
	shapes := make([]obstacle.Shape, 0, len(s.cfg.Obstacles.Shapes))
	for i, sc := range s.cfg.Obstacles.Shapes {
		shape, err := ShapeFromConfig(sc)
		if err != nil {
			return fmt.Errorf("obstacle %d: %w", i, err)
		}
		shapes = append(shapes, shape)
	}

	if n := s.cfg.Obstacles.Noise; n.Enabled {
		seed := n.Seed
		if seed == 0 {
			seed = s.cfg.Simulation.Seed
		}
		keep := make([]r3.Vec, 0, len(s.cfg.Simulation.Spawns))
		for _, sp := range s.cfg.Simulation.Spawns {
			keep = append(keep, r3.Vec{X: sp.X, Z: sp.Z})
		}
		shapes = append(shapes, obstacle.Generate(s.grid, obstacle.NoiseParams{
			Seed:          seed,
			Scale:         n.Scale,
			Threshold:     n.Threshold,
			KeepOut:       keep,
			KeepOutRadius: n.KeepOut,
		})...)
	}

	for _, shape := range shapes {
		if _, err := s.field.Add(shape); err != nil {
			return err
		}
	}
	blocked := obstacle.Rasterize(s.grid, shapes, s.clearance)
	s.log.Info("obstacles built",
		zap.Int("shapes", len(shapes)),
		zap.Int("blocked_cells", blocked),
	)
	return nil
}

func (s *Simulation) spawnInitial() error {
	for _, sp := range s.cfg.Simulation.Spawns {
		if _, err := s.Spawn(SpawnSpec{Position: r3.Vec{X: sp.X, Z: sp.Z}, Policy: sp.Policy}); err != nil {
			return fmt.Errorf("spawning at (%g, %g): %w", sp.X, sp.Z, err)
		}
	}

	n := s.grid.Size()
	for i := 0; i < s.cfg.Simulation.Agents; i++ {
		c, _ := s.grid.CellAt(s.rng.Intn(n), s.rng.Intn(n))
		if _, err := s.Spawn(SpawnSpec{Position: c.Position}); err != nil {
			return fmt.Errorf("spawning random agent: %w", err)
		}
	}
	return nil
}

// Spawn creates an agent. A position on a blocked cell is moved to the
// nearest open cell. The agent's policy picks its first goal immediately.
func (s *Simulation) Spawn(spec SpawnSpec) (uint32, error) {
	policy := spec.Policy
	if policy == "" {
		policy = s.cfg.Policy.Kind
	}
	if _, ok := s.policies[policy]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	pos := spec.Position
	pos.Y = 0
	if c := s.grid.CellAtWorld(pos); c.IsBlocked() {
		open, ok := s.grid.NearestOpen(c, s.cfg.Simulation.NearestOpenRadius)
		if !ok {
			return 0, fmt.Errorf("no open cell near %v", c)
		}
		pos = open.Position
	}

	id := s.nextID
	s.nextID++
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("agent-%d", id)
	}

	agent := steering.NewAgent(pos, s.params)
	agent.SetProber(s.field)
	agent.OnArrived(func(*steering.Agent) { s.arrived = append(s.arrived, id) })
	agent.OnPathChanged(s.highlight)

	ident := components.Identity{ID: id, Name: name}
	nav := components.Navigator{Agent: agent}
	goal := components.Goal{}
	trip := components.Trip{StartTick: s.tick}
	beh := components.Behavior{Policy: policy}
	s.entities[id] = s.mapper.NewEntity(&ident, &nav, &goal, &trip, &beh)

	c := s.grid.CellAtWorld(pos)
	s.emit(telemetry.NewSpawnedEvent(s.tick, id, c.IX, c.IY))
	s.log.Debug("agent spawned",
		zap.Uint32("agent", id),
		zap.String("name", name),
		zap.Stringer("cell", c),
		zap.String("policy", policy),
	)

	if !s.nextGoal(id) {
		s.retry = append(s.retry, id)
	}
	return id, nil
}

// Remove deletes an agent.
func (s *Simulation) Remove(id uint32) error {
	e, ok := s.entities[id]
	if !ok {
		return errUnknown(id)
	}
	s.navMap.Get(e).Agent.Stop()
	s.world.RemoveEntity(e)
	delete(s.entities, id)
	s.emit(telemetry.NewRemovedEvent(s.tick, id))
	return nil
}

// highlight maintains Cell.Tag as the number of agents whose active path
// covers the cell.
func (s *Simulation) highlight(_ *steering.Agent, entered, exited []*grid.Cell) {
	for _, c := range entered {
		n, _ := c.Tag.(int)
		c.Tag = n + 1
	}
	for _, c := range exited {
		n, _ := c.Tag.(int)
		if n <= 1 {
			c.Tag = nil
		} else {
			c.Tag = n - 1
		}
	}
}

// PathCoverage returns how many active paths cover c.
func PathCoverage(c *grid.Cell) int {
	n, _ := c.Tag.(int)
	return n
}

// SetGoal plans a path for agent id to cell (ix, iy) and starts following
// it. A blocked goal is moved to the nearest open cell. reachable is false
// when no path exists; the agent then keeps its previous plan.
func (s *Simulation) SetGoal(id uint32, ix, iy int) (reachable bool, err error) {
	e, ok := s.entities[id]
	if !ok {
		return false, errUnknown(id)
	}
	goalCell, err := s.grid.CellAt(ix, iy)
	if err != nil {
		return false, fmt.Errorf("goal: %w", err)
	}

	path, cost := s.plan(id, s.navMap.Get(e).Agent, goalCell)
	if path == nil {
		return false, nil
	}

	end := path[len(path)-1]
	s.navMap.Get(e).Agent.SetPath(path)
	*s.goalMap.Get(e) = components.Goal{IX: end.IX, IY: end.IY, Valid: true}
	*s.tripMap.Get(e) = components.Trip{StartTick: s.tick, PathCost: cost, Waypoints: len(path)}
	return true, nil
}

// plan runs the search from the agent's cell and records the outcome.
func (s *Simulation) plan(id uint32, agent *steering.Agent, goal *grid.Cell) (pathfind.Path, float64) {
	if goal.IsBlocked() {
		if open, ok := s.grid.NearestOpen(goal, s.cfg.Simulation.NearestOpenRadius); ok {
			goal = open
		}
	}
	start := s.grid.CellAtWorld(agent.Position())
	if start.IsBlocked() {
		if open, ok := s.grid.NearestOpen(start, s.cfg.Simulation.NearestOpenRadius); ok {
			start = open
		}
	}

	path := s.planner.FindPath(s.grid, start, goal)
	if path == nil {
		s.emit(telemetry.NewPathFailedEvent(s.tick, id, goal.IX, goal.IY, s.planner.Expanded()))
		s.log.Debug("no path",
			zap.Uint32("agent", id),
			zap.Stringer("start", start),
			zap.Stringer("goal", goal),
		)
		return nil, 0
	}

	cost := pathfind.Cost(s.grid, path)
	if s.cfg.Simulation.Simplify {
		path = pathfind.Simplify(s.grid, path)
	}
	s.emit(telemetry.NewPathPlannedEvent(s.tick, id, goal.IX, goal.IY, len(path), cost, s.planner.Expanded()))
	s.log.Debug("path planned",
		zap.Uint32("agent", id),
		zap.Stringer("start", start),
		zap.Stringer("goal", goal),
		zap.Int("waypoints", len(path)),
		zap.Float64("cost", cost),
	)
	return path, cost
}

// SetTarget steers agent id straight at point, ignoring the grid.
func (s *Simulation) SetTarget(id uint32, point r3.Vec) error {
	e, ok := s.entities[id]
	if !ok {
		return errUnknown(id)
	}
	agent := s.navMap.Get(e).Agent
	agent.SetTarget(point)
	*s.goalMap.Get(e) = components.Goal{}
	*s.tripMap.Get(e) = components.Trip{StartTick: s.tick, Waypoints: 1}
	return nil
}

// PlaceObstacle adds a static obstacle, blocks the cells it covers and
// re-plans agents whose remaining path crosses them.
// Returns the number of cells newly blocked.
func (s *Simulation) PlaceObstacle(shape obstacle.Shape) (int, error) {
	if _, err := s.field.Add(shape); err != nil {
		return 0, err
	}
	blocked := obstacle.Rasterize(s.grid, []obstacle.Shape{shape}, s.clearance)

	c := s.grid.CellAtWorld(shape.Center)
	s.emit(telemetry.NewObstaclePlacedEvent(s.tick, c.IX, c.IY, blocked))
	s.log.Info("obstacle placed",
		zap.Stringer("kind", shape.Kind),
		zap.Stringer("cell", c),
		zap.Int("blocked_cells", blocked),
	)

	if blocked > 0 {
		s.replanBlocked()
	}
	return blocked, nil
}

// SetCellCost changes one cell's traversal cost.
func (s *Simulation) SetCellCost(ix, iy int, cost float64) error {
	if err := s.grid.SetCost(ix, iy, cost); err != nil {
		return err
	}
	if s.grid.IsBlocked(ix, iy) {
		s.replanBlocked()
	}
	return nil
}

// replanBlocked re-plans every following agent whose remaining route
// crosses a blocked cell. Agents with no alternative route stop and go back
// to their policy.
func (s *Simulation) replanBlocked() {
	if !s.cfg.Simulation.ReplanOnBlock {
		return
	}

	var stale []uint32
	query := s.filter.Query()
	for query.Next() {
		ident, nav, goal, _, _ := query.Get()
		a := nav.Agent
		if !goal.Valid || a.State() != steering.Following {
			continue
		}
		if pathfind.Obstructed(s.grid, a.Path(), a.WaypointIndex()-1) {
			stale = append(stale, ident.ID)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })

	for _, id := range stale {
		e := s.entities[id]
		agent := s.navMap.Get(e).Agent
		goal := s.goalMap.Get(e)
		goalCell, _ := s.grid.CellAt(goal.IX, goal.IY)

		path, cost := s.plan(id, agent, goalCell)
		if path == nil {
			agent.Stop()
			goal.Valid = false
			// The policy picks a new goal on the next tick.
			s.retry = append(s.retry, id)
			s.log.Info("agent stranded", zap.Uint32("agent", id), zap.Stringer("goal", goalCell))
			continue
		}
		agent.SetPath(path)
		goal.Replans++
		trip := s.tripMap.Get(e)
		trip.PathCost = cost
		trip.Waypoints = len(path)
		s.emit(telemetry.NewReplannedEvent(s.tick, id, len(path), cost))
	}
}

// ApplyParams replaces the locomotion parameters of every agent.
func (s *Simulation) ApplyParams(p steering.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p
	query := s.filter.Query()
	for query.Next() {
		_, nav, _, _, _ := query.Get()
		nav.Agent.SetParams(p)
	}
	return nil
}

// Params returns the locomotion parameters applied to new agents.
func (s *Simulation) Params() steering.Params { return s.params }

// Tick advances the simulation by the configured time step.
func (s *Simulation) Tick() {
	s.Step(s.cfg.Simulation.DT)
}

// Step applies cmds, then advances every agent by dt seconds and runs
// arrival policies.
func (s *Simulation) Step(dt float64, cmds ...Command) {
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseCommands)
	for _, cmd := range cmds {
		cmd(s)
	}

	s.perf.StartPhase(telemetry.PhaseSteer)
	s.updateAgents(dt)

	s.perf.StartPhase(telemetry.PhasePolicy)
	s.handleArrivals()

	s.tick++

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.flushTelemetry()

	s.perf.EndTick()
}

func (s *Simulation) updateAgents(dt float64) {
	query := s.filter.Query()
	for query.Next() {
		_, nav, _, trip, _ := query.Get()
		before := nav.Agent.Position()
		nav.Agent.Update(dt)
		trip.Distance += r3.Norm(r3.Sub(nav.Agent.Position(), before))
	}
}

// handleArrivals records finished trips and asks each arrived agent's
// policy for its next goal. Agents whose chosen goal was unreachable ask
// again on the following tick.
func (s *Simulation) handleArrivals() {
	if len(s.arrived) == 0 && len(s.retry) == 0 {
		return
	}
	arrived, retry := s.arrived, s.retry
	s.arrived, s.retry = nil, nil

	sort.Slice(arrived, func(i, j int) bool { return arrived[i] < arrived[j] })
	for _, id := range arrived {
		if e, ok := s.entities[id]; ok {
			s.recordArrival(id, e)
		}
	}

	pending := append(arrived, retry...)
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	for _, id := range pending {
		e, ok := s.entities[id]
		if !ok {
			continue
		}
		// Given a goal by a command since the retry was queued.
		if s.navMap.Get(e).Agent.State() == steering.Following {
			continue
		}

		s.perf.StartPhase(telemetry.PhasePlan)
		if !s.nextGoal(id) {
			s.retry = append(s.retry, id)
		}
		s.perf.StartPhase(telemetry.PhasePolicy)
	}
}

func (s *Simulation) recordArrival(id uint32, e ecs.Entity) {
	ident := s.identMap.Get(e)
	goal := s.goalMap.Get(e)
	trip := s.tripMap.Get(e)

	ix, iy := goal.IX, goal.IY
	if !goal.Valid {
		// Direct target: report the cell it ended on.
		c := s.grid.CellAtWorld(s.navMap.Get(e).Agent.Position())
		ix, iy = c.IX, c.IY
	}

	tripTicks := s.tick - trip.StartTick
	s.emit(telemetry.NewArrivedEvent(s.tick, id, ix, iy, tripTicks, trip.Distance))
	if err := s.output.WriteArrival(telemetry.ArrivalRecord{
		Tick:      s.tick,
		AgentID:   id,
		Name:      ident.Name,
		GoalX:     ix,
		GoalY:     iy,
		TripTicks: tripTicks,
		TripSec:   float64(tripTicks) * s.cfg.Simulation.DT,
		PathCost:  trip.PathCost,
		Waypoints: trip.Waypoints,
		Distance:  trip.Distance,
		Replans:   goal.Replans,
	}); err != nil {
		s.log.Error("failed to write arrival", zap.Error(err))
	}
	goal.Valid = false
}

// nextGoal asks the agent's policy for a goal and plans toward it.
// Returns false when the policy chose a goal that could not be reached.
func (s *Simulation) nextGoal(id uint32) bool {
	e := s.entities[id]
	policy := s.policies[s.behMap.Get(e).Policy]
	if policy == nil {
		return true
	}
	agent := s.navMap.Get(e).Agent
	ix, iy, ok := policy.NextGoal(PolicyContext{
		AgentID: id,
		Tick:    s.tick,
		Cell:    s.grid.CellAtWorld(agent.Position()),
		Grid:    s.grid,
		Rand:    s.rng,
	})
	if !ok {
		return true
	}
	reachable, err := s.SetGoal(id, ix, iy)
	if err != nil {
		s.log.Warn("policy goal rejected", zap.Uint32("agent", id), zap.Error(err))
		return true
	}
	return reachable
}

// flushTelemetry writes a stats window when one is due.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	pop := telemetry.Population{}
	query := s.filter.Query()
	for query.Next() {
		_, nav, _, _, _ := query.Get()
		pop.Agents++
		if nav.Agent.State() == steering.Following {
			pop.Following++
		} else {
			pop.Idle++
		}
		pop.Speeds = append(pop.Speeds, r3.Norm(nav.Agent.Velocity()))
	}

	stats := s.collector.Flush(s.tick, pop)
	perfStats := s.perf.Stats()

	if s.statsCallback != nil {
		s.statsCallback(stats)
	}
	s.log.Debug("window", zap.Object("stats", stats), zap.Object("perf", perfStats))

	if err := s.output.WriteTelemetry(stats); err != nil {
		s.log.Error("failed to write telemetry", zap.Error(err))
	}
	if err := s.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		s.log.Error("failed to write perf", zap.Error(err))
	}
}

func (s *Simulation) emit(e telemetry.Event) {
	s.collector.Record(e)
	if len(s.events) >= maxPendingEvents {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, e)
}

// Events returns and clears the events recorded since the last call.
func (s *Simulation) Events() []telemetry.Event {
	out := s.events
	s.events = nil
	return out
}

// Agent returns the controller of agent id.
func (s *Simulation) Agent(id uint32) (*steering.Agent, error) {
	e, ok := s.entities[id]
	if !ok {
		return nil, errUnknown(id)
	}
	return s.navMap.Get(e).Agent, nil
}

// AgentIDs returns the IDs of all agents in ascending order.
func (s *Simulation) AgentIDs() []uint32 {
	ids := make([]uint32, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Simulation) Grid() *grid.Grid                 { return s.grid }
func (s *Simulation) Field() *obstacle.Field           { return s.field }
func (s *Simulation) Config() *config.Config           { return s.cfg }
func (s *Simulation) CurrentTick() int32               { return s.tick }
func (s *Simulation) Perf() *telemetry.PerfCollector   { return s.perf }
func (s *Simulation) Output() *telemetry.OutputManager { return s.output }
