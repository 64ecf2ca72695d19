package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	plansOK         int
	plansFailed     int
	arrivals        int
	replans         int
	obstaclesPlaced int
	cellsBlocked    int
	spawned         int
	removed         int

	expandedTotal  int
	waypointsTotal int
	costTotal      float64
	tripSeconds    []float64
	tripDistance   []float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// Record folds one event into the current window.
func (c *Collector) Record(e Event) {
	switch e.Type {
	case EventPathPlanned:
		c.plansOK++
		c.expandedTotal += e.Expanded
		c.waypointsTotal += e.Waypoints
		c.costTotal += e.Cost
	case EventPathFailed:
		c.plansFailed++
		c.expandedTotal += e.Expanded
	case EventArrived:
		c.arrivals++
		c.tripSeconds = append(c.tripSeconds, float64(e.TripTicks)*c.dt)
		c.tripDistance = append(c.tripDistance, e.Distance)
	case EventReplanned:
		c.replans++
	case EventObstaclePlaced:
		c.obstaclesPlaced++
		c.cellsBlocked += e.Blocked
	case EventSpawned:
		c.spawned++
	case EventRemoved:
		c.removed++
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Population is the agent census sampled at window end.
type Population struct {
	Agents    int
	Following int
	Idle      int
	Speeds    []float64 // |velocity| of every agent
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, pop Population) WindowStats {
	var failRate, meanExpanded, meanWaypoints, meanCost float64
	searches := c.plansOK + c.plansFailed
	if searches > 0 {
		failRate = float64(c.plansFailed) / float64(searches)
		meanExpanded = float64(c.expandedTotal) / float64(searches)
	}
	if c.plansOK > 0 {
		meanWaypoints = float64(c.waypointsTotal) / float64(c.plansOK)
		meanCost = c.costTotal / float64(c.plansOK)
	}

	tripMean, tripP10, tripP50, tripP90 := ComputeDistribution(c.tripSeconds)
	distMean, _, _, _ := ComputeDistribution(c.tripDistance)
	speedMean, _, _, speedP90 := ComputeDistribution(pop.Speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Agents:    pop.Agents,
		Following: pop.Following,
		Idle:      pop.Idle,

		PlansOK:         c.plansOK,
		PlansFailed:     c.plansFailed,
		FailRate:        failRate,
		MeanExpanded:    meanExpanded,
		MeanWaypoints:   meanWaypoints,
		MeanPathCost:    meanCost,
		Arrivals:        c.arrivals,
		Replans:         c.replans,
		ObstaclesPlaced: c.obstaclesPlaced,
		CellsBlocked:    c.cellsBlocked,
		Spawned:         c.spawned,
		Removed:         c.removed,

		TripSecMean:  tripMean,
		TripSecP10:   tripP10,
		TripSecP50:   tripP50,
		TripSecP90:   tripP90,
		TripDistMean: distMean,

		SpeedMean: speedMean,
		SpeedP90:  speedP90,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.plansOK = 0
	c.plansFailed = 0
	c.arrivals = 0
	c.replans = 0
	c.obstaclesPlaced = 0
	c.cellsBlocked = 0
	c.spawned = 0
	c.removed = 0
	c.expandedTotal = 0
	c.waypointsTotal = 0
	c.costTotal = 0
	c.tripSeconds = c.tripSeconds[:0]
	c.tripDistance = c.tripDistance[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
