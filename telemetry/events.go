// Package telemetry provides navigation health tracking, timing and CSV output.
package telemetry

// EventType identifies telemetry events.
type EventType uint8

const (
	EventPathPlanned EventType = iota
	EventPathFailed
	EventArrived
	EventReplanned
	EventObstaclePlaced
	EventSpawned
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventPathPlanned:
		return "path_planned"
	case EventPathFailed:
		return "path_failed"
	case EventArrived:
		return "arrived"
	case EventReplanned:
		return "replanned"
	case EventObstaclePlaced:
		return "obstacle_placed"
	case EventSpawned:
		return "spawned"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Event represents a single telemetry event.
type Event struct {
	Type    EventType
	Tick    int32
	AgentID uint32

	// Optional fields depending on event type
	IX, IY    int     // goal cell (plan/arrive) or obstacle cell
	Waypoints int     // path length
	Cost      float64 // path cost
	Expanded  int     // nodes expanded by the search
	Blocked   int     // cells newly blocked by an obstacle
	TripTicks int32   // ticks from plan to arrival
	Distance  float64 // ground distance travelled on the trip
}

// NewPathPlannedEvent creates an event for a successful search.
func NewPathPlannedEvent(tick int32, agentID uint32, ix, iy, waypoints int, cost float64, expanded int) Event {
	return Event{
		Type:      EventPathPlanned,
		Tick:      tick,
		AgentID:   agentID,
		IX:        ix,
		IY:        iy,
		Waypoints: waypoints,
		Cost:      cost,
		Expanded:  expanded,
	}
}

// NewPathFailedEvent creates an event for an unreachable goal.
func NewPathFailedEvent(tick int32, agentID uint32, ix, iy, expanded int) Event {
	return Event{
		Type:     EventPathFailed,
		Tick:     tick,
		AgentID:  agentID,
		IX:       ix,
		IY:       iy,
		Expanded: expanded,
	}
}

// NewArrivedEvent creates an arrival event.
func NewArrivedEvent(tick int32, agentID uint32, ix, iy int, tripTicks int32, distance float64) Event {
	return Event{
		Type:      EventArrived,
		Tick:      tick,
		AgentID:   agentID,
		IX:        ix,
		IY:        iy,
		TripTicks: tripTicks,
		Distance:  distance,
	}
}

// NewReplannedEvent creates an event for a re-plan forced by an obstacle edit.
func NewReplannedEvent(tick int32, agentID uint32, waypoints int, cost float64) Event {
	return Event{
		Type:      EventReplanned,
		Tick:      tick,
		AgentID:   agentID,
		Waypoints: waypoints,
		Cost:      cost,
	}
}

// NewObstaclePlacedEvent creates an obstacle edit event.
func NewObstaclePlacedEvent(tick int32, ix, iy, blocked int) Event {
	return Event{
		Type:    EventObstaclePlaced,
		Tick:    tick,
		IX:      ix,
		IY:      iy,
		Blocked: blocked,
	}
}

// NewSpawnedEvent creates an agent spawn event.
func NewSpawnedEvent(tick int32, agentID uint32, ix, iy int) Event {
	return Event{Type: EventSpawned, Tick: tick, AgentID: agentID, IX: ix, IY: iy}
}

// NewRemovedEvent creates an agent removal event.
func NewRemovedEvent(tick int32, agentID uint32) Event {
	return Event{Type: EventRemoved, Tick: tick, AgentID: agentID}
}
