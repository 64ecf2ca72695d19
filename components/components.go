// Package components defines ECS components for the simulation.
package components

import (
	"github.com/pthm-cable/stride/steering"
)

// Identity is the stable external handle of an agent.
type Identity struct {
	ID   uint32
	Name string
}

// Navigator owns the agent's locomotion controller.
type Navigator struct {
	Agent *steering.Agent
}

// Goal is the grid cell the agent is currently planning toward.
type Goal struct {
	IX, IY  int
	Valid   bool  // False when the agent has no grid goal (idle or direct target)
	Replans int32 // Re-plans caused by obstacle edits on the current trip
}

// Trip tracks the current leg for arrival telemetry.
type Trip struct {
	StartTick int32
	PathCost  float64
	Waypoints int
	Distance  float64 // Ground distance travelled so far
}

// Behavior names the arrival policy applied to the agent.
type Behavior struct {
	Policy string
}
