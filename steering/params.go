package steering

import (
	"errors"
	"fmt"
)

// Params are the tunable constants of an agent's locomotion.
type Params struct {
	MaxSpeed          float64 // world units per second
	MaxForce          float64 // max velocity change per tick
	ArrivalEpsilon    float64 // distance at which the final target counts as reached
	TargetRadius      float64 // distance at which an intermediate waypoint is passed
	SlowRadius        float64 // deceleration begins inside this distance of the final target
	ProbeDistance     float64 // avoidance lookahead
	ProbeHeight       float64 // probe origin above the ground
	AvoidanceStrength float64
	TurnRate          float64 // facing blend per tick
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		MaxSpeed:          3,
		MaxForce:          0.1,
		ArrivalEpsilon:    0.1,
		TargetRadius:      0.5,
		SlowRadius:        1,
		ProbeDistance:     1.5,
		ProbeHeight:       0.3,
		AvoidanceStrength: 0.5,
		TurnRate:          0.1,
	}
}

// ErrInvalidParams is returned by Validate.
var ErrInvalidParams = errors.New("steering: invalid params")

// Validate checks that the parameters describe a controller that can move
// and arrive.
func (p Params) Validate() error {
	switch {
	case !(p.MaxSpeed > 0):
		return fmt.Errorf("%w: max speed %v must be > 0", ErrInvalidParams, p.MaxSpeed)
	case !(p.MaxForce > 0):
		return fmt.Errorf("%w: max force %v must be > 0", ErrInvalidParams, p.MaxForce)
	case !(p.ArrivalEpsilon > 0):
		return fmt.Errorf("%w: arrival epsilon %v must be > 0", ErrInvalidParams, p.ArrivalEpsilon)
	case p.TargetRadius < p.ArrivalEpsilon:
		return fmt.Errorf("%w: target radius %v below arrival epsilon %v", ErrInvalidParams, p.TargetRadius, p.ArrivalEpsilon)
	case p.SlowRadius < 0, p.ProbeDistance < 0, p.AvoidanceStrength < 0:
		return fmt.Errorf("%w: radii and strengths must be >= 0", ErrInvalidParams)
	case !(p.TurnRate > 0) || p.TurnRate > 2:
		return fmt.Errorf("%w: turn rate %v must be in (0, 2]", ErrInvalidParams, p.TurnRate)
	}
	return nil
}
