// Package obstacle holds static obstacle geometry: a physics world for probe
// ray casts and the rasterizer that marks grid cells unreachable.
package obstacle

import (
	"errors"
	"fmt"
	"math"

	"github.com/ByteArena/box2d"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/stride/steering"
)

// Kind is the geometric type of a Shape.
type Kind uint8

const (
	Box Kind = iota
	Circle
)

func (k Kind) String() string {
	switch k {
	case Box:
		return "box"
	case Circle:
		return "circle"
	}
	return "unknown"
}

// ParseKind maps "box" and "circle" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "box":
		return Box, nil
	case "circle":
		return Circle, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, s)
}

// ErrInvalidShape is returned for shapes with non-positive extents.
var ErrInvalidShape = errors.New("obstacle: invalid shape")

// Shape is an axis-aligned box or a circle standing on the ground plane.
// Obstacles are treated as infinitely tall.
type Shape struct {
	Kind        Kind
	Center      r3.Vec // Y ignored
	HalfExtents r3.Vec // Box only, X and Z used
	Radius      float64
}

// Validate checks extents for the shape's kind.
func (s Shape) Validate() error {
	switch s.Kind {
	case Box:
		if !(s.HalfExtents.X > 0) || !(s.HalfExtents.Z > 0) {
			return fmt.Errorf("%w: box half extents %v", ErrInvalidShape, s.HalfExtents)
		}
	case Circle:
		if !(s.Radius > 0) {
			return fmt.Errorf("%w: circle radius %v", ErrInvalidShape, s.Radius)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidShape, s.Kind)
	}
	return nil
}

// Field is a zero-gravity box2d world of static obstacle bodies. The ground
// plane's (X, Z) maps to box2d's (X, Y).
type Field struct {
	world  box2d.B2World
	shapes []Shape
}

// NewField creates an empty obstacle field.
func NewField() *Field {
	gravity := box2d.MakeB2Vec2(0.0, 0.0)
	return &Field{world: box2d.MakeB2World(gravity)}
}

// Add places a static obstacle and returns its index.
func (f *Field) Add(s Shape) (int, error) {
	if err := s.Validate(); err != nil {
		return -1, err
	}
	s.Center.Y = 0

	bdDef := box2d.MakeB2BodyDef()
	bdDef.Type = box2d.B2BodyType.B2_staticBody
	bdDef.Position.Set(s.Center.X, s.Center.Z)
	body := f.world.CreateBody(&bdDef)

	fd := box2d.MakeB2FixtureDef()
	switch s.Kind {
	case Box:
		polygon := box2d.MakeB2PolygonShape()
		polygon.SetAsBox(s.HalfExtents.X, s.HalfExtents.Z)
		fd.Shape = &polygon
	case Circle:
		circle := box2d.MakeB2CircleShape()
		circle.M_radius = s.Radius
		fd.Shape = &circle
	}
	fd.Density = 0.0
	body.CreateFixtureFromDef(&fd)

	index := len(f.shapes)
	body.SetUserData(index)
	f.shapes = append(f.shapes, s)
	return index, nil
}

// Shapes returns the obstacles in insertion order.
func (f *Field) Shapes() []Shape { return f.shapes }

// Len returns the number of obstacles.
func (f *Field) Len() int { return len(f.shapes) }

// Probe casts a ray along dir, flattened onto the ground plane, and returns
// the closest obstacle within maxDist. It implements steering.Prober.
func (f *Field) Probe(origin, dir r3.Vec, maxDist float64) (steering.Hit, bool) {
	dir.Y = 0
	n := r3.Norm(dir)
	if n == 0 || maxDist <= 0 || len(f.shapes) == 0 {
		return steering.Hit{}, false
	}
	dir = r3.Scale(1/n, dir)

	p1 := box2d.MakeB2Vec2(origin.X, origin.Z)
	p2 := box2d.MakeB2Vec2(origin.X+dir.X*maxDist, origin.Z+dir.Z*maxDist)

	best := math.Inf(1)
	var hit steering.Hit
	found := false

	f.world.RayCast(func(fixture *box2d.B2Fixture, point, normal box2d.B2Vec2, fraction float64) float64 {
		if fraction >= best {
			return best
		}
		body := fixture.GetBody()
		if _, ok := body.GetUserData().(int); !ok {
			return -1
		}
		center := body.GetPosition()
		best = fraction
		found = true
		hit = steering.Hit{
			Point:    r3.Vec{X: point.X, Y: origin.Y, Z: point.Y},
			Obstacle: r3.Vec{X: center.X, Z: center.Y},
			Distance: fraction * maxDist,
		}
		// Clip the ray so only closer fixtures are reported
		return fraction
	}, p1, p2)

	return hit, found
}

var _ steering.Prober = (*Field)(nil)
