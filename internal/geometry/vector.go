// Package geometry provides the 2D vector math, arena bounds and capsule
// obstacles used by the APF engine, along with the clearance/angle queries the
// force field is built on.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// Vec is a point or vector in arena units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

// Mul scales v by s.
func (v Vec) Mul(s float64) Vec { return Vec{v.X * s, v.Y * s} }

// Dot returns the dot product of v and o.
func (v Vec) Dot(o Vec) float64 { return v.X*o.X + v.Y*o.Y }

// Len returns the Euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the distance between v and o.
func (v Vec) Dist(o Vec) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// Angle returns the direction of v in radians.
func (v Vec) Angle() float64 { return math.Atan2(v.Y, v.X) }

// IsZero reports whether v is the zero vector.
func (v Vec) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Point converts v to an orb point.
func (v Vec) Point() orb.Point { return orb.Point{v.X, v.Y} }

// Polar returns the vector of length mag pointing along angle.
func Polar(mag, angle float64) Vec {
	return Vec{math.Cos(angle) * mag, math.Sin(angle) * mag}
}

// WithLen returns v rescaled to length l. The zero vector is returned unchanged.
func (v Vec) WithLen(l float64) Vec {
	n := v.Len()
	if n == 0 {
		return v
	}
	return v.Mul(l / n)
}

// Lerp returns the point a fraction t of the way from v to o.
func (v Vec) Lerp(o Vec, t float64) Vec {
	return Vec{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// Arena is the rectangular play area. The engine never clamps to it; it is
// carried for renderers that need to size their canvas.
type Arena struct {
	Width  float64 `json:"width" mapstructure:"width"`
	Height float64 `json:"height" mapstructure:"height"`
}

// Bound returns the arena rectangle anchored at the origin.
func (a Arena) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{a.Width, a.Height}}
}
