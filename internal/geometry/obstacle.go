package geometry

import (
	"math"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// DefaultObstacleWidth is the capsule thickness used when none is given.
const DefaultObstacleWidth float64 = 8

// ObstacleID is a unique string identifier for an obstacle.
type ObstacleID = string

// frame is the obstacle geometry together with everything derived from it.
// It is immutable once built; SetPos swaps in a new one.
type frame struct {
	a, b  Vec
	angle float64 // orientation of A->B, radians
	cos   float64 // cos(-angle)
	sin   float64 // sin(-angle)
	ra    Vec     // A in the local frame
	rb    Vec     // B in the local frame
	minX  float64 // projected span in the local frame
	maxX  float64
}

func newFrame(a, b Vec) *frame {
	angle := math.Atan2(b.Y-a.Y, b.X-a.X)
	f := &frame{
		a:     a,
		b:     b,
		angle: angle,
		cos:   math.Cos(-angle),
		sin:   math.Sin(-angle),
	}
	f.ra = f.rotate(a)
	f.rb = f.rotate(b)
	f.minX = math.Min(f.ra.X, f.rb.X)
	f.maxX = math.Max(f.ra.X, f.rb.X)
	return f
}

// rotate maps p into the local frame, where the segment is horizontal.
func (f *frame) rotate(p Vec) Vec {
	return Vec{
		X: p.X*f.cos - p.Y*f.sin,
		Y: p.X*f.sin + p.Y*f.cos,
	}
}

// Obstacle is a capsule: the segment AB thickened by Width.
//
// Endpoints and derived fields are published together, so an obstacle may be
// moved while other goroutines query distances against it.
type Obstacle struct {
	ID    ObstacleID
	Width float64
	geom  atomic.Pointer[frame]
	moved atomic.Pointer[func(*Obstacle)]
}

// NewObstacle builds an obstacle spanning a to b.
func NewObstacle(id ObstacleID, a, b Vec, width float64) *Obstacle {
	o := &Obstacle{ID: id, Width: width}
	o.SetPos(a, b)
	return o
}

// SetPos moves the obstacle, recomputes its cached frame and then notifies
// the OnMove listener, if any.
func (o *Obstacle) SetPos(a, b Vec) {
	o.geom.Store(newFrame(a, b))
	if fn := o.moved.Load(); fn != nil && *fn != nil {
		(*fn)(o)
	}
}

// OnMove registers fn to be called after every SetPos. There is one listener
// per obstacle; a later call replaces the earlier one. The listener runs on
// the goroutine that called SetPos.
func (o *Obstacle) OnMove(fn func(*Obstacle)) {
	o.moved.Store(&fn)
}

// Endpoints returns A and B as last set.
func (o *Obstacle) Endpoints() (Vec, Vec) {
	f := o.geom.Load()
	return f.a, f.b
}

// Angle returns the orientation of the segment A->B in radians.
func (o *Obstacle) Angle() float64 { return o.geom.Load().angle }

// Span returns the segment's projected X extent in its local frame.
func (o *Obstacle) Span() (minX, maxX float64) {
	f := o.geom.Load()
	return f.minX, f.maxX
}

// Bound returns the axis-aligned box of the capsule, width included.
func (o *Obstacle) Bound() orb.Bound {
	f := o.geom.Load()
	return orb.Bound{
		Min: orb.Point{math.Min(f.a.X, f.b.X) - o.Width, math.Min(f.a.Y, f.b.Y) - o.Width},
		Max: orb.Point{math.Max(f.a.X, f.b.X) + o.Width, math.Max(f.a.Y, f.b.Y) + o.Width},
	}
}
