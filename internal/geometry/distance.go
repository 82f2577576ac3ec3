package geometry

import "math"

// DistanceToObstacle returns the clearance between a disc of the given radius
// centred at p and the obstacle, and the direction pointing away from the
// obstacle.
//
// The point is rotated into the obstacle frame. When its X lies within the
// segment's span (both ends inclusive, so the perpendicular branch wins ties
// at the endpoints) the distance is the Y offset and the angle is normal to
// the segment. Otherwise the nearer endpoint is used. In both cases
// width+radius is subtracted and the result clamped at zero.
func DistanceToObstacle(p Vec, radius float64, o *Obstacle) (distance, angle float64) {
	f := o.geom.Load()
	rp := f.rotate(p)

	if f.minX <= rp.X && rp.X <= f.maxX {
		dy := rp.Y - f.ra.Y
		distance = math.Abs(dy)
		angle = f.angle + math.Copysign(math.Pi/2, dy)
	} else {
		end := f.b
		if math.Abs(rp.X-f.ra.X) < math.Abs(rp.X-f.rb.X) {
			end = f.a
		}
		d := p.Sub(end)
		distance = d.Len()
		angle = d.Angle()
	}

	distance -= o.Width + radius
	if distance < 0 {
		distance = 0
	}
	return distance, angle
}

// DistanceToAgent returns the clearance between two discs and the direction
// from q's centre toward p's. ok is false when the centres coincide and no
// direction exists.
func DistanceToAgent(p Vec, rp float64, q Vec, rq float64) (distance, angle float64, ok bool) {
	d := p.Sub(q)
	raw := d.Len()
	if raw == 0 {
		return 0, 0, false
	}
	distance = raw - rp - rq
	if distance < 0 {
		distance = 0
	}
	return distance, d.Angle(), true
}
