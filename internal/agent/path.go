package agent

import (
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/paulmach/orb"
)

// Sample is one recorded point of a path.
type Sample struct {
	Point geometry.Vec `json:"point"`
	Dist  float64      `json:"dist"` // distance from the previous sample; 0 for the first
}

// Path is the polyline recorded while an agent searches for its target.
// Samples are only ever appended, so Length never decreases.
type Path struct {
	Samples []Sample `json:"samples"`
	Length  float64  `json:"length"`
}

// NewPath builds a path through the given points in order.
func NewPath(points ...geometry.Vec) Path {
	var p Path
	for _, pt := range points {
		p.Append(pt)
	}
	return p
}

// Append records pt, measuring its distance from the previous sample.
func (p *Path) Append(pt geometry.Vec) {
	var d float64
	if n := len(p.Samples); n > 0 {
		d = p.Samples[n-1].Point.Dist(pt)
	}
	p.Samples = append(p.Samples, Sample{Point: pt, Dist: d})
	p.Length += d
}

// Len returns the number of samples.
func (p Path) Len() int { return len(p.Samples) }

// Last returns the final sample's point. ok is false for an empty path.
func (p Path) Last() (geometry.Vec, bool) {
	if len(p.Samples) == 0 {
		return geometry.Vec{}, false
	}
	return p.Samples[len(p.Samples)-1].Point, true
}

// LineString returns the path as an orb line string.
func (p Path) LineString() orb.LineString {
	ls := make(orb.LineString, len(p.Samples))
	for i, s := range p.Samples {
		ls[i] = s.Point.Point()
	}
	return ls
}

// Clone returns a copy that shares no backing array with p.
func (p Path) Clone() Path {
	return Path{Samples: append([]Sample(nil), p.Samples...), Length: p.Length}
}
