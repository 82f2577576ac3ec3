// Package playback walks recorded agent paths: a deterministic fixed
// arc-length resampler and the kinematic track used for realtime replay.
//
// Playback state lives here, keyed by agent, and never on the agent itself.
package playback

import (
	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/geometry"
)

// Cursor is a position along a recorded path.
type Cursor struct {
	Segment   int     `json:"segment"`   // index of the sample the current segment starts at
	Offset    float64 `json:"offset"`    // distance travelled into the current segment
	Remaining float64 `json:"remaining"` // arc length left to the final sample
	Done      bool    `json:"done"`
}

// NewCursor returns a cursor at the start of p.
func NewCursor(p agent.Path) Cursor {
	return Cursor{Remaining: p.Length}
}

// Advance moves the cursor step units of arc length along p and returns the
// point reached. Whole segments are consumed until the rest of the current
// one is longer than what is left of the step, then the position inside it is
// interpolated. Reaching the last sample clamps to it exactly and sets Done.
//
// A step that is not positive (NaN included) leaves the cursor where it is
// and returns its current point.
func (c *Cursor) Advance(p agent.Path, step float64) geometry.Vec {
	n := p.Len()
	if n == 0 {
		c.Done = true
		return geometry.Vec{}
	}
	if !(step > 0) {
		return c.Point(p)
	}

	left := step
	for c.Segment < n-1 {
		seg := p.Samples[c.Segment+1].Dist
		rest := seg - c.Offset
		if left < rest {
			c.Offset += left
			c.Remaining -= step
			if c.Remaining < 0 {
				c.Remaining = 0
			}
			from, to := p.Samples[c.Segment].Point, p.Samples[c.Segment+1].Point
			return from.Lerp(to, c.Offset/seg)
		}
		left -= rest
		c.Segment++
		c.Offset = 0
	}
	return c.Finish(p)
}

// Point returns the position of the cursor on p.
func (c *Cursor) Point(p agent.Path) geometry.Vec {
	n := p.Len()
	if n == 0 {
		return geometry.Vec{}
	}
	if c.Done || c.Segment >= n-1 {
		last, _ := p.Last()
		return last
	}
	from, to := p.Samples[c.Segment].Point, p.Samples[c.Segment+1].Point
	seg := p.Samples[c.Segment+1].Dist
	if seg == 0 {
		return from
	}
	return from.Lerp(to, c.Offset/seg)
}

// Finish jumps to the final sample.
func (c *Cursor) Finish(p agent.Path) geometry.Vec {
	c.Done = true
	c.Remaining = 0
	if n := p.Len(); n > 0 {
		c.Segment = n - 1
	}
	c.Offset = 0
	last, _ := p.Last()
	return last
}
