package playback

import (
	"errors"
	"fmt"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/geometry"
)

// ErrInvalidStep is returned for step sizes that would never drain a path.
var ErrInvalidStep = errors.New("step size must be positive")

// Walk resamples p at a fixed arc-length step. The result starts with the
// first sample and ends with the last one; every point in between is exactly
// step further along the path than its predecessor.
func Walk(p agent.Path, step float64) ([]geometry.Vec, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidStep, step)
	}
	if p.Len() == 0 {
		return nil, nil
	}

	out := make([]geometry.Vec, 0, int(p.Length/step)+2)
	out = append(out, p.Samples[0].Point)
	c := NewCursor(p)
	for !c.Done {
		out = append(out, c.Advance(p, step))
	}
	return out, nil
}

// Resampler steps agents along their recorded paths by a fixed arc length per
// call, ignoring wall-clock time. It keeps one cursor per agent.
//
// Callers must own the agents they advance (see agent.Claim).
type Resampler struct {
	cursors map[agent.ID]*Cursor
}

// NewResampler returns a resampler with no cursors.
func NewResampler() *Resampler {
	return &Resampler{cursors: make(map[agent.ID]*Cursor)}
}

// Advance moves a by step along its path and returns the new position. On the
// call that reaches the end the agent is marked reached and its cursor is
// dropped; a later call starts a new walk from the beginning of the path.
// A step that is not positive fails with ErrInvalidStep and leaves a alone.
func (r *Resampler) Advance(a *agent.Agent, step float64) (geometry.Vec, error) {
	if !(step > 0) {
		return a.Position(), fmt.Errorf("%w, got %v", ErrInvalidStep, step)
	}
	path := a.Path()
	c, ok := r.cursors[a.ID]
	if !ok {
		nc := NewCursor(path)
		c = &nc
		r.cursors[a.ID] = c
	}

	pos := c.Advance(path, step)
	a.SetPos(pos)
	if c.Done {
		a.MarkReached()
		delete(r.cursors, a.ID)
	}
	a.Publish()
	return pos, nil
}

// Cursor returns the cursor for id, if a walk is in progress.
func (r *Resampler) Cursor(id agent.ID) (Cursor, bool) {
	c, ok := r.cursors[id]
	if !ok {
		return Cursor{}, false
	}
	return *c, true
}

// Reset drops the cursor for id.
func (r *Resampler) Reset(id agent.ID) { delete(r.cursors, id) }
