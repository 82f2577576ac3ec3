package playback

import (
	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/cxd309/apf-engine/internal/kinematics"
)

// Track is the realtime replay state of one agent: where it is on its path
// and how fast it is moving.
type Track struct {
	Agent  agent.ID                        `json:"agent"`
	Cursor Cursor                          `json:"cursor"`
	Motion kinematics.Motion               `json:"motion"`
	Model  kinematics.ConstantAcceleration `json:"model"`
}

// NewTrack starts a replay of a's recorded path from rest.
func NewTrack(a *agent.Agent) *Track {
	return &Track{
		Agent:  a.ID,
		Cursor: NewCursor(a.Path()),
		Model:  kinematics.Symmetric(a.Acceleration, a.Params.Velocity),
	}
}

// Done reports whether the replay has reached the end of the path.
func (t *Track) Done() bool { return t.Cursor.Done }

// Step advances the replay by dt along p and returns the new position.
func (t *Track) Step(p agent.Path, dt float64) geometry.Vec {
	if t.Cursor.Done {
		return t.Cursor.Finish(p)
	}
	var d float64
	t.Motion, d = kinematics.Step(t.Model, t.Motion, t.Cursor.Remaining, dt)
	if t.Motion.Phase == kinematics.PhaseArrived {
		return t.Cursor.Finish(p)
	}
	pos := t.Cursor.Advance(p, d)
	if t.Cursor.Done {
		t.Motion = kinematics.Motion{Phase: kinematics.PhaseArrived}
	}
	return pos
}
