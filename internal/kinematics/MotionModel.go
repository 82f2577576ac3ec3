// Package kinematics defines the MotionModel used to replay recorded paths in
// real time, along with the trapezoidal step that drives it.
//
// A replay accelerates toward cruise speed, holds it, and starts braking once
// the distance left on the path drops below the stopping distance measured at
// the end of the acceleration phase.
package kinematics

// MotionModel is the speed contract a replay follows. Distances are in arena
// units, speeds in units/s and time in seconds.
type MotionModel interface {
	// VMax returns the cruise speed.
	VMax() float64

	// BrakingDistance returns the distance needed to stop from speed v.
	BrakingDistance(v float64) float64

	// AccelerateStep returns the speed after accelerating from v for dt,
	// never above VMax.
	AccelerateStep(v, dt float64) float64

	// DecelerateStep returns the speed after braking from v for dt. stopped
	// is true when braking would take the speed below zero; the returned
	// speed is then 0.
	DecelerateStep(v, dt float64) (newV float64, stopped bool)
}

// Phase describes which part of the trapezoid a replay is in.
type Phase string

const (
	PhaseAccelerating Phase = "accelerating"
	PhaseCruising     Phase = "cruising"
	PhaseDecelerating Phase = "decelerating"
	PhaseArrived      Phase = "arrived"
)

// Motion is the transient speed state of one replay.
type Motion struct {
	Speed    float64 `json:"speed"`
	Stopping float64 `json:"stopping"` // braking distance, refreshed while accelerating
	Phase    Phase   `json:"phase"`
}

// Step advances s by dt given the distance still to travel. It returns the
// new state and the distance to cover this tick. When braking would drive the
// speed negative the replay is finished: the state is PhaseArrived and the
// caller must snap to the end of the path (the final dash).
func Step(m MotionModel, s Motion, remaining, dt float64) (Motion, float64) {
	switch {
	case remaining < s.Stopping:
		v, stopped := m.DecelerateStep(s.Speed, dt)
		if stopped {
			return Motion{Phase: PhaseArrived}, remaining
		}
		s.Speed = v
		s.Phase = PhaseDecelerating
	case s.Speed < m.VMax():
		s.Speed = m.AccelerateStep(s.Speed, dt)
		s.Stopping = m.BrakingDistance(s.Speed)
		s.Phase = PhaseAccelerating
		if s.Speed >= m.VMax() {
			s.Phase = PhaseCruising
		}
	default:
		s.Phase = PhaseCruising
	}
	return s, s.Speed * dt
}
