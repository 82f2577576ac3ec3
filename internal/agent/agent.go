// Package agent defines the point agents moved by the APF engine: their
// physical parameters, mutable state, recorded path and the snapshot they
// publish for concurrent readers.
//
// Physical state is written by exactly one driver at a time (see Claim). The
// driver publishes an immutable State after each update; everyone else reads
// only published snapshots.
package agent

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/google/uuid"
)

// ID is a unique string identifier for an agent.
type ID = string

// Status describes where an agent is in its plan/playback life cycle.
type Status string

const (
	StatusIdle      Status = "idle"      // no target
	StatusSeeking   Status = "seeking"   // target set, path not yet found
	StatusFound     Status = "found"     // discovery reached the target radius
	StatusExhausted Status = "exhausted" // discovery hit the iteration cap
	StatusReached   Status = "reached"   // playback arrived at the path end
)

// Driver identifies which loop currently owns an agent's physical state.
type Driver int32

const (
	DriverNone Driver = iota
	DriverDiscovery
	DriverLive
	DriverPlayer
)

func (d Driver) String() string {
	switch d {
	case DriverNone:
		return "none"
	case DriverDiscovery:
		return "discovery"
	case DriverLive:
		return "live"
	case DriverPlayer:
		return "player"
	default:
		return fmt.Sprintf("driver(%d)", int32(d))
	}
}

var (
	// ErrInvalidParams is returned for non-physical agent parameters.
	ErrInvalidParams = errors.New("invalid agent parameters")
	// ErrAgentBusy is returned when an agent is already owned by another driver.
	ErrAgentBusy = errors.New("agent is owned by another driver")
)

// Params are the static physical and behavioural parameters of an agent.
type Params struct {
	Radius              float64 `json:"radius"`
	TargetRadius        float64 `json:"target_radius"`        // 0 = same as Radius
	Velocity            float64 `json:"velocity"`             // cruise speed during playback
	Acceleration        float64 `json:"acceleration"`         // playback accel/decel rate
	PathfindingVelocity float64 `json:"pathfinding_velocity"` // steering speed during discovery

	// radiusSet keeps an explicit zero radius from being defaulted.
	radiusSet bool
}

// WithRadius returns p with the radius fixed to r, zero included. Use it for
// point agents, since a plain zero Radius means "use the default".
func (p Params) WithRadius(r float64) Params {
	p.Radius = r
	p.radiusSet = true
	return p
}

// DefaultParams returns the parameters used for fields left at zero.
func DefaultParams() Params {
	return Params{
		Radius:              8,
		Velocity:            64,
		Acceleration:        64,
		PathfindingVelocity: 16,
	}
}

// WithDefaults fills zero fields from DefaultParams. TargetRadius falls back
// to the (possibly defaulted) radius, or to the default radius for point
// agents.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.Radius == 0 && !p.radiusSet {
		p.Radius = d.Radius
	}
	if p.Velocity == 0 {
		p.Velocity = d.Velocity
	}
	if p.Acceleration == 0 {
		p.Acceleration = d.Acceleration
	}
	if p.PathfindingVelocity == 0 {
		p.PathfindingVelocity = d.PathfindingVelocity
	}
	if p.TargetRadius == 0 {
		p.TargetRadius = p.Radius
		if p.TargetRadius == 0 {
			p.TargetRadius = d.Radius
		}
	}
	return p
}

// nonNegative and positive reject NaN and +Inf along with out-of-range values.
func nonNegative(x float64) bool {
	return x >= 0 && !math.IsInf(x, 1)
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

// Validate rejects parameters no agent can move with.
func (p Params) Validate() error {
	switch {
	case !nonNegative(p.Radius):
		return fmt.Errorf("%w: radius must not be negative, got %v", ErrInvalidParams, p.Radius)
	case !positive(p.TargetRadius):
		return fmt.Errorf("%w: target_radius must be positive, got %v", ErrInvalidParams, p.TargetRadius)
	case !positive(p.Velocity):
		return fmt.Errorf("%w: velocity must be positive, got %v", ErrInvalidParams, p.Velocity)
	case !positive(p.Acceleration):
		return fmt.Errorf("%w: acceleration must be positive, got %v", ErrInvalidParams, p.Acceleration)
	case !positive(p.PathfindingVelocity):
		return fmt.Errorf("%w: pathfinding_velocity must be positive, got %v", ErrInvalidParams, p.PathfindingVelocity)
	}
	return nil
}

// Agent is a disc-shaped point agent.
type Agent struct {
	ID ID
	Params

	pos    geometry.Vec
	vel    geometry.Vec // meaningful only while target != nil
	target *geometry.Vec
	status Status
	path   Path

	driver    atomic.Int32
	published atomic.Pointer[State]
}

// New creates an idle agent at pos. An empty id is replaced by a random uuid.
func New(id ID, pos geometry.Vec, params Params) (*Agent, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	a := &Agent{ID: id, Params: params, pos: pos, status: StatusIdle}
	a.Publish()
	return a, nil
}

// Claim makes d the agent's driver if it has none.
func (a *Agent) Claim(d Driver) error {
	if a.driver.CompareAndSwap(int32(DriverNone), int32(d)) {
		return nil
	}
	return fmt.Errorf("agent %q claimed by %s: %w", a.ID, a.Driver(), ErrAgentBusy)
}

// Release gives up ownership if d is the current driver.
func (a *Agent) Release(d Driver) {
	a.driver.CompareAndSwap(int32(d), int32(DriverNone))
}

// Driver returns the current owner of the agent's physical state.
func (a *Agent) Driver() Driver { return Driver(a.driver.Load()) }

// The accessors and mutators below belong to the current driver. Other
// goroutines must use Snapshot.

// Position returns the agent's current position.
func (a *Agent) Position() geometry.Vec {
	return a.pos
}

// Status returns the agent's planning or playback status.
func (a *Agent) Status() Status {
	return a.status
}

// Path returns the recorded path. The samples are shared with the agent; use
// Clone to keep them past the next write.
func (a *Agent) Path() Path {
	return a.path
}

// Velocity returns the agent's velocity; ok is false while no target is set.
func (a *Agent) Velocity() (v geometry.Vec, ok bool) { return a.vel, a.target != nil }

// Target returns the current target; ok is false when none is set.
func (a *Agent) Target() (t geometry.Vec, ok bool) {
	if a.target == nil {
		return geometry.Vec{}, false
	}
	return *a.target, true
}

// SetPos teleports the agent.
func (a *Agent) SetPos(p geometry.Vec) { a.pos = p }

// SetTarget sets a new target, zeroes velocity and restarts the recorded
// path at the current position.
func (a *Agent) SetTarget(t geometry.Vec) {
	a.target = &t
	a.vel = geometry.Vec{}
	a.status = StatusSeeking
	a.path = NewPath(a.pos)
}

// Retarget moves the target without touching velocity or the recorded path.
// Used by the live engine where the target follows external input.
func (a *Agent) Retarget(t geometry.Vec) {
	if a.target == nil {
		a.vel = geometry.Vec{}
	}
	a.target = &t
	if a.status == StatusIdle {
		a.status = StatusSeeking
	}
}

// UnsetTarget clears target and velocity. The recorded path is kept.
func (a *Agent) UnsetTarget() {
	a.target = nil
	a.vel = geometry.Vec{}
	a.status = StatusIdle
}

// Move applies an integration result.
func (a *Agent) Move(pos, vel geometry.Vec) {
	a.pos = pos
	if a.target != nil {
		a.vel = vel
	}
}

// DistanceToTarget returns the distance from the agent to its target, or 0
// when no target is set.
func (a *Agent) DistanceToTarget() float64 {
	if a.target == nil {
		return 0
	}
	return a.pos.Dist(*a.target)
}

// Record appends the current position to the path.
func (a *Agent) Record() { a.path.Append(a.pos) }

// MarkFound records the final sample and ends discovery successfully.
func (a *Agent) MarkFound() {
	a.path.Append(a.pos)
	a.status = StatusFound
}

// MarkExhausted ends discovery without reaching the target. The truncated
// path is kept for inspection.
func (a *Agent) MarkExhausted() { a.status = StatusExhausted }

// SetStatus overrides the status. Live mode uses it to flag arrival.
func (a *Agent) SetStatus(s Status) { a.status = s }

// MarkReached places the agent on the final path sample. Agents whose plan was
// exhausted keep that status so callers can tell a truncated replay apart.
func (a *Agent) MarkReached() {
	if last, ok := a.path.Last(); ok {
		a.pos = last
	}
	if a.status != StatusExhausted {
		a.status = StatusReached
	}
}

// Publish makes the current state visible to readers.
func (a *Agent) Publish() {
	s := &State{
		ID:         a.ID,
		Position:   a.pos,
		Radius:     a.Radius,
		Status:     a.status,
		PathLength: a.path.Length,
		Samples:    a.path.Len(),
		Driver:     a.Driver().String(),
	}
	if a.target != nil {
		t, v := *a.target, a.vel
		s.Target = &t
		s.Velocity = &v
	}
	a.published.Store(s)
}

// Snapshot returns the last published state. Safe for concurrent use.
func (a *Agent) Snapshot() State { return *a.published.Load() }
