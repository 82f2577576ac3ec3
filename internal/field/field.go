// Package field implements the artificial potential field: a steering term
// pulling each agent toward its target plus inverse-square repulsion from
// nearby obstacles and agents, and the fixed-step integrator shared by the
// discovery and live engines.
package field

import (
	"fmt"
	"math"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/geometry"
)

// Params tunes the repulsive terms.
type Params struct {
	RepulsiveGain  float64 // scales pv*gain/d²
	ObstacleRadius float64 // clearance below which obstacles repel
	AgentRadius    float64 // clearance below which agents repel
	Ceiling        float64 // cap on a single repulsive magnitude; used as-is at zero clearance
}

// Validate rejects parameters that would yield negative or unbounded forces.
func (p Params) Validate() error {
	switch {
	case p.RepulsiveGain < 0:
		return fmt.Errorf("repulsive gain must not be negative, got %v", p.RepulsiveGain)
	case p.ObstacleRadius < 0:
		return fmt.Errorf("obstacle avoidance radius must not be negative, got %v", p.ObstacleRadius)
	case p.AgentRadius < 0:
		return fmt.Errorf("agent avoidance radius must not be negative, got %v", p.AgentRadius)
	case p.Ceiling <= 0 || math.IsInf(p.Ceiling, 0):
		return fmt.Errorf("repulsion ceiling must be positive and finite, got %v", p.Ceiling)
	}
	return nil
}

// magnitude returns the repulsive magnitude at clearance d.
func (p Params) magnitude(speed, d float64) float64 {
	if d <= 0 {
		return p.Ceiling
	}
	return math.Min(speed*p.RepulsiveGain/(d*d), p.Ceiling)
}

// Body is the slice of agent state the field reads. Passes build all bodies
// before moving anyone so that every agent sees the same instant.
type Body struct {
	ID        agent.ID
	Pos       geometry.Vec
	Vel       geometry.Vec
	Target    geometry.Vec
	HasTarget bool
	Radius    float64
	Speed     float64 // pathfinding velocity
}

// BodyOf captures a's current state. Must be called by a's driver.
func BodyOf(a *agent.Agent) Body {
	b := Body{
		ID:     a.ID,
		Pos:    a.Position(),
		Radius: a.Radius,
		Speed:  a.PathfindingVelocity,
	}
	b.Target, b.HasTarget = a.Target()
	if b.HasTarget {
		b.Vel, _ = a.Velocity()
	}
	return b
}

// BodyOfState builds a repelling-only body from a published snapshot, for
// agents owned by another driver.
func BodyOfState(s agent.State) Body {
	return Body{ID: s.ID, Pos: s.Position, Radius: s.Radius}
}

// Forces is an acceleration split by source.
type Forces struct {
	Attractive geometry.Vec
	Obstacles  geometry.Vec
	Agents     geometry.Vec
	// Repelled counts the obstacles and agents that contributed.
	Repelled int
}

// Total returns the resulting acceleration.
func (f Forces) Total() geometry.Vec {
	return f.Attractive.Add(f.Obstacles).Add(f.Agents)
}

// Compute returns the acceleration on b from its target, the given obstacles
// and the other bodies. Bodies sharing b's ID are ignored. It has no side
// effects.
func Compute(p Params, b Body, obstacles []*geometry.Obstacle, others []Body) Forces {
	var f Forces
	if !b.HasTarget {
		return f
	}

	// Steering: desired velocity minus current velocity. Skipped on the
	// target itself, where the direction is undefined.
	if to := b.Target.Sub(b.Pos); !to.IsZero() {
		f.Attractive = to.WithLen(b.Speed).Sub(b.Vel)
	}

	for _, o := range obstacles {
		d, angle := geometry.DistanceToObstacle(b.Pos, b.Radius, o)
		if d < p.ObstacleRadius {
			f.Obstacles = f.Obstacles.Add(geometry.Polar(p.magnitude(b.Speed, d), angle))
			f.Repelled++
		}
	}

	for _, other := range others {
		if other.ID == b.ID {
			continue
		}
		d, angle, ok := geometry.DistanceToAgent(b.Pos, b.Radius, other.Pos, other.Radius)
		if ok && d < p.AgentRadius {
			f.Agents = f.Agents.Add(geometry.Polar(p.magnitude(b.Speed, d), angle))
			f.Repelled++
		}
	}
	return f
}

// Field evaluates forces against an indexed obstacle set.
type Field struct {
	params    Params
	obstacles *ObstacleIndex
}

// New returns a Field reading obstacles from idx.
func New(params Params, idx *ObstacleIndex) (*Field, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Field{params: params, obstacles: idx}, nil
}

// Forces is Compute with obstacles limited to those whose bounds come within
// the avoidance reach of b.
func (f *Field) Forces(b Body, others []Body) Forces {
	near := f.obstacles.Near(b.Pos, f.params.ObstacleRadius+b.Radius)
	return Compute(f.params, b, near, others)
}

// Step integrates one fixed step under constant acceleration:
// p += v*dt + a*dt²/2, v += a*dt.
func Step(pos, vel, acc geometry.Vec, dt float64) (geometry.Vec, geometry.Vec) {
	pos = pos.Add(vel.Mul(dt)).Add(acc.Mul(dt * dt / 2))
	vel = vel.Add(acc.Mul(dt))
	return pos, vel
}
