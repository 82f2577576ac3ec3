package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/field"
	"github.com/cxd309/apf-engine/internal/geometry"
	"go.uber.org/zap"
)

// ErrNotAttached is returned for live operations on agents the live engine
// does not own.
var ErrNotAttached = errors.New("agent is not attached to the live engine")

// maxTickSpan caps the wall-clock dt of a single tick, in periods, so a
// stalled loop does not integrate one huge step.
const maxTickSpan = 4

type liveOpKind int

const (
	opAttach liveOpKind = iota
	opDetach
	opTarget
	opClear
)

type liveOp struct {
	kind   liveOpKind
	agent  *agent.Agent
	target geometry.Vec
}

// Live steers attached agents toward their targets on every tick. Targets
// may be changed from any goroutine; changes are queued and applied by the
// loop at the start of its next tick.
type Live struct {
	engine *Engine
	field  *field.Field
	period time.Duration
	log    *zap.Logger

	mu      sync.Mutex
	pending []liveOp

	// Owned by the loop goroutine.
	members []*agent.Agent
	ids     map[agent.ID]struct{}
}

// NewLive returns a live engine over e's agents and obstacles, with its own
// force field tuning.
func (e *Engine) NewLive(cfg config.LiveConfig) (*Live, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("live config: %w", err)
	}
	f, err := field.New(field.Params{
		RepulsiveGain:  cfg.RepulsiveGain,
		ObstacleRadius: cfg.ObstacleAvoidanceRadius,
		AgentRadius:    cfg.AgentAvoidanceRadius,
		Ceiling:        cfg.RepulsionCeiling,
	}, e.obstacles)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	return &Live{
		engine: e,
		field:  f,
		period: config.Period(cfg.Frequency),
		log:    e.log.Named("live"),
		ids:    make(map[agent.ID]struct{}),
	}, nil
}

func (l *Live) queue(op liveOp) {
	l.mu.Lock()
	l.pending = append(l.pending, op)
	l.mu.Unlock()
}

func (l *Live) owned(id agent.ID) (*agent.Agent, error) {
	a, err := l.engine.mustAgent(id)
	if err != nil {
		return nil, err
	}
	if a.Driver() != agent.DriverLive {
		return nil, fmt.Errorf("%w: %q", ErrNotAttached, id)
	}
	return a, nil
}

// Attach hands an agent to the live engine. It fails with agent.ErrAgentBusy
// if another driver owns it.
func (l *Live) Attach(id agent.ID) error {
	a, err := l.engine.mustAgent(id)
	if err != nil {
		return err
	}
	if err := a.Claim(agent.DriverLive); err != nil {
		return err
	}
	l.queue(liveOp{kind: opAttach, agent: a})
	return nil
}

// Detach stops steering an agent and releases it at the next tick.
func (l *Live) Detach(id agent.ID) error {
	a, err := l.owned(id)
	if err != nil {
		return err
	}
	l.queue(liveOp{kind: opDetach, agent: a})
	return nil
}

// SetTarget moves an attached agent's target.
func (l *Live) SetTarget(id agent.ID, target geometry.Vec) error {
	a, err := l.owned(id)
	if err != nil {
		return err
	}
	l.queue(liveOp{kind: opTarget, agent: a, target: target})
	return nil
}

// ClearTarget leaves an attached agent idle where it is.
func (l *Live) ClearTarget(id agent.ID) error {
	a, err := l.owned(id)
	if err != nil {
		return err
	}
	l.queue(liveOp{kind: opClear, agent: a})
	return nil
}

func (l *Live) apply() {
	l.mu.Lock()
	ops := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, op := range ops {
		a := op.agent
		_, member := l.ids[a.ID]
		switch op.kind {
		case opAttach:
			if !member {
				l.ids[a.ID] = struct{}{}
				l.members = append(l.members, a)
				l.log.Debug("agent attached", zap.String("agent", a.ID))
			}
		case opDetach:
			if member {
				l.remove(a)
			}
		case opTarget:
			if member {
				a.Retarget(op.target)
			}
		case opClear:
			if member {
				a.UnsetTarget()
			}
		}
		if member || op.kind == opAttach {
			a.Publish()
		}
	}
}

func (l *Live) remove(a *agent.Agent) {
	delete(l.ids, a.ID)
	for i, m := range l.members {
		if m == a {
			l.members = append(l.members[:i], l.members[i+1:]...)
			break
		}
	}
	a.Release(agent.DriverLive)
	a.Publish()
	l.log.Debug("agent detached", zap.String("agent", a.ID))
}

// Members returns the IDs of the agents currently steered. Loop goroutine
// only.
func (l *Live) Members() []agent.ID {
	out := make([]agent.ID, len(l.members))
	for i, a := range l.members {
		out[i] = a.ID
	}
	return out
}

// Tick applies queued changes then advances every attached agent by dt.
// It must not be called concurrently with Run.
func (l *Live) Tick(dt float64) {
	l.apply()
	n := len(l.members)
	if n == 0 {
		return
	}

	bodies := make([]field.Body, n)
	for i, a := range l.members {
		bodies[i] = field.BodyOf(a)
	}
	others := append(bodies[:n:n], l.engine.foreignBodies(l.ids)...)

	acc := make([]geometry.Vec, n)
	for i := range l.members {
		acc[i] = l.field.Forces(bodies[i], others).Total()
	}

	for i, a := range l.members {
		if !bodies[i].HasTarget {
			continue
		}
		a.Move(field.Step(bodies[i].Pos, bodies[i].Vel, acc[i], dt))
		if a.DistanceToTarget() < a.TargetRadius {
			a.SetStatus(agent.StatusFound)
		} else {
			a.SetStatus(agent.StatusSeeking)
		}
		a.Publish()
	}
}

// Run ticks at the configured frequency with wall-clock dt until ctx is
// cancelled, then releases every attached agent.
func (l *Live) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	l.log.Info("live loop started", zap.Duration("period", l.period))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.apply()
			for len(l.members) > 0 {
				l.remove(l.members[0])
			}
			l.log.Info("live loop stopped")
			return nil
		case now := <-ticker.C:
			l.Tick(tickSeconds(now.Sub(last), l.period))
			last = now
		}
	}
}

func tickSeconds(elapsed, period time.Duration) float64 {
	if elapsed > maxTickSpan*period {
		elapsed = maxTickSpan * period
	}
	return elapsed.Seconds()
}
