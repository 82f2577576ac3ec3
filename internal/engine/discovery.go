package engine

import (
	"fmt"
	"time"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/field"
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/cxd309/apf-engine/internal/playback"
	"go.uber.org/zap"
)

// Tick is what a discovery pass saw. Bodies, Forces and Seeking are indexed
// alike and reused between passes.
type Tick struct {
	Iteration int
	Bodies    []field.Body
	Forces    []field.Forces
	Seeking   []bool
}

// TickObserver receives every discovery pass on the planning goroutine.
type TickObserver func(Tick)

// Outcome is the result of discovery for one agent.
type Outcome struct {
	Agent      agent.ID     `json:"agent"`
	Status     agent.Status `json:"status"`
	PathLength float64      `json:"path_length"`
	Samples    int          `json:"samples"`
}

// Report summarises one discovery run.
type Report struct {
	Iterations int           `json:"iterations"` // passes executed
	Found      int           `json:"found"`
	Exhausted  int           `json:"exhausted"`
	Elapsed    time.Duration `json:"elapsed"`
	Outcomes   []Outcome     `json:"outcomes"`
}

// Complete reports whether no agent hit the iteration cap.
func (r Report) Complete() bool { return r.Exhausted == 0 }

// FindPath runs discovery over every agent no other driver owns. It blocks
// until all of them have found their target or the iteration cap is reached.
func (e *Engine) FindPath() (Report, error) {
	if !e.planning.CompareAndSwap(false, true) {
		return Report{}, ErrPlanningInProgress
	}
	defer e.planning.Store(false)

	var claimed []*agent.Agent
	for _, a := range e.Agents() {
		if err := a.Claim(agent.DriverDiscovery); err != nil {
			e.log.Debug("skipping agent owned by another driver", zap.String("agent", a.ID), zap.Stringer("driver", a.Driver()))
			continue
		}
		claimed = append(claimed, a)
	}
	defer func() {
		for _, a := range claimed {
			a.Release(agent.DriverDiscovery)
		}
	}()

	return e.plan(claimed), nil
}

// Plan runs discovery over agents the caller already owns.
func (e *Engine) Plan(agents []*agent.Agent) (Report, error) {
	if !e.planning.CompareAndSwap(false, true) {
		return Report{}, ErrPlanningInProgress
	}
	defer e.planning.Store(false)
	return e.plan(agents), nil
}

func (e *Engine) plan(agents []*agent.Agent) Report {
	start := time.Now()
	dt := 1 / e.cfg.Frequency
	n := len(agents)

	seeking := make([]bool, n)
	members := make(map[agent.ID]struct{}, n)
	found := 0
	for i, a := range agents {
		members[a.ID] = struct{}{}
		_, hasTarget := a.Target()
		switch {
		case !hasTarget, a.Status() == agent.StatusFound, a.Status() == agent.StatusReached:
			found++
		default:
			// Exhausted agents resume from where the last run left them.
			a.SetStatus(agent.StatusSeeking)
			seeking[i] = true
		}
	}

	e.log.Info("planning started", zap.Int("agents", n), zap.Int("seeking", n-found))

	bodies := make([]field.Body, n)
	forces := make([]field.Forces, n)
	iter := 1
	for found != n && iter < e.cfg.MaxIterations {
		// Every agent sees the others where they stood at the start of
		// the pass.
		for i, a := range agents {
			bodies[i] = field.BodyOf(a)
		}
		others := append(bodies[:n:n], e.foreignBodies(members)...)

		for i := range agents {
			if !seeking[i] {
				forces[i] = field.Forces{}
				continue
			}
			forces[i] = e.field.Forces(bodies[i], others)
		}
		if e.observer != nil {
			e.observer(Tick{Iteration: iter, Bodies: bodies, Forces: forces, Seeking: seeking})
		}

		sample := iter%e.cfg.Resolution == 0
		for i, a := range agents {
			if !seeking[i] {
				continue
			}
			a.Move(field.Step(bodies[i].Pos, bodies[i].Vel, forces[i].Total(), dt))
			switch {
			case a.DistanceToTarget() < a.TargetRadius:
				a.MarkFound()
				seeking[i] = false
				found++
				a.Publish()
			case sample:
				a.Record()
				a.Publish()
			}
		}
		iter++
	}

	rep := Report{Iterations: iter - 1, Outcomes: make([]Outcome, n)}
	for i, a := range agents {
		if seeking[i] {
			a.MarkExhausted()
			e.log.Warn("agent exhausted iteration budget",
				zap.String("agent", a.ID),
				zap.Int("max_iterations", e.cfg.MaxIterations),
				zap.Float64("distance_to_target", a.DistanceToTarget()))
		}
		a.Publish()

		switch a.Status() {
		case agent.StatusFound:
			rep.Found++
		case agent.StatusExhausted:
			rep.Exhausted++
		}
		p := a.Path()
		rep.Outcomes[i] = Outcome{Agent: a.ID, Status: a.Status(), PathLength: p.Length, Samples: p.Len()}
	}
	rep.Elapsed = time.Since(start)

	e.log.Info("planning finished",
		zap.Int("iterations", rep.Iterations),
		zap.Int("found", rep.Found),
		zap.Int("exhausted", rep.Exhausted),
		zap.Duration("elapsed", rep.Elapsed))
	return rep
}

// WalkPaths resamples every agent's recorded path at a fixed arc-length step.
func (e *Engine) WalkPaths(step float64) (map[agent.ID][]geometry.Vec, error) {
	if e.planning.Load() {
		return nil, ErrPlanningInProgress
	}

	out := make(map[agent.ID][]geometry.Vec)
	for _, a := range e.Agents() {
		if err := a.Claim(agent.DriverDiscovery); err != nil {
			return nil, err
		}
		pts, err := playback.Walk(a.Path(), step)
		a.Release(agent.DriverDiscovery)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", a.ID, err)
		}
		out[a.ID] = pts
	}
	return out, nil
}
