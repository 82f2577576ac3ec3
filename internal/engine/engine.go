// Package engine owns the agents and obstacles of a scene and runs the loops
// that move them.
//
// Three drivers share one force field and one integrator:
//
//  1. Discovery - FindPath integrates every seeking agent at a fixed step
//     until each one is inside its target radius or the iteration cap is hit,
//     recording a sampled path as it goes.
//
//  2. Player - replays discovered paths in real time with trapezoidal speed
//     profiles, one queued batch of targets at a time.
//
//  3. Live - steers attached agents continuously toward targets that may
//     change on every tick. Nothing is recorded.
//
// Each agent is owned by at most one driver at a time. Other goroutines only
// read the snapshots a driver publishes.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/field"
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/cxd309/apf-engine/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrPlanningInProgress is returned when discovery is started while
	// another run on the same engine has not finished.
	ErrPlanningInProgress = errors.New("path planning already in progress")
	// ErrUnknownAgent is returned for agent IDs the engine does not hold.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrDuplicateAgent is returned when an agent ID is already in use.
	ErrDuplicateAgent = errors.New("duplicate agent id")
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to the process-wide logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTickObserver registers fn to be called after forces are computed on
// every discovery pass.
func WithTickObserver(fn TickObserver) Option {
	return func(e *Engine) { e.observer = fn }
}

// Engine holds a scene and runs discovery over it.
type Engine struct {
	cfg   config.EngineConfig
	arena geometry.Arena
	log   *zap.Logger

	obstacles *field.ObstacleIndex
	field     *field.Field

	mu     sync.RWMutex
	agents []*agent.Agent
	byID   map[agent.ID]*agent.Agent

	planning atomic.Bool
	observer TickObserver
}

// New builds an empty engine. Invalid configuration is rejected with an error
// wrapping config.ErrInvalidConfig.
func New(cfg config.EngineConfig, arena geometry.Arena, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if arena.Width < 0 || arena.Height < 0 {
		return nil, fmt.Errorf("%w: arena size must not be negative, got %vx%v", config.ErrInvalidConfig, arena.Width, arena.Height)
	}

	idx := field.NewObstacleIndex()
	f, err := field.New(field.Params{
		RepulsiveGain:  cfg.RepulsiveGain,
		ObstacleRadius: cfg.ObstacleAvoidanceRadius,
		AgentRadius:    cfg.AgentAvoidanceRadius,
		Ceiling:        cfg.RepulsionCeiling,
	}, idx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	e := &Engine{
		cfg:       cfg,
		arena:     arena,
		log:       observability.GetLogger(),
		obstacles: idx,
		field:     f,
		byID:      make(map[agent.ID]*agent.Agent),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("engine")
	return e, nil
}

// Config returns the discovery configuration.
func (e *Engine) Config() config.EngineConfig { return e.cfg }

// Arena returns the arena size.
func (e *Engine) Arena() geometry.Arena { return e.arena }

// NewObstacle creates and adds an obstacle with a random ID.
func (e *Engine) NewObstacle(a, b geometry.Vec, width float64) (*geometry.Obstacle, error) {
	o := geometry.NewObstacle(uuid.NewString(), a, b, width)
	if err := e.AddObstacle(o); err != nil {
		return nil, err
	}
	return o, nil
}

// AddObstacle adds o to the scene.
func (e *Engine) AddObstacle(o *geometry.Obstacle) error {
	if o.Width < 0 {
		return fmt.Errorf("%w: obstacle %q width must not be negative, got %v", config.ErrInvalidConfig, o.ID, o.Width)
	}
	if err := e.obstacles.Add(o); err != nil {
		return fmt.Errorf("adding obstacle: %w", err)
	}
	return nil
}

// MoveObstacle repositions an obstacle. Safe while loops are running.
func (e *Engine) MoveObstacle(id geometry.ObstacleID, a, b geometry.Vec) error {
	return e.obstacles.Move(id, a, b)
}

// Obstacles returns the obstacles in insertion order.
func (e *Engine) Obstacles() []*geometry.Obstacle { return e.obstacles.All() }

// NewAgent creates and adds an idle agent.
func (e *Engine) NewAgent(id agent.ID, pos geometry.Vec, params agent.Params) (*agent.Agent, error) {
	a, err := agent.New(id, pos, params)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %q: %w", config.ErrInvalidConfig, id, err)
	}
	if err := e.AddAgent(a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddAgent adds a to the scene.
func (e *Engine) AddAgent(a *agent.Agent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.byID[a.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAgent, a.ID)
	}
	e.byID[a.ID] = a
	e.agents = append(e.agents, a)
	return nil
}

// Agent looks up an agent by ID.
func (e *Engine) Agent(id agent.ID) (*agent.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.byID[id]
	return a, ok
}

func (e *Engine) mustAgent(id agent.ID) (*agent.Agent, error) {
	a, ok := e.Agent(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, id)
	}
	return a, nil
}

// Agents returns the agents in insertion order.
func (e *Engine) Agents() []*agent.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*agent.Agent(nil), e.agents...)
}

// SetTarget gives an agent a new target for the next discovery run. It fails
// with agent.ErrAgentBusy while the live engine or the player owns the agent.
func (e *Engine) SetTarget(id agent.ID, target geometry.Vec) error {
	a, err := e.mustAgent(id)
	if err != nil {
		return err
	}
	if err := a.Claim(agent.DriverDiscovery); err != nil {
		return err
	}
	defer a.Release(agent.DriverDiscovery)

	a.SetTarget(target)
	a.Publish()
	return nil
}

// foreignBodies returns repelling bodies for every agent not in skip, built
// from their published snapshots.
func (e *Engine) foreignBodies(skip map[agent.ID]struct{}) []field.Body {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []field.Body
	for _, a := range e.agents {
		if _, ok := skip[a.ID]; ok {
			continue
		}
		out = append(out, field.BodyOfState(a.Snapshot()))
	}
	return out
}

// ObstacleState is an obstacle as exported to renderers.
type ObstacleState struct {
	ID    geometry.ObstacleID `json:"id"`
	A     geometry.Vec        `json:"a"`
	B     geometry.Vec        `json:"b"`
	Width float64             `json:"width"`
}

func obstacleStateOf(o *geometry.Obstacle) ObstacleState {
	a, b := o.Endpoints()
	return ObstacleState{ID: o.ID, A: a, B: b, Width: o.Width}
}

// Snapshot is a consistent-per-agent view of the whole scene.
type Snapshot struct {
	Time      time.Time       `json:"time"`
	Arena     geometry.Arena  `json:"arena"`
	Obstacles []ObstacleState `json:"obstacles"`
	Agents    []agent.State   `json:"agents"`
}

// Snapshot collects the published state of every agent and the current
// obstacle positions. Safe for concurrent use with all loops.
func (e *Engine) Snapshot() Snapshot {
	obs := e.obstacles.All()
	s := Snapshot{
		Time:      time.Now(),
		Arena:     e.arena,
		Obstacles: make([]ObstacleState, len(obs)),
	}
	for i, o := range obs {
		s.Obstacles[i] = obstacleStateOf(o)
	}
	for _, a := range e.Agents() {
		s.Agents = append(s.Agents, a.Snapshot())
	}
	return s
}

// DebugSample is the clearance from an agent to one obstacle.
type DebugSample struct {
	Obstacle geometry.ObstacleID `json:"obstacle"`
	Distance float64             `json:"distance"`
	Angle    float64             `json:"angle"`
}

// DebugSamples measures the agent's last published position against every
// obstacle, in obstacle insertion order.
func (e *Engine) DebugSamples(id agent.ID) ([]DebugSample, error) {
	a, err := e.mustAgent(id)
	if err != nil {
		return nil, err
	}
	s := a.Snapshot()
	obs := e.obstacles.All()
	out := make([]DebugSample, len(obs))
	for i, o := range obs {
		d, angle := geometry.DistanceToObstacle(s.Position, s.Radius, o)
		out[i] = DebugSample{Obstacle: o.ID, Distance: d, Angle: angle}
	}
	return out, nil
}
