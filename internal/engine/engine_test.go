package engine

import (
	"math"
	"testing"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/field"
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testArena = geometry.Arena{Width: 512, Height: 512}

func newTestEngine(t *testing.T, mutate func(*config.EngineConfig), opts ...Option) *Engine {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	e, err := New(cfg, testArena, opts...)
	require.NoError(t, err)
	return e
}

func addAgent(t *testing.T, e *Engine, id string, pos geometry.Vec) *agent.Agent {
	t.Helper()
	a, err := e.NewAgent(id, pos, agent.Params{})
	require.NoError(t, err)
	return a
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.EngineConfig)
	}{
		{"zero frequency", func(c *config.EngineConfig) { c.Frequency = 0 }},
		{"negative frequency", func(c *config.EngineConfig) { c.Frequency = -500 }},
		{"zero iterations", func(c *config.EngineConfig) { c.MaxIterations = 0 }},
		{"zero resolution", func(c *config.EngineConfig) { c.Resolution = 0 }},
		{"negative gain", func(c *config.EngineConfig) { c.RepulsiveGain = -1 }},
		{"negative obstacle radius", func(c *config.EngineConfig) { c.ObstacleAvoidanceRadius = -1 }},
		{"negative agent radius", func(c *config.EngineConfig) { c.AgentAvoidanceRadius = -1 }},
		{"zero ceiling", func(c *config.EngineConfig) { c.RepulsionCeiling = 0 }},
		{"nan gain", func(c *config.EngineConfig) { c.RepulsiveGain = math.NaN() }},
		{"inf obstacle radius", func(c *config.EngineConfig) { c.ObstacleAvoidanceRadius = math.Inf(1) }},
		{"frequency too high", func(c *config.EngineConfig) { c.Frequency = 2e9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultEngineConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, testArena)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}

	_, err := New(config.DefaultEngineConfig(), geometry.Arena{Width: -1})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEngine_Agents(t *testing.T) {
	e := newTestEngine(t, nil)

	a := addAgent(t, e, "a", geometry.Vec{X: 1, Y: 2})
	got, ok := e.Agent("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, err := e.NewAgent("a", geometry.Vec{}, agent.Params{})
	assert.ErrorIs(t, err, ErrDuplicateAgent)

	_, err = e.NewAgent("bad", geometry.Vec{}, agent.Params{Velocity: -1})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorIs(t, err, agent.ErrInvalidParams)

	anon := addAgent(t, e, "", geometry.Vec{})
	assert.NotEmpty(t, anon.ID)
	assert.Len(t, e.Agents(), 2)
}

func TestEngine_SetTarget(t *testing.T) {
	e := newTestEngine(t, nil)
	a := addAgent(t, e, "a", geometry.Vec{})

	require.NoError(t, e.SetTarget("a", geometry.Vec{X: 10, Y: 0}))
	snap := a.Snapshot()
	require.NotNil(t, snap.Target)
	assert.Equal(t, geometry.Vec{X: 10, Y: 0}, *snap.Target)
	assert.Equal(t, agent.StatusSeeking, snap.Status)
	assert.Equal(t, agent.DriverNone, a.Driver(), "released after setting")

	assert.ErrorIs(t, e.SetTarget("nope", geometry.Vec{}), ErrUnknownAgent)

	require.NoError(t, a.Claim(agent.DriverLive))
	assert.ErrorIs(t, e.SetTarget("a", geometry.Vec{}), agent.ErrAgentBusy)
}

func TestEngine_Obstacles(t *testing.T) {
	e := newTestEngine(t, nil)

	o, err := e.NewObstacle(geometry.Vec{X: 0, Y: 0}, geometry.Vec{X: 10, Y: 0}, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)

	assert.Error(t, e.AddObstacle(geometry.NewObstacle(o.ID, geometry.Vec{}, geometry.Vec{X: 1}, 1)), "duplicate id")
	assert.ErrorIs(t, e.AddObstacle(geometry.NewObstacle("neg", geometry.Vec{}, geometry.Vec{X: 1}, -1)), config.ErrInvalidConfig)

	require.NoError(t, e.MoveObstacle(o.ID, geometry.Vec{X: 5, Y: 5}, geometry.Vec{X: 5, Y: 50}))
	snap := e.Snapshot()
	require.Len(t, snap.Obstacles, 1)
	assert.Equal(t, geometry.Vec{X: 5, Y: 5}, snap.Obstacles[0].A)
	assert.Equal(t, geometry.Vec{X: 5, Y: 50}, snap.Obstacles[0].B)
	assert.Equal(t, testArena, snap.Arena)
}

func TestEngine_ObstacleSetPosReachesField(t *testing.T) {
	e := newTestEngine(t, nil)
	a := addAgent(t, e, "a", geometry.Vec{})
	a.SetTarget(geometry.Vec{Y: 100})

	o, err := e.NewObstacle(geometry.Vec{X: 1000, Y: 1000}, geometry.Vec{X: 1000, Y: 1100}, 8)
	require.NoError(t, err)
	assert.Zero(t, e.field.Forces(field.BodyOf(a), nil).Repelled)

	o.SetPos(geometry.Vec{X: 30, Y: -50}, geometry.Vec{X: 30, Y: 50})
	forces := e.field.Forces(field.BodyOf(a), nil)
	assert.Equal(t, 1, forces.Repelled, "moved obstacle repels through the index")
	assert.Less(t, forces.Obstacles.X, 0.0)
}

func TestEngine_DebugSamples(t *testing.T) {
	e := newTestEngine(t, nil)
	addAgent(t, e, "a", geometry.Vec{X: 0, Y: 0})
	require.NoError(t, e.AddObstacle(geometry.NewObstacle("wall", geometry.Vec{X: -10, Y: 50}, geometry.Vec{X: 10, Y: 50}, 8)))
	require.NoError(t, e.AddObstacle(geometry.NewObstacle("post", geometry.Vec{X: 100, Y: 0}, geometry.Vec{X: 120, Y: 0}, 0)))

	samples, err := e.DebugSamples("a")
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "wall", samples[0].Obstacle)
	assert.InDelta(t, 34, samples[0].Distance, 1e-9)
	assert.InDelta(t, -math.Pi/2, samples[0].Angle, 1e-9)

	assert.Equal(t, "post", samples[1].Obstacle)
	assert.InDelta(t, 92, samples[1].Distance, 1e-9)
	assert.InDelta(t, math.Pi, math.Abs(samples[1].Angle), 1e-9)

	_, err = e.DebugSamples("nope")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}
