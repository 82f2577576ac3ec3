package engine

import (
	"context"
	"math"
	"testing"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLive(t *testing.T, e *Engine) *Live {
	t.Helper()
	l, err := e.NewLive(config.DefaultLiveConfig())
	require.NoError(t, err)
	return l
}

func TestNewLive_InvalidConfig(t *testing.T) {
	e := newTestEngine(t, nil)
	cfg := config.DefaultLiveConfig()
	cfg.Frequency = 0
	_, err := e.NewLive(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg = config.DefaultLiveConfig()
	cfg.Frequency = 2e9
	_, err = e.NewLive(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "tick period would round to zero")

	cfg = config.DefaultLiveConfig()
	cfg.RepulsiveGain = math.NaN()
	_, err = e.NewLive(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLive_ChangesApplyOnNextTick(t *testing.T) {
	e := newTestEngine(t, nil)
	a := addAgent(t, e, "a", geometry.Vec{X: 0, Y: 0})
	l := newTestLive(t, e)

	require.NoError(t, l.Attach("a"))
	assert.Equal(t, agent.DriverLive, a.Driver(), "claimed immediately")
	require.NoError(t, l.SetTarget("a", geometry.Vec{X: 100, Y: 0}))
	assert.Nil(t, a.Snapshot().Target, "not applied before the tick")

	l.Tick(1.0 / 120)
	snap := a.Snapshot()
	require.NotNil(t, snap.Target)
	assert.Equal(t, geometry.Vec{X: 100, Y: 0}, *snap.Target)
	assert.Greater(t, snap.Position.X, 0.0)
	assert.Equal(t, []agent.ID{"a"}, l.Members())
	assert.Zero(t, a.Path().Len(), "live mode records nothing")
}

func TestLive_ReachesTarget(t *testing.T) {
	e := newTestEngine(t, nil)
	a := addAgent(t, e, "a", geometry.Vec{X: 0, Y: 0})
	l := newTestLive(t, e)
	require.NoError(t, l.Attach("a"))
	require.NoError(t, l.SetTarget("a", geometry.Vec{X: 60, Y: 0}))

	reached := false
	for i := 0; i < 120*20 && !reached; i++ {
		l.Tick(1.0 / 120)
		reached = a.Snapshot().Status == agent.StatusFound
	}
	assert.True(t, reached)
}

func TestLive_Ownership(t *testing.T) {
	e := newTestEngine(t, nil)
	a := addAgent(t, e, "a", geometry.Vec{})
	b := addAgent(t, e, "b", geometry.Vec{X: 50})
	l := newTestLive(t, e)

	assert.ErrorIs(t, l.SetTarget("a", geometry.Vec{}), ErrNotAttached)
	assert.ErrorIs(t, l.Attach("nope"), ErrUnknownAgent)

	require.NoError(t, b.Claim(agent.DriverPlayer))
	assert.ErrorIs(t, l.Attach("b"), agent.ErrAgentBusy)

	require.NoError(t, l.Attach("a"))
	assert.ErrorIs(t, e.SetTarget("a", geometry.Vec{}), agent.ErrAgentBusy)
	l.Tick(0.01)

	require.NoError(t, l.Detach("a"))
	l.Tick(0.01)
	assert.Equal(t, agent.DriverNone, a.Driver())
	assert.Empty(t, l.Members())
}

func TestLive_ClearTarget(t *testing.T) {
	e := newTestEngine(t, nil)
	a := addAgent(t, e, "a", geometry.Vec{})
	l := newTestLive(t, e)
	require.NoError(t, l.Attach("a"))
	require.NoError(t, l.SetTarget("a", geometry.Vec{X: 100}))
	for i := 0; i < 60; i++ {
		l.Tick(1.0 / 120)
	}
	require.NoError(t, l.ClearTarget("a"))
	l.Tick(1.0 / 120)

	stopped := a.Snapshot()
	assert.Nil(t, stopped.Target)
	assert.Equal(t, agent.StatusIdle, stopped.Status)

	l.Tick(1.0 / 120)
	assert.Equal(t, stopped.Position, a.Snapshot().Position, "idle agents do not drift")
}

func TestLive_Run(t *testing.T) {
	e := newTestEngine(t, nil)
	a := addAgent(t, e, "a", geometry.Vec{})
	cfg := config.DefaultLiveConfig()
	cfg.Frequency = 1000
	l, err := e.NewLive(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Attach("a"))
	require.NoError(t, l.SetTarget("a", geometry.Vec{X: 100}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.Snapshot().Position.X > 0
	}, defaultWait, pollInterval)

	// Obstacles may move while the loop reads them.
	_, err = e.NewObstacle(geometry.Vec{X: 50, Y: -20}, geometry.Vec{X: 50, Y: 20}, 2)
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, agent.DriverNone, a.Driver(), "released on stop")
}
