package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/cxd309/apf-engine/internal/playback"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyBatch is returned when enqueuing a batch with no targets.
var ErrEmptyBatch = errors.New("batch has no targets")

// Assignment gives one agent one target.
type Assignment struct {
	Agent  agent.ID     `json:"agent"`
	Target geometry.Vec `json:"target"`
}

// Batch is a set of targets that are planned and replayed together.
type Batch struct {
	ID      string       `json:"id"`
	Targets []Assignment `json:"targets"`
}

// BatchCompleted is delivered once per batch, after every agent in it has
// reached the end of its path, or when the batch could not be started.
type BatchCompleted struct {
	BatchID  string        `json:"batch_id"`
	Report   Report        `json:"report"`
	Duration time.Duration `json:"duration"` // activation to last arrival
	Err      error         `json:"-"`
}

// CompletionHandler receives completion events on the player goroutine. It
// must not block on Enqueue.
type CompletionHandler func(BatchCompleted)

// PlaybackMode selects how the player moves agents along their paths.
type PlaybackMode string

const (
	// PlaybackKinematic moves agents with trapezoidal speed profiles.
	PlaybackKinematic PlaybackMode = "kinematic"
	// PlaybackResample moves agents a fixed arc length per tick.
	PlaybackResample PlaybackMode = "resample"
)

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithCompletionHandler registers the batch completion handler.
func WithCompletionHandler(h CompletionHandler) PlayerOption {
	return func(p *Player) { p.handler = h }
}

// WithResampling switches the player to fixed-step playback.
func WithResampling(step float64) PlayerOption {
	return func(p *Player) {
		p.mode = PlaybackResample
		p.step = step
	}
}

type activeBatch struct {
	batch    Batch
	agents   []*agent.Agent
	tracks   []*playback.Track
	finished []bool
	report   Report
	started  time.Time
}

// Player works through a queue of target batches. For each batch it claims
// the agents, runs discovery for them and replays the resulting paths in
// real time. The next batch is taken only when the current one completes.
type Player struct {
	engine  *Engine
	period  time.Duration
	queue   chan Batch
	handler CompletionHandler
	mode    PlaybackMode
	step    float64
	log     *zap.Logger

	// Owned by the loop goroutine.
	resampler *playback.Resampler
	active    *activeBatch
}

// NewPlayer returns a player over e's agents.
func (e *Engine) NewPlayer(cfg config.PlayerConfig, opts ...PlayerOption) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("player config: %w", err)
	}
	p := &Player{
		engine:    e,
		period:    config.Period(cfg.Frequency),
		queue:     make(chan Batch, cfg.QueueSize),
		mode:      PlaybackKinematic,
		log:       e.log.Named("player"),
		resampler: playback.NewResampler(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.mode == PlaybackResample && !(p.step > 0) {
		return nil, fmt.Errorf("%w: resampling step must be positive, got %v", config.ErrInvalidConfig, p.step)
	}
	return p, nil
}

// Enqueue adds a batch to the queue, blocking while it is full. A missing
// batch ID is filled with a random one and returned.
func (p *Player) Enqueue(ctx context.Context, b Batch) (string, error) {
	if len(b.Targets) == 0 {
		return "", ErrEmptyBatch
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	select {
	case p.queue <- b:
		return b.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Busy reports whether a batch is being replayed. Loop goroutine only.
func (p *Player) Busy() bool { return p.active != nil }

// Step advances playback by dt. When idle it activates the next queued batch
// instead. It must not be called concurrently with Run.
func (p *Player) Step(dt float64) {
	if p.active == nil {
		select {
		case b := <-p.queue:
			p.activate(b)
		default:
		}
		return
	}

	ab := p.active
	done := true
	for i, a := range ab.agents {
		if ab.finished[i] {
			continue
		}
		switch p.mode {
		case PlaybackResample:
			if _, err := p.resampler.Advance(a, p.step); err != nil {
				// NewPlayer rejects such steps; stop the agent where it is.
				p.log.Error("resampling failed", zap.String("agent", a.ID), zap.Error(err))
				ab.finished[i] = true
				break
			}
			_, walking := p.resampler.Cursor(a.ID)
			ab.finished[i] = !walking
		default:
			tr := ab.tracks[i]
			a.SetPos(tr.Step(a.Path(), dt))
			if tr.Done() {
				a.MarkReached()
				ab.finished[i] = true
			}
			a.Publish()
		}
		done = done && ab.finished[i]
	}
	if done {
		p.complete()
	}
}

func (p *Player) activate(b Batch) {
	log := p.log.With(zap.String("batch", b.ID))

	agents := make([]*agent.Agent, 0, len(b.Targets))
	var err error
	for _, as := range b.Targets {
		var a *agent.Agent
		if a, err = p.engine.mustAgent(as.Agent); err != nil {
			break
		}
		if err = a.Claim(agent.DriverPlayer); err != nil {
			break
		}
		agents = append(agents, a)
	}

	var rep Report
	if err == nil {
		for i, as := range b.Targets {
			agents[i].SetTarget(as.Target)
		}
		rep, err = p.engine.Plan(agents)
	}
	if err != nil {
		p.release(agents)
		log.Error("batch rejected", zap.Error(err))
		p.deliver(BatchCompleted{BatchID: b.ID, Err: fmt.Errorf("batch %s: %w", b.ID, err)})
		return
	}

	ab := &activeBatch{
		batch:    b,
		agents:   agents,
		tracks:   make([]*playback.Track, len(agents)),
		finished: make([]bool, len(agents)),
		report:   rep,
		started:  time.Now(),
	}
	for i, a := range agents {
		ab.tracks[i] = playback.NewTrack(a)
		p.resampler.Reset(a.ID)
		a.Publish()
	}
	p.active = ab
	log.Info("batch activated",
		zap.Int("agents", len(agents)),
		zap.Int("iterations", rep.Iterations),
		zap.Int("exhausted", rep.Exhausted))
}

func (p *Player) complete() {
	ab := p.active
	p.active = nil
	p.release(ab.agents)

	ev := BatchCompleted{BatchID: ab.batch.ID, Report: ab.report, Duration: time.Since(ab.started)}
	p.log.Info("batch completed", zap.String("batch", ev.BatchID), zap.Duration("duration", ev.Duration))
	p.deliver(ev)
}

func (p *Player) deliver(ev BatchCompleted) {
	if p.handler != nil {
		p.handler(ev)
	}
}

func (p *Player) release(agents []*agent.Agent) {
	for _, a := range agents {
		a.Release(agent.DriverPlayer)
		a.Publish()
	}
}

// Run steps the player at the configured frequency with wall-clock dt until
// ctx is cancelled. A batch still playing at that point is abandoned without
// a completion event and its agents are released where they stand.
func (p *Player) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	p.log.Info("player loop started", zap.Duration("period", p.period), zap.String("mode", string(p.mode)))
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			if ab := p.active; ab != nil {
				p.active = nil
				p.release(ab.agents)
				p.log.Warn("batch abandoned", zap.String("batch", ab.batch.ID))
			}
			p.log.Info("player loop stopped")
			return nil
		case now := <-ticker.C:
			p.Step(tickSeconds(now.Sub(last), p.period))
			last = now
		}
	}
}
