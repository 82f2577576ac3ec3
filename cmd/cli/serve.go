package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cxd309/apf-engine/internal/engine"
	"github.com/cxd309/apf-engine/internal/observability"
	"github.com/cxd309/apf-engine/internal/vizserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	mode     string
	duration time.Duration
	step     float64
	viz      bool
}

func newServeCommand(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve [scene.json]",
		Short: "Run the realtime player, the live engine and the viz feed",
		Long: `Loads a scene and drives its agents until interrupted.

In player mode the scene's targets form the first batch: they are planned and
then replayed in real time. In live mode every agent is handed to the live
engine and steered continuously toward its target.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.readScene(cmd, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("viz") {
				a.cfg.Viz.Enabled = opts.viz
			}
			return runServe(cmd.Context(), a, in, opts)
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "player", `"player" or "live"`)
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().Float64Var(&opts.step, "resample", 0, "player moves agents this far per tick instead of using kinematics")
	cmd.Flags().BoolVar(&opts.viz, "viz", false, "serve the viz feed (overrides viz.enabled)")
	return cmd
}

func runServe(ctx context.Context, a *app, in engine.SceneInput, opts *serveOptions) error {
	if opts.mode != "player" && opts.mode != "live" {
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
	logger := observability.GetLogger()

	// Targets are handed to the selected driver below rather than set up
	// front.
	targets := make([]engine.Assignment, 0, len(in.Agents))
	for i, as := range in.Agents {
		if as.Target != nil {
			targets = append(targets, engine.Assignment{Agent: as.ID, Target: *as.Target})
			in.Agents[i].Target = nil
		}
	}

	e, err := engine.NewFromScene(in, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	live, err := e.NewLive(a.cfg.Live)
	if err != nil {
		return err
	}
	var playerOpts []engine.PlayerOption
	playerOpts = append(playerOpts, engine.WithCompletionHandler(func(ev engine.BatchCompleted) {
		if ev.Err != nil {
			logger.Error("batch failed", zap.String("batch", ev.BatchID), zap.Error(ev.Err))
			return
		}
		logger.Info("batch done",
			zap.String("batch", ev.BatchID),
			zap.Int("found", ev.Report.Found),
			zap.Int("exhausted", ev.Report.Exhausted),
			zap.Duration("duration", ev.Duration))
	}))
	if opts.step > 0 {
		playerOpts = append(playerOpts, engine.WithResampling(opts.step))
	}
	player, err := e.NewPlayer(a.cfg.Player, playerOpts...)
	if err != nil {
		return err
	}

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	switch opts.mode {
	case "player":
		if len(targets) > 0 {
			// The queue may be unbuffered, so enqueue alongside the loop.
			g.Go(func() error {
				_, err := player.Enqueue(gctx, engine.Batch{ID: in.Meta.SceneID, Targets: targets})
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			})
		}
	case "live":
		for _, as := range e.Agents() {
			if err := live.Attach(as.ID); err != nil {
				return err
			}
		}
		for _, t := range targets {
			if err := live.SetTarget(t.Agent, t.Target); err != nil {
				return err
			}
		}
	}

	g.Go(func() error { return live.Run(gctx) })
	g.Go(func() error { return player.Run(gctx) })
	if a.cfg.Viz.Enabled {
		viz := vizserver.New(a.cfg.Viz, e, logger)
		g.Go(func() error { return viz.ListenAndServe(gctx) })
	}

	logger.Info("serving", zap.String("mode", opts.mode), zap.Int("agents", len(e.Agents())), zap.Bool("viz", a.cfg.Viz.Enabled))
	return g.Wait()
}
