package main

import (
	"fmt"
	"os"

	"github.com/cxd309/apf-engine/internal/engine"
	"github.com/cxd309/apf-engine/internal/observability"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

type planOptions struct {
	format string
	output string
	step   float64
	indent bool
}

func newPlanCommand(a *app) *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan [scene.json]",
		Short: "Discover paths for every agent in a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.readScene(cmd, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("step") {
				in.Meta.StepSize = opts.step
			}
			return runPlan(cmd, in, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", `output format: "json" or "geojson"`)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().Float64Var(&opts.step, "step", 0, "resample paths at this arc-length step")
	cmd.Flags().BoolVar(&opts.indent, "indent", false, "indent JSON output")
	return cmd
}

func runPlan(cmd *cobra.Command, in engine.SceneInput, opts *planOptions) error {
	if opts.format != "json" && opts.format != "geojson" {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	out, err := engine.RunScene(in, engine.WithLogger(observability.GetLogger()))
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}

	var v any = out
	if opts.format == "geojson" {
		v = out.FeatureCollection()
	}

	api := jsoniter.ConfigCompatibleWithStandardLibrary
	var data []byte
	if opts.indent {
		data, err = api.MarshalIndent(v, "", "  ")
	} else {
		data, err = api.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	data = append(data, '\n')

	if opts.output != "" {
		return os.WriteFile(opts.output, data, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
