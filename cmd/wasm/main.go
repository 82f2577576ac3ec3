//go:build js && wasm

// Command wasm exposes the APF planner to the browser via WebAssembly.
// After loading, it registers two global JavaScript functions:
//
//	runPlan(jsonString) -> jsonString
//	runPlanGeoJSON(jsonString) -> jsonString
//
// Both take a JSON-encoded SceneInput, the same contract as `apf plan`.
// runPlan returns the PlanOutput; runPlanGeoJSON returns it rendered as a
// GeoJSON FeatureCollection.
package main

import (
	"syscall/js"

	"github.com/cxd309/apf-engine/internal/engine"
)

func main() {
	js.Global().Set("runPlan", js.FuncOf(entry(engine.RunJSON)))
	js.Global().Set("runPlanGeoJSON", js.FuncOf(entry(engine.RunGeoJSON)))
	select {} // keep the WASM module alive until the page is closed
}

func entry(run func(string) (string, error)) func(js.Value, []js.Value) any {
	return func(_ js.Value, args []js.Value) any {
		if len(args) < 1 {
			return map[string]any{"error": "no input provided"}
		}

		result, err := run(args[0].String())
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return result
	}
}
