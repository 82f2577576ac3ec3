package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cxd309/apf-engine/internal/engine"
	"github.com/cxd309/apf-engine/internal/observability"
	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const scene = `{
	"scene_meta": {"scene_id": "cli"},
	"agents": [{"id": "a", "position": {"x": 10, "y": 10}, "target": {"x": 110, "y": 10}, "radius": 4}],
	"obstacles": [{"id": "wall", "a": {"x": 60, "y": 200}, "b": {"x": 80, "y": 200}}]
}`

// chdir changes the working directory to dir and restores it when the test
// ends (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// execute runs a fresh command tree with stdin set to input and returns
// stdout and stderr.
func execute(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestPlan_Stdin(t *testing.T) {
	out, _, err := execute(t, scene, "plan", "--step", "20")
	require.NoError(t, err)

	var plan engine.PlanOutput
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &plan))
	assert.Equal(t, "cli", plan.Meta.SceneID)
	assert.Equal(t, 20.0, plan.Meta.StepSize)
	assert.Equal(t, 1, plan.Report.Found)
	require.Len(t, plan.Paths, 1)
	assert.NotEmpty(t, plan.Paths[0].Walk)
	require.Len(t, plan.Obstacles, 1)
	assert.Equal(t, 8.0, plan.Obstacles[0].Width, "default width")
}

func TestPlan_GeoJSONToFile(t *testing.T) {
	abs, err := filepath.Abs("../../internal/engine/testdata/demo.json")
	require.NoError(t, err)
	dir := t.TempDir()
	dest := filepath.Join(dir, "demo.geojson")

	out, _, err := execute(t, "", "plan", abs, "-f", "geojson", "-o", dest, "--indent")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	assert.Equal(t, map[string]int{"arena": 1, "obstacle": 6, "path": 1}, kinds)
}

func TestPlan_Errors(t *testing.T) {
	_, _, err := execute(t, scene, "plan", "--format", "svg")
	assert.ErrorContains(t, err, `unknown format "svg"`)

	_, _, err = execute(t, `{"agents": [`, "plan")
	assert.ErrorContains(t, err, "invalid input JSON")

	_, _, err = execute(t, `{"engine": {"resolution": 0}}`, "plan")
	assert.ErrorContains(t, err, "resolution")

	_, _, err = execute(t, "", "plan", "missing.json")
	assert.ErrorContains(t, err, "error reading input")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine:\n  frequency: -1\n"), 0o644))

	_, _, err := execute(t, scene, "plan", "--config", bad)
	assert.ErrorContains(t, err, "frequency must be positive")

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("logger:\n  level: debug\n  format: json\n"), 0o644))
	_, stderr, err := execute(t, scene, "plan", "-c", good)
	require.NoError(t, err)
	assert.Contains(t, stderr, "configuration loaded")
}

func TestServe(t *testing.T) {
	for _, mode := range []string{"player", "live"} {
		t.Run(mode, func(t *testing.T) {
			_, stderr, err := execute(t, scene, "serve", "--mode", mode, "--duration", "200ms")
			require.NoError(t, err)
			assert.Contains(t, stderr, "serving")
			assert.Contains(t, stderr, "loop stopped")
		})
	}

	_, _, err := execute(t, scene, "serve", "--mode", "batch")
	assert.ErrorContains(t, err, `unknown mode "batch"`)
}
