package engine

import (
	"os"
	"testing"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const lineScene = `{
	"scene_meta": {"scene_id": "line", "step_size": 25},
	"agents": [{"id": "a", "position": {"x": 10, "y": 10}, "target": {"x": 110, "y": 10}, "radius": 4}],
	"obstacles": [{"a": {"x": 60, "y": 200}, "b": {"x": 80, "y": 200}, "width": 2}]
}`

func TestParseScene_Defaults(t *testing.T) {
	in, err := ParseScene([]byte(`{"engine": {"frequency": 250}}`))
	require.NoError(t, err)

	def := config.DefaultEngineConfig()
	assert.Equal(t, 250.0, in.Engine.Frequency)
	assert.Equal(t, def.MaxIterations, in.Engine.MaxIterations, "omitted keys keep their defaults")
	assert.Equal(t, def.RepulsionCeiling, in.Engine.RepulsionCeiling)
	assert.Equal(t, 512.0, in.Arena.Width)

	_, err = ParseScene([]byte(`{"agents": [`))
	assert.Error(t, err)
}

func TestRunJSON(t *testing.T) {
	result, err := RunJSON(lineScene)
	require.NoError(t, err)

	var out PlanOutput
	require.NoError(t, json.Unmarshal([]byte(result), &out))

	assert.Equal(t, "line", out.Meta.SceneID)
	assert.Equal(t, 1, out.Report.Found)
	require.Len(t, out.Obstacles, 1)
	assert.Equal(t, "obstacle-0", out.Obstacles[0].ID)
	assert.Equal(t, 2.0, out.Obstacles[0].Width)

	require.Len(t, out.Paths, 1)
	p := out.Paths[0]
	assert.Equal(t, "a", p.Agent)
	assert.Equal(t, agent.StatusFound, p.Status)
	require.NotEmpty(t, p.Walk)
	assert.Equal(t, p.Samples[0].Point, p.Walk[0])
	assert.InEpsilon(t, 96, p.Length, 0.02, "stops inside the 4 unit target radius")
}

func TestNewFromScene_ExplicitZeroRadius(t *testing.T) {
	in, err := ParseScene([]byte(`{"agents": [
		{"id": "point", "position": {"x": 0, "y": 0}, "radius": 0},
		{"id": "sized", "position": {"x": 50, "y": 0}, "radius": 3},
		{"id": "default", "position": {"x": 100, "y": 0}}
	]}`))
	require.NoError(t, err)
	e, err := NewFromScene(in, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	radii := map[agent.ID]float64{}
	for _, a := range e.Agents() {
		radii[a.ID] = a.Radius
	}
	assert.Equal(t, map[agent.ID]float64{"point": 0, "sized": 3, "default": 8}, radii)

	point, ok := e.Agent("point")
	require.True(t, ok)
	assert.Equal(t, 8.0, point.TargetRadius, "point agents still get a usable target radius")
}

func TestRunJSON_Errors(t *testing.T) {
	_, err := RunJSON(`not json`)
	assert.Error(t, err)

	_, err = RunJSON(`{"engine": {"frequency": -1}}`)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = RunJSON(`{"agents": [{"id": "a", "acceleration": -5}]}`)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorIs(t, err, agent.ErrInvalidParams)

	_, err = RunJSON(`{"agents": [{"id": "a"}, {"id": "a"}]}`)
	assert.ErrorIs(t, err, ErrDuplicateAgent)
}

func TestRunGeoJSON(t *testing.T) {
	result, err := RunGeoJSON(lineScene)
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection([]byte(result))
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	kinds := map[string]*geojson.Feature{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")] = f
	}
	require.Contains(t, kinds, "arena")
	require.Contains(t, kinds, "obstacle")
	require.Contains(t, kinds, "path")

	_, ok := kinds["arena"].Geometry.(orb.Polygon)
	assert.True(t, ok)
	ls, ok := kinds["path"].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.Point{10, 10}, ls[0])
	assert.Equal(t, "found", kinds["path"].Properties.MustString("status"))
	assert.Greater(t, kinds["path"].Properties.MustFloat64("length"), 0.0)
}

func TestRunScene_Demo(t *testing.T) {
	data, err := os.ReadFile("testdata/demo.json")
	require.NoError(t, err)
	in, err := ParseScene(data)
	require.NoError(t, err)
	require.Len(t, in.Obstacles, 6)
	assert.Equal(t, 512.0, in.Engine.Frequency)

	out, err := RunScene(in)
	require.NoError(t, err)
	require.Len(t, out.Paths, 1)

	p := out.Paths[0]
	assert.Contains(t, []agent.Status{agent.StatusFound, agent.StatusExhausted}, p.Status)
	assert.Equal(t, p.Status == agent.StatusFound, out.Report.Complete())
	require.NotEmpty(t, p.Walk)
	assert.Equal(t, p.Samples[len(p.Samples)-1].Point, p.Walk[len(p.Walk)-1])

	prev := 0.0
	for _, s := range p.Samples {
		prev += s.Dist
	}
	assert.InDelta(t, p.Length, prev, 1e-6)
}
