package engine

import (
	"fmt"

	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/geometry"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SceneMeta holds the identity and output options of a planning run.
type SceneMeta struct {
	SceneID  string  `json:"scene_id"`
	StepSize float64 `json:"step_size,omitempty"` // arc-length step for walked paths; 0 skips walking
}

// AgentSpec places one agent. Zero parameters take the agent defaults,
// except radius: an explicit "radius": 0 makes a point agent.
type AgentSpec struct {
	ID       agent.ID      `json:"id"`
	Position geometry.Vec  `json:"position"`
	Target   *geometry.Vec `json:"target,omitempty"`
	Radius   *float64      `json:"radius,omitempty"` // shadows Params.Radius
	agent.Params
}

// params resolves the agent parameters, honouring an explicit radius.
func (as AgentSpec) params() agent.Params {
	if as.Radius != nil {
		return as.Params.WithRadius(*as.Radius)
	}
	return as.Params
}

// ObstacleSpec places one obstacle. Width defaults to
// geometry.DefaultObstacleWidth when omitted.
type ObstacleSpec struct {
	ID    geometry.ObstacleID `json:"id"`
	A     geometry.Vec        `json:"a"`
	B     geometry.Vec        `json:"b"`
	Width *float64            `json:"width,omitempty"`
}

// SceneInput is the JSON-serialisable input to the engine.
type SceneInput struct {
	Meta      SceneMeta           `json:"scene_meta"`
	Arena     geometry.Arena      `json:"arena"`
	Engine    config.EngineConfig `json:"engine"`
	Agents    []AgentSpec         `json:"agents"`
	Obstacles []ObstacleSpec      `json:"obstacles"`
}

// NewSceneInput returns an empty scene carrying the default configuration.
func NewSceneInput() SceneInput {
	cfg := config.NewDefaultConfig()
	return SceneInput{
		Arena:  geometry.Arena{Width: cfg.Arena.Width, Height: cfg.Arena.Height},
		Engine: cfg.Engine,
	}
}

// ParseScene decodes a scene, filling every omitted setting with its default.
func ParseScene(data []byte) (SceneInput, error) {
	return DecodeScene(data, NewSceneInput())
}

// DecodeScene decodes a scene over base, so omitted settings keep base's
// values.
func DecodeScene(data []byte, base SceneInput) (SceneInput, error) {
	if err := json.Unmarshal(data, &base); err != nil {
		return SceneInput{}, fmt.Errorf("invalid input JSON: %w", err)
	}
	return base, nil
}

// PathOutput is one agent's discovered path.
type PathOutput struct {
	Agent   agent.ID       `json:"agent"`
	Status  agent.Status   `json:"status"`
	Length  float64        `json:"length"`
	Samples []agent.Sample `json:"samples"`
	Walk    []geometry.Vec `json:"walk,omitempty"`
}

// PlanOutput is the complete output of a planning run.
type PlanOutput struct {
	Meta      SceneMeta       `json:"scene_meta"`
	Arena     geometry.Arena  `json:"arena"`
	Report    Report          `json:"report"`
	Obstacles []ObstacleState `json:"obstacles"`
	Paths     []PathOutput    `json:"paths"`
}

// NewFromScene builds an engine holding the scene's obstacles and agents,
// with targets assigned.
func NewFromScene(in SceneInput, opts ...Option) (*Engine, error) {
	e, err := New(in.Engine, in.Arena, opts...)
	if err != nil {
		return nil, err
	}

	for i, spec := range in.Obstacles {
		width := geometry.DefaultObstacleWidth
		if spec.Width != nil {
			width = *spec.Width
		}
		id := spec.ID
		if id == "" {
			id = fmt.Sprintf("obstacle-%d", i)
		}
		if err := e.AddObstacle(geometry.NewObstacle(id, spec.A, spec.B, width)); err != nil {
			return nil, err
		}
	}

	for _, as := range in.Agents {
		a, err := e.NewAgent(as.ID, as.Position, as.params())
		if err != nil {
			return nil, err
		}
		if as.Target != nil {
			if err := e.SetTarget(a.ID, *as.Target); err != nil {
				return nil, fmt.Errorf("agent %q target: %w", a.ID, err)
			}
		}
	}
	return e, nil
}

// RunScene plans every agent in the scene and collects the result.
func RunScene(in SceneInput, opts ...Option) (PlanOutput, error) {
	e, err := NewFromScene(in, opts...)
	if err != nil {
		return PlanOutput{}, err
	}

	rep, err := e.FindPath()
	if err != nil {
		return PlanOutput{}, err
	}

	var walks map[agent.ID][]geometry.Vec
	if in.Meta.StepSize != 0 {
		if walks, err = e.WalkPaths(in.Meta.StepSize); err != nil {
			return PlanOutput{}, err
		}
	}

	snap := e.Snapshot()
	out := PlanOutput{
		Meta:      in.Meta,
		Arena:     snap.Arena,
		Report:    rep,
		Obstacles: snap.Obstacles,
	}
	for _, a := range e.Agents() {
		p := a.Path().Clone()
		out.Paths = append(out.Paths, PathOutput{
			Agent:   a.ID,
			Status:  a.Status(),
			Length:  p.Length,
			Samples: p.Samples,
			Walk:    walks[a.ID],
		})
	}
	return out, nil
}

// RunJSON is the entry point shared by the CLI and WASM builds. It accepts
// a JSON-encoded SceneInput, plans it, and returns a JSON-encoded PlanOutput.
func RunJSON(jsonInput string) (string, error) {
	out, err := runJSON(jsonInput)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(data), nil
}

// RunGeoJSON is RunJSON with the output rendered as a GeoJSON
// FeatureCollection.
func RunGeoJSON(jsonInput string) (string, error) {
	out, err := runJSON(jsonInput)
	if err != nil {
		return "", err
	}
	data, err := out.FeatureCollection().MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshaling geojson: %w", err)
	}
	return string(data), nil
}

func runJSON(jsonInput string) (PlanOutput, error) {
	in, err := ParseScene([]byte(jsonInput))
	if err != nil {
		return PlanOutput{}, err
	}
	return RunScene(in)
}
