package agent

import "github.com/cxd309/apf-engine/internal/geometry"

// State is a point-in-time snapshot of an agent, as published by its driver.
type State struct {
	ID         ID            `json:"id"`
	Position   geometry.Vec  `json:"position"`
	Radius     float64       `json:"radius"`
	Target     *geometry.Vec `json:"target,omitempty"`
	Velocity   *geometry.Vec `json:"velocity,omitempty"`
	Status     Status        `json:"status"`
	PathLength float64       `json:"path_length"`
	Samples    int           `json:"samples"`
	Driver     string        `json:"driver"`
}
