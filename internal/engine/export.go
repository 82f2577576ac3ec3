package engine

import (
	"github.com/cxd309/apf-engine/internal/agent"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// FeatureCollection renders the plan as GeoJSON in arena coordinates: the
// arena as a polygon, each obstacle centre line and each discovered path as
// a line string. Features carry a "kind" property.
func (out PlanOutput) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	arena := geojson.NewFeature(out.Arena.Bound().ToPolygon())
	arena.Properties["kind"] = "arena"
	fc.Append(arena)

	for _, o := range out.Obstacles {
		f := geojson.NewFeature(orb.LineString{o.A.Point(), o.B.Point()})
		f.ID = o.ID
		f.Properties["kind"] = "obstacle"
		f.Properties["width"] = o.Width
		fc.Append(f)
	}

	for _, p := range out.Paths {
		ls := agent.Path{Samples: p.Samples}.LineString()
		f := geojson.NewFeature(ls)
		f.ID = p.Agent
		f.Properties["kind"] = "path"
		f.Properties["status"] = string(p.Status)
		f.Properties["length"] = planar.Length(ls)
		fc.Append(f)
	}
	return fc
}
