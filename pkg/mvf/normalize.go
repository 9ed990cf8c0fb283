package mvf

import (
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NodeFeature is a normalized sample point: the shape every node-bearing
// feature collection is reduced to before graph construction.
type NodeFeature struct {
	ID          string
	FloorID     string
	GeometryIDs []string
	NodeType    string
	Coords      orb.Point
}

// NormalizeNodes extracts NodeFeatures from a feature collection. Features
// without an id, without a floor, or without point geometry are logged and
// skipped; a single malformed feature never aborts normalization.
func NormalizeNodes(fc *geojson.FeatureCollection, defaultType string, logger *slog.Logger) []NodeFeature {
	if fc == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	nodes := make([]NodeFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		id := featureID(f)
		if id == "" {
			logger.Warn("skipping node feature without id")
			continue
		}
		floorID := FeatureFloorID(f)
		if floorID == "" {
			logger.Warn("skipping node feature without floorId", "id", id)
			continue
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			logger.Warn("skipping node feature with non-point geometry", "id", id)
			continue
		}

		nodes = append(nodes, NodeFeature{
			ID:          id,
			FloorID:     floorID,
			GeometryIDs: geometryIDs(f),
			NodeType:    f.Properties.MustString("nodeType", defaultType),
			Coords:      pt,
		})
	}
	return nodes
}

func geometryIDs(f *geojson.Feature) []string {
	raw, ok := f.Properties["geometryIds"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return nil
}

// FeatureAnchor returns the representative coordinate of a geometry
// feature: the point itself, the midpoint of the longest sub-line of a
// (multi)linestring, or the centroid of areal geometry.
func FeatureAnchor(g orb.Geometry) (orb.Point, bool) {
	switch geom := g.(type) {
	case orb.Point:
		return geom, true
	case orb.LineString:
		return lineMidpoint(geom)
	case orb.MultiLineString:
		var longest orb.LineString
		var longestLen float64
		for _, ls := range geom {
			if l := lineLengthDeg(ls); l > longestLen {
				longest = ls
				longestLen = l
			}
		}
		return lineMidpoint(longest)
	case orb.Polygon, orb.MultiPolygon:
		c, _ := geomCentroid(geom)
		return c, true
	}
	return orb.Point{}, false
}

func lineMidpoint(ls orb.LineString) (orb.Point, bool) {
	switch len(ls) {
	case 0:
		return orb.Point{}, false
	case 1:
		return ls[0], true
	}
	total := lineLengthDeg(ls)
	if total == 0 {
		return ls[0], true
	}
	want := total / 2
	acc := 0.0
	for i := 0; i+1 < len(ls); i++ {
		segLen := segLengthDeg(ls[i], ls[i+1])
		if acc+segLen >= want {
			t := (want - acc) / segLen
			return orb.Point{
				ls[i][0] + t*(ls[i+1][0]-ls[i][0]),
				ls[i][1] + t*(ls[i+1][1]-ls[i][1]),
			}, true
		}
		acc += segLen
	}
	return ls[len(ls)-1], true
}
