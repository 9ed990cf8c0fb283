package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// dedupEps is the coincidence tolerance for intersection points, in degrees.
const dedupEps = 1e-9

// SegmentIntersections returns every point where the segment [a, b] crosses
// a ring of the given polygon or multipolygon. Coincident intersection
// points within 1e-9 degrees are deduplicated. Non-areal geometry yields no
// intersections.
func SegmentIntersections(a, b orb.Point, g orb.Geometry) []orb.Point {
	var out []orb.Point
	switch geom := g.(type) {
	case orb.Polygon:
		out = appendPolygonIntersections(out, a, b, geom)
	case orb.MultiPolygon:
		for _, poly := range geom {
			out = appendPolygonIntersections(out, a, b, poly)
		}
	}
	return out
}

// SegmentCrossesGeometry reports whether [a, b] intersects any ring of the
// geometry, without materializing the intersection points.
func SegmentCrossesGeometry(a, b orb.Point, g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return polygonCrossed(a, b, geom)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if polygonCrossed(a, b, poly) {
				return true
			}
		}
	}
	return false
}

func polygonCrossed(a, b orb.Point, poly orb.Polygon) bool {
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if _, ok := SegmentIntersection(a, b, ring[i], ring[i+1]); ok {
				return true
			}
		}
	}
	return false
}

func appendPolygonIntersections(out []orb.Point, a, b orb.Point, poly orb.Polygon) []orb.Point {
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if p, ok := SegmentIntersection(a, b, ring[i], ring[i+1]); ok {
				out = appendDedup(out, p)
			}
		}
	}
	return out
}

func appendDedup(pts []orb.Point, p orb.Point) []orb.Point {
	for _, q := range pts {
		if math.Abs(q[0]-p[0]) <= dedupEps && math.Abs(q[1]-p[1]) <= dedupEps {
			return pts
		}
	}
	return append(pts, p)
}

// SegmentIntersection computes the intersection of segments [p1, p2] and
// [p3, p4]. The second return value is false when the segments do not
// intersect or are parallel. Collinear overlap is treated as no
// intersection; obstacle rings always cross walk segments transversally in
// practice, and collinear grazing must not count as a blocking crossing.
func SegmentIntersection(p1, p2, p3, p4 orb.Point) (orb.Point, bool) {
	d1x, d1y := p2[0]-p1[0], p2[1]-p1[1]
	d2x, d2y := p4[0]-p3[0], p4[1]-p3[1]

	denom := d1x*d2y - d1y*d2x
	if math.Abs(denom) < 1e-18 {
		return orb.Point{}, false
	}

	t := ((p3[0]-p1[0])*d2y - (p3[1]-p1[1])*d2x) / denom
	u := ((p3[0]-p1[0])*d1y - (p3[1]-p1[1])*d1x) / denom

	if t < 0 || t > 1 || u < 0 || u > 1 {
		return orb.Point{}, false
	}
	return orb.Point{p1[0] + t*d1x, p1[1] + t*d1y}, true
}
