// Package geo provides the geometric primitives used by the routing engine.
//
// All coordinates are WGS-84 [lng, lat] pairs (orb.Point). Angular inputs and
// outputs are in degrees; distances are in meters unless a function name says
// otherwise. Every function here is pure: no shared state, no side effects.
package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	// EarthRadiusM is the mean radius of Earth in meters.
	EarthRadiusM = 6_371_000.0

	// MetersPerDegree is the length of one degree of latitude in meters.
	// Longitude degrees shrink by cos(lat).
	MetersPerDegree = 111_320.0
)

// ErrDegenerateGeometry is returned when an operation cannot work with the
// given geometry (empty coordinates, zero-length features). Callers in the
// routing pipeline drop the offending feature instead of failing.
var ErrDegenerateGeometry = errors.New("geo: degenerate geometry")

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// Distance returns the great-circle (Haversine) distance between two points
// in meters.
func Distance(a, b orb.Point) float64 {
	dLat := degToRad(b[1] - a[1])
	dLng := degToRad(b[0] - a[0])

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(degToRad(a[1]))*math.Cos(degToRad(b[1]))*sinLng*sinLng
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// FastDistance returns the equirectangular approximation of the distance
// between two points in meters. It agrees with Distance to well within 0.1%
// over the sub-kilometer spans that occur inside a building, and avoids the
// trig calls in the edge-build hot loop.
func FastDistance(a, b orb.Point) float64 {
	latMid := degToRad((a[1] + b[1]) / 2)
	dx := degToRad(b[0]-a[0]) * math.Cos(latMid)
	dy := degToRad(b[1] - a[1])
	return EarthRadiusM * math.Sqrt(dx*dx+dy*dy)
}

// Bearing returns the forward azimuth from a to b in degrees, normalized to
// [0, 360).
func Bearing(a, b orb.Point) float64 {
	lat1 := degToRad(a[1])
	lat2 := degToRad(b[1])
	dLng := degToRad(b[0] - a[0])

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := radToDeg(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// MetersToDegrees converts a distance in meters to the equivalent spans in
// degrees of longitude and latitude at the given latitude.
func MetersToDegrees(meters, lat float64) (dLng, dLat float64) {
	dLat = meters / MetersPerDegree
	cos := math.Cos(degToRad(lat))
	if cos < 1e-9 {
		cos = 1e-9
	}
	dLng = meters / (MetersPerDegree * cos)
	return dLng, dLat
}

// PointInPolygon reports whether p lies inside the polygon or multipolygon,
// edge inclusive. Holes are respected. Non-areal geometries are never
// containers.
func PointInPolygon(p orb.Point, g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return polygonContains(geom, p)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if polygonContains(poly, p) {
				return true
			}
		}
	}
	return false
}

// polygonContains is edge-inclusive: a point on a ring boundary counts as
// inside, including on the boundary of a hole.
func polygonContains(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 {
		return false
	}
	for _, ring := range poly {
		if pointOnRing(ring, p) {
			return true
		}
	}
	return planar.PolygonContains(poly, p)
}

const onEdgeEps = 1e-12

func pointOnRing(ring orb.Ring, p orb.Point) bool {
	for i := 0; i+1 < len(ring); i++ {
		if pointOnSegment(ring[i], ring[i+1], p) {
			return true
		}
	}
	return false
}

func pointOnSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if math.Abs(cross) > onEdgeEps {
		return false
	}
	if p[0] < math.Min(a[0], b[0])-onEdgeEps || p[0] > math.Max(a[0], b[0])+onEdgeEps {
		return false
	}
	if p[1] < math.Min(a[1], b[1])-onEdgeEps || p[1] > math.Max(a[1], b[1])+onEdgeEps {
		return false
	}
	return true
}

// Bound returns the axis-aligned bounding box of any geometry as
// [minLng, minLat, maxLng, maxLat].
func Bound(g orb.Geometry) orb.Bound {
	return g.Bound()
}

// Centroid returns the centroid of the geometry. For areal geometry this is
// the area-weighted centroid; for lines the length-weighted one; for points
// the mean.
func Centroid(g orb.Geometry) (orb.Point, error) {
	if g == nil {
		return orb.Point{}, ErrDegenerateGeometry
	}
	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return orb.Point{}, ErrDegenerateGeometry
	}
	return c, nil
}

// AreaM2 returns the approximate geodesic area of a polygon or multipolygon
// in square meters, computed by scaling degrees to meters at the feature's
// centroid latitude.
func AreaM2(g orb.Geometry) float64 {
	c, err := Centroid(g)
	if err != nil {
		return 0
	}
	sx := MetersPerDegree * math.Cos(degToRad(c[1]))
	sy := MetersPerDegree

	switch geom := g.(type) {
	case orb.Polygon:
		return polygonAreaM2(geom, sx, sy)
	case orb.MultiPolygon:
		total := 0.0
		for _, poly := range geom {
			total += polygonAreaM2(poly, sx, sy)
		}
		return total
	}
	return 0
}

func polygonAreaM2(poly orb.Polygon, sx, sy float64) float64 {
	if len(poly) == 0 {
		return 0
	}
	area := math.Abs(ringAreaM2(poly[0], sx, sy))
	for _, hole := range poly[1:] {
		area -= math.Abs(ringAreaM2(hole, sx, sy))
	}
	if area < 0 {
		area = 0
	}
	return area
}

// shoelace in scaled meter space
func ringAreaM2(ring orb.Ring, sx, sy float64) float64 {
	sum := 0.0
	for i := 0; i+1 < len(ring); i++ {
		x1, y1 := ring[i][0]*sx, ring[i][1]*sy
		x2, y2 := ring[i+1][0]*sx, ring[i+1][1]*sy
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}

// DistanceToSegmentM returns the distance in meters from p to the segment
// [a, b], computed in the locally scaled planar frame.
func DistanceToSegmentM(p, a, b orb.Point) float64 {
	sx := MetersPerDegree * math.Cos(degToRad(p[1]))
	sy := MetersPerDegree

	px, py := p[0]*sx, p[1]*sy
	ax, ay := a[0]*sx, a[1]*sy
	bx, by := b[0]*sx, b[1]*sy

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
