package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Buffer returns a polygonal buffer of the geometry, widened by the given
// number of meters interpreted geodesically at the feature's centroid
// latitude.
//
// The result is a MultiPolygon whose union covers the buffered region: the
// original areal geometry (if any) plus one rectangle per segment, extended
// by the radius past both endpoints, plus one square cap per vertex to close
// the wedges at joints. Consumers only ever test point containment and
// segment intersection against the parts, so no polygon union (CSG) is
// required and the construction stays exact and deterministic.
//
// Returns ErrDegenerateGeometry when the input has no usable coordinates;
// callers drop the feature in that case.
func Buffer(g orb.Geometry, meters float64) (orb.MultiPolygon, error) {
	if g == nil || meters <= 0 {
		return nil, ErrDegenerateGeometry
	}
	c, err := Centroid(g)
	if err != nil {
		return nil, err
	}
	sx := MetersPerDegree * math.Cos(degToRad(c[1]))
	if sx < 1 {
		sx = 1
	}
	sy := MetersPerDegree
	rx := meters / sx // radius in degrees of longitude
	ry := meters / sy // radius in degrees of latitude

	var parts orb.MultiPolygon
	switch geom := g.(type) {
	case orb.Point:
		parts = append(parts, vertexCap(geom, rx, ry))
	case orb.LineString:
		parts = appendLineBuffer(parts, geom, rx, ry)
	case orb.MultiLineString:
		for _, ls := range geom {
			parts = appendLineBuffer(parts, ls, rx, ry)
		}
	case orb.Polygon:
		parts = appendPolygonBuffer(parts, geom, rx, ry)
	case orb.MultiPolygon:
		for _, poly := range geom {
			parts = appendPolygonBuffer(parts, poly, rx, ry)
		}
	default:
		return nil, ErrDegenerateGeometry
	}

	if len(parts) == 0 {
		return nil, ErrDegenerateGeometry
	}
	return parts, nil
}

func appendLineBuffer(parts orb.MultiPolygon, ls orb.LineString, rx, ry float64) orb.MultiPolygon {
	if len(ls) == 0 {
		return parts
	}
	if len(ls) == 1 {
		return append(parts, vertexCap(ls[0], rx, ry))
	}
	for i := 0; i+1 < len(ls); i++ {
		if rect, ok := segmentRect(ls[i], ls[i+1], rx, ry); ok {
			parts = append(parts, rect)
		}
	}
	for _, p := range ls {
		parts = append(parts, vertexCap(p, rx, ry))
	}
	return parts
}

func appendPolygonBuffer(parts orb.MultiPolygon, poly orb.Polygon, rx, ry float64) orb.MultiPolygon {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return parts
	}
	// Interior stays covered by the polygon itself; the ring buffers widen it.
	parts = append(parts, poly)
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if rect, ok := segmentRect(ring[i], ring[i+1], rx, ry); ok {
				parts = append(parts, rect)
			}
		}
		for _, p := range ring {
			parts = append(parts, vertexCap(p, rx, ry))
		}
	}
	return parts
}

// segmentRect builds the oriented rectangle of half-width r around [a, b],
// extended r beyond both endpoints. Work happens in an anisotropically
// scaled frame so the meter radius holds in both axes.
func segmentRect(a, b orb.Point, rx, ry float64) (orb.Polygon, bool) {
	// scale to an isotropic frame where rx == ry == r
	ax, ay := a[0]/rx, a[1]/ry
	bx, by := b[0]/rx, b[1]/ry

	dx, dy := bx-ax, by-ay
	length := math.Hypot(dx, dy)
	if length < 1e-12 {
		return nil, false
	}
	ux, uy := dx/length, dy/length // unit along
	nx, ny := -uy, ux             // unit normal

	// extend both ends by the unit radius
	ax, ay = ax-ux, ay-uy
	bx, by = bx+ux, by+uy

	unscale := func(x, y float64) orb.Point {
		return orb.Point{x * rx, y * ry}
	}
	ring := orb.Ring{
		unscale(ax+nx, ay+ny),
		unscale(bx+nx, by+ny),
		unscale(bx-nx, by-ny),
		unscale(ax-nx, ay-ny),
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, true
}

func vertexCap(p orb.Point, rx, ry float64) orb.Polygon {
	ring := orb.Ring{
		{p[0] - rx, p[1] - ry},
		{p[0] + rx, p[1] - ry},
		{p[0] + rx, p[1] + ry},
		{p[0] - rx, p[1] + ry},
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
