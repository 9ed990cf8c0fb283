// Package smooth provides the cosmetic post-processing of routed polylines:
// Douglas-Peucker simplification and per-floor cubic-spline smoothing.
//
// Smoothing is strictly cosmetic. It never crosses a floor change, and the
// smoothed coordinates are never fed back into the graph.
package smooth

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"gonum.org/v1/gonum/interp"
)

// DefaultResolution is the number of samples produced per smoothed
// same-floor subpath.
const DefaultResolution = 10_000

// minSplinePoints is the smallest subpath worth fitting a spline through;
// shorter subpaths pass through verbatim.
const minSplinePoints = 4

// Simplify runs Douglas-Peucker with the given tolerance in degrees. The
// first and last points are always preserved. Paths of fewer than three
// points are returned as-is.
func Simplify(path []orb.Point, epsilonDeg float64) []orb.Point {
	if len(path) < 3 || epsilonDeg <= 0 {
		return path
	}
	ls := make(orb.LineString, len(path))
	copy(ls, path)
	reduced := simplify.DouglasPeucker(epsilonDeg).Simplify(ls).(orb.LineString)
	return []orb.Point(reduced)
}

// SmoothWithFloors splits the path on floor boundaries, fits a natural
// cubic spline through each same-floor subpath of at least four points, and
// concatenates the results. The floors slice must be parallel to the path;
// the returned slices are parallel too. resolution <= 0 falls back to
// DefaultResolution.
func SmoothWithFloors(path []orb.Point, floors []string, resolution int) ([]orb.Point, []string) {
	if len(path) != len(floors) || len(path) == 0 {
		return path, floors
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	var outPath []orb.Point
	var outFloors []string

	start := 0
	for i := 1; i <= len(path); i++ {
		if i < len(path) && floors[i] == floors[start] {
			continue
		}
		sub := smoothSubpath(path[start:i], resolution)
		outPath = append(outPath, sub...)
		for range sub {
			outFloors = append(outFloors, floors[start])
		}
		start = i
	}
	return outPath, outFloors
}

// smoothSubpath fits x(t) and y(t) natural cubic splines over the
// chord-length parameterization and resamples uniformly.
func smoothSubpath(sub []orb.Point, resolution int) []orb.Point {
	pts := dedupeConsecutive(sub)
	if len(pts) < minSplinePoints {
		return sub
	}

	ts := make([]float64, len(pts))
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		if i > 0 {
			dx := p[0] - pts[i-1][0]
			dy := p[1] - pts[i-1][1]
			ts[i] = ts[i-1] + math.Hypot(dx, dy)
		}
		xs[i] = p[0]
		ys[i] = p[1]
	}
	if ts[len(ts)-1] == 0 {
		return sub
	}

	var splineX, splineY interp.NaturalCubic
	if err := splineX.Fit(ts, xs); err != nil {
		return sub
	}
	if err := splineY.Fit(ts, ys); err != nil {
		return sub
	}

	total := ts[len(ts)-1]
	out := make([]orb.Point, 0, resolution)
	for i := 0; i < resolution; i++ {
		t := total * float64(i) / float64(resolution-1)
		out = append(out, orb.Point{splineX.Predict(t), splineY.Predict(t)})
	}
	// pin the exact endpoints against interpolation drift
	out[0] = pts[0]
	out[len(out)-1] = pts[len(pts)-1]
	return out
}

func dedupeConsecutive(path []orb.Point) []orb.Point {
	if len(path) == 0 {
		return path
	}
	out := make([]orb.Point, 1, len(path))
	out[0] = path[0]
	for _, p := range path[1:] {
		last := out[len(out)-1]
		if p[0] != last[0] || p[1] != last[1] {
			out = append(out, p)
		}
	}
	return out
}
