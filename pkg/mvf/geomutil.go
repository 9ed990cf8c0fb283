package mvf

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/geo"
)

func segLengthDeg(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

func lineLengthDeg(ls orb.LineString) float64 {
	total := 0.0
	for i := 0; i+1 < len(ls); i++ {
		total += segLengthDeg(ls[i], ls[i+1])
	}
	return total
}

func geomCentroid(g orb.Geometry) (orb.Point, error) {
	return geo.Centroid(g)
}
