// Package collision answers line-of-sight and containment queries against
// the buffered obstacle set of each floor.
//
// Doors are additive permissions, not geometry edits: a wall crossing within
// DoorToleranceM of a registered door segment on the same floor is forgiven.
// The wall geometry itself stays untouched, so door state can change without
// rebuilding obstacles.
package collision

import (
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/geo"
)

const (
	// WallBufferM is the half-width applied to wall linestrings when turning
	// them into obstacle polygons.
	WallBufferM = 0.5

	// DoorToleranceM is how close to a door segment a wall crossing or
	// contained point must be to be forgiven.
	DoorToleranceM = 0.6

	// relaxedShortM: connectors shorter than this are always considered clear.
	relaxedShortM = 2.0

	// relaxedMediumM: connectors up to this length skip endpoint checks.
	relaxedMediumM = 10.0
)

// Obstacle is a buffered blocking region with its precomputed bbox for
// cheap pre-rejection.
type Obstacle struct {
	Geometry orb.MultiPolygon
	Bound    orb.Bound
}

// Detector holds per-floor obstacles and door segments. It is populated
// during initialization and read-only afterwards; concurrent readers need no
// locking.
type Detector struct {
	obstacles map[string][]Obstacle
	doors     map[string][]orb.LineString
	logger    *slog.Logger
}

// NewDetector returns an empty detector. A nil logger falls back to
// slog.Default().
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		obstacles: make(map[string][]Obstacle),
		doors:     make(map[string][]orb.LineString),
		logger:    logger,
	}
}

// AddWall buffers a wall feature by WallBufferM and registers the result as
// an obstacle. MultiLineString sub-lines become separate obstacles so their
// bboxes stay tight. Geometry that cannot be buffered is dropped.
func (d *Detector) AddWall(floorID string, g orb.Geometry) error {
	switch geom := g.(type) {
	case orb.MultiLineString:
		var firstErr error
		for _, ls := range geom {
			if err := d.addBuffered(floorID, ls, WallBufferM); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	default:
		return d.addBuffered(floorID, g, WallBufferM)
	}
}

// AddObstacle registers a non-walkable areal feature as an obstacle without
// additional buffering. Non-areal geometry is buffered like a wall so thin
// blockers still occupy area; if that fails the feature is dropped.
func (d *Detector) AddObstacle(floorID string, g orb.Geometry) error {
	switch geom := g.(type) {
	case orb.Polygon:
		d.push(floorID, orb.MultiPolygon{geom})
		return nil
	case orb.MultiPolygon:
		d.push(floorID, geom)
		return nil
	default:
		return d.addBuffered(floorID, g, WallBufferM)
	}
}

func (d *Detector) addBuffered(floorID string, g orb.Geometry, meters float64) error {
	buffered, err := geo.Buffer(g, meters)
	if err != nil {
		d.logger.Warn("dropping obstacle with unbufferable geometry", "floor", floorID, "error", err)
		return fmt.Errorf("collision: buffering failed: %w", err)
	}
	d.push(floorID, buffered)
	return nil
}

func (d *Detector) push(floorID string, mp orb.MultiPolygon) {
	d.obstacles[floorID] = append(d.obstacles[floorID], Obstacle{
		Geometry: mp,
		Bound:    mp.Bound(),
	})
}

// SetDoorSegments registers the door line segments of a floor. Doors do not
// contribute obstacles; they allow wall crossings near them.
func (d *Detector) SetDoorSegments(floorID string, segments []orb.LineString) {
	d.doors[floorID] = segments
}

// AddDoorSegment appends one door segment to a floor.
func (d *Detector) AddDoorSegment(floorID string, segment orb.LineString) {
	d.doors[floorID] = append(d.doors[floorID], segment)
}

// ObstacleCount returns the number of obstacles on a floor.
func (d *Detector) ObstacleCount(floorID string) int { return len(d.obstacles[floorID]) }

// PointInObstacle reports whether p lies inside any obstacle on the floor
// and is not within DoorToleranceM of a registered door segment.
func (d *Detector) PointInObstacle(p orb.Point, floorID string) bool {
	for _, obs := range d.obstacles[floorID] {
		if !obs.Bound.Contains(p) {
			continue
		}
		if geo.PointInPolygon(p, obs.Geometry) {
			return !d.nearDoor(p, floorID)
		}
	}
	return false
}

// LineIntersectsObstacle reports whether segment [a, b] crosses any obstacle
// on the floor with at least one intersection point farther than
// DoorToleranceM from every door segment. Obstacle bboxes pre-reject before
// the exact intersection test.
func (d *Detector) LineIntersectsObstacle(a, b orb.Point, floorID string) bool {
	segBound := orb.Bound{Min: a, Max: a}.Extend(b)
	for _, obs := range d.obstacles[floorID] {
		if !segBound.Intersects(obs.Bound) {
			continue
		}
		for _, hit := range geo.SegmentIntersections(a, b, obs.Geometry) {
			if !d.nearDoor(hit, floorID) {
				return true
			}
		}
	}
	return false
}

// HasLineOfSight reports whether the straight segment between two sampled
// graph points crosses no obstacle. Endpoint containment is not checked;
// sample points are walkable by construction.
func (d *Detector) HasLineOfSight(a, b orb.Point, floorID string) bool {
	return !d.LineIntersectsObstacle(a, b, floorID)
}

// IsPathClear is the strict clearance check: both endpoints outside
// obstacles and no blocking crossing between them.
func (d *Detector) IsPathClear(a, b orb.Point, floorID string) bool {
	if d.PointInObstacle(a, floorID) || d.PointInObstacle(b, floorID) {
		return false
	}
	return !d.LineIntersectsObstacle(a, b, floorID)
}

// IsPathClearRelaxed is the permissive variant used only for short
// user-to-graph connectors: under 2 m always clear, 2-10 m tests only the
// crossing (endpoints may sit inside wall buffers), 10 m and beyond behaves
// strictly.
func (d *Detector) IsPathClearRelaxed(a, b orb.Point, floorID string) bool {
	dist := geo.Distance(a, b)
	switch {
	case dist < relaxedShortM:
		return true
	case dist < relaxedMediumM:
		return !d.LineIntersectsObstacle(a, b, floorID)
	default:
		return d.IsPathClear(a, b, floorID)
	}
}

func (d *Detector) nearDoor(p orb.Point, floorID string) bool {
	for _, door := range d.doors[floorID] {
		for i := 0; i+1 < len(door); i++ {
			if geo.DistanceToSegmentM(p, door[i], door[i+1]) <= DoorToleranceM {
				return true
			}
		}
		if len(door) == 1 && geo.Distance(p, door[0]) <= DoorToleranceM {
			return true
		}
	}
	return false
}
