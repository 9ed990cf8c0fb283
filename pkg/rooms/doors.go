package rooms

import (
	"log/slog"
	"sort"

	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/graph"
	"github.com/mapell/floornav/pkg/mvf"
)

// DoorSegments are the door line features of one floor, registered with the
// collision detector so wall crossings coincident with doors are allowed.
type DoorSegments map[string][]orb.LineString

// BuildDoorNodes synthesizes one door node per distinct geometry referenced
// by a door connection, with OR-merged flags across entrances. The node id
// is "door_<geometryID>"; position follows the geometry kind (point
// directly, midpoint of the longest sub-line for linestrings, centroid for
// polygons). The second result holds the door line segments per floor.
//
// A connection entrance whose geometry cannot be resolved or positioned is
// logged and skipped; the remaining entrances still apply.
func BuildDoorNodes(ds *mvf.Dataset, logger *slog.Logger) ([]*graph.Node, DoorSegments) {
	if logger == nil {
		logger = slog.Default()
	}
	publicBit, hasPublicBit := ds.Flags.PublicBit()

	type doorSeed struct {
		geometryID string
		floorID    string
		flags      uint32
	}
	seeds := make(map[string]*doorSeed)
	var order []string

	for _, conn := range ds.Connections {
		if conn.Type != mvf.ConnDoor {
			continue
		}
		for _, ent := range conn.Entrances {
			if ent.GeometryID == "" || ent.FloorID == "" {
				logger.Warn("skipping door entrance without geometry or floor")
				continue
			}
			seed, ok := seeds[ent.GeometryID]
			if !ok {
				seed = &doorSeed{geometryID: ent.GeometryID, floorID: ent.FloorID}
				seeds[ent.GeometryID] = seed
				order = append(order, ent.GeometryID)
			}
			seed.flags |= ent.Flags
		}
	}
	sort.Strings(order)

	var nodes []*graph.Node
	segments := make(DoorSegments)

	for _, geometryID := range order {
		seed := seeds[geometryID]
		feature := ds.FeatureByID(geometryID)
		if feature == nil || feature.Geometry == nil {
			logger.Warn("skipping door with unresolved geometry", "geometry", geometryID)
			continue
		}
		anchor, ok := mvf.FeatureAnchor(feature.Geometry)
		if !ok {
			logger.Warn("skipping door with unanchorable geometry", "geometry", geometryID)
			continue
		}

		isPublic := true
		if hasPublicBit {
			isPublic = seed.flags&(1<<uint(publicBit)) != 0
		}

		nodes = append(nodes, &graph.Node{
			ID:      "door_" + geometryID,
			Coords:  anchor,
			FloorID: seed.floorID,
			Type:    graph.NodeDoor,
			Meta: graph.Metadata{
				GeometryIDs: []string{geometryID},
				IsDoor:      true,
				IsPublic:    isPublic,
				IsLocked:    !isPublic,
				Accessible:  true,
				Flags:       seed.flags,
			},
		})

		switch geom := feature.Geometry.(type) {
		case orb.LineString:
			segments[seed.floorID] = append(segments[seed.floorID], geom)
		case orb.MultiLineString:
			segments[seed.floorID] = append(segments[seed.floorID], geom...)
		}
	}

	return nodes, segments
}
