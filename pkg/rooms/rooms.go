// Package rooms models rooms and doors as routing constraints: room
// polygons with tolerance buffers, synthesized door nodes, the room-to-door
// index, and the public/private classification that decides whether an
// endpoint must be anchored through a door.
package rooms

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
)

// RoomBufferM is the tolerance buffer applied to room polygons so points on
// numeric-slop boundaries still count as inside.
const RoomBufferM = 0.3

// Default public-room thresholds: a room is public when it has at least
// DefaultPublicDoorCount public doors, or max(2, DefaultPublicDoorCount)
// doors of any kind, or at least DefaultPublicAreaM2 of floor area.
const (
	DefaultPublicDoorCount = 2
	DefaultPublicAreaM2    = 80.0
)

// Room is one room polygon with its buffered containment region.
type Room struct {
	GeometryID string
	FloorID    string
	Feature    orb.Geometry
	Buffered   orb.MultiPolygon
	Bound      orb.Bound
}

// Contains reports whether p lies in the buffered room region.
func (r *Room) Contains(p orb.Point) bool {
	if !r.Bound.Contains(p) {
		return false
	}
	return geo.PointInPolygon(p, r.Buffered)
}

// Meta holds per-room statistics used by the public classification.
type Meta struct {
	AreaM2          float64
	DoorCount       int
	PublicDoorCount int
}

// Model is the room index plus door bookkeeping. Built once during
// initialization, read-only afterwards.
type Model struct {
	PublicDoorCount int
	PublicAreaM2    float64

	rooms       []*Room
	byFloor     map[string][]*Room
	meta        map[string]*Meta
	doorsByRoom map[string][]string
	logger      *slog.Logger
}

// NewModel returns an empty model with default thresholds.
func NewModel(logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		PublicDoorCount: DefaultPublicDoorCount,
		PublicAreaM2:    DefaultPublicAreaM2,
		byFloor:         make(map[string][]*Room),
		meta:            make(map[string]*Meta),
		doorsByRoom:     make(map[string][]string),
		logger:          logger,
	}
}

// AddRoom indexes a room feature. Geometry that cannot be buffered is
// dropped with a warning.
func (m *Model) AddRoom(geometryID, floorID string, g orb.Geometry) error {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return fmt.Errorf("rooms: %s is not areal geometry", geometryID)
	}

	buffered, err := geo.Buffer(g, RoomBufferM)
	if err != nil {
		m.logger.Warn("dropping unbufferable room", "room", geometryID, "error", err)
		return err
	}

	room := &Room{
		GeometryID: geometryID,
		FloorID:    floorID,
		Feature:    g,
		Buffered:   buffered,
		Bound:      buffered.Bound(),
	}
	m.rooms = append(m.rooms, room)
	m.byFloor[floorID] = append(m.byFloor[floorID], room)
	m.meta[geometryID] = &Meta{AreaM2: geo.AreaM2(g)}
	return nil
}

// RoomAt returns the first room on the floor whose buffered polygon
// contains p, or nil. Rooms are checked in insertion order.
func (m *Model) RoomAt(p orb.Point, floorID string) *Room {
	for _, r := range m.byFloor[floorID] {
		if r.Contains(p) {
			return r
		}
	}
	return nil
}

// RoomsAt returns every room on the floor containing p.
func (m *Model) RoomsAt(p orb.Point, floorID string) []*Room {
	var out []*Room
	for _, r := range m.byFloor[floorID] {
		if r.Contains(p) {
			out = append(out, r)
		}
	}
	return out
}

// Room returns the room with the given geometry id, or nil.
func (m *Model) Room(geometryID string) *Room {
	for _, r := range m.rooms {
		if r.GeometryID == geometryID {
			return r
		}
	}
	return nil
}

// Rooms returns all indexed rooms.
func (m *Model) Rooms() []*Room { return m.rooms }

// Meta returns the metadata of a room, or nil.
func (m *Model) Meta(geometryID string) *Meta { return m.meta[geometryID] }

// RegisterDoor records a door node under a room and updates door counts.
func (m *Model) RegisterDoor(roomID, doorNodeID string, isPublic bool) {
	m.doorsByRoom[roomID] = append(m.doorsByRoom[roomID], doorNodeID)
	meta := m.meta[roomID]
	if meta == nil {
		meta = &Meta{}
		m.meta[roomID] = meta
	}
	meta.DoorCount++
	if isPublic {
		meta.PublicDoorCount++
	}
}

// DoorsOf returns the door node ids of a room, in registration order.
func (m *Model) DoorsOf(roomID string) []string { return m.doorsByRoom[roomID] }

// IsPublic classifies a room as freely traversable. Rooms without metadata
// (unindexed ids) are treated as private.
func (m *Model) IsPublic(roomID string) bool {
	meta := m.meta[roomID]
	if meta == nil {
		return false
	}
	minDoors := m.PublicDoorCount
	if minDoors < 2 {
		minDoors = 2
	}
	return meta.PublicDoorCount >= m.PublicDoorCount ||
		meta.DoorCount >= minDoors ||
		meta.AreaM2 >= m.PublicAreaM2
}

// TagNodes assigns room ids to nodes: every non-door node lacking RoomIDs
// gets the room containing its coordinate. Door nodes are skipped, so the
// RoomIDs that AttachDoors gave them stand. Nodes in no room remain
// untagged — public walkway.
func (m *Model) TagNodes(g *graph.Graph) {
	g.Nodes(func(n *graph.Node) bool {
		if n.Meta.IsDoor || len(n.Meta.RoomIDs) > 0 {
			return true
		}
		if room := m.RoomAt(n.Coords, n.FloorID); room != nil {
			n.Meta.RoomIDs = []string{room.GeometryID}
		}
		return true
	})
}

// AttachDoors computes RoomIDs for every door node (all rooms on its floor
// whose buffered polygon contains the door coordinate) and indexes the door
// under each. Door nodes are processed in sorted id order so counts are
// deterministic.
func (m *Model) AttachDoors(g *graph.Graph) {
	var doors []*graph.Node
	g.Nodes(func(n *graph.Node) bool {
		if n.Meta.IsDoor {
			doors = append(doors, n)
		}
		return true
	})
	sort.Slice(doors, func(i, j int) bool { return doors[i].ID < doors[j].ID })

	for _, door := range doors {
		for _, room := range m.RoomsAt(door.Coords, door.FloorID) {
			door.Meta.RoomIDs = append(door.Meta.RoomIDs, room.GeometryID)
			m.RegisterDoor(room.GeometryID, door.ID, door.Meta.IsPublic)
		}
	}
}
