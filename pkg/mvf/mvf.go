// Package mvf models the input asset bundle consumed by the routing engine:
// per-floor vector geometry, classification side-tables, sampled navigation
// nodes, and the connections table enumerating doors, stairs, and elevators.
//
// Everything in a Dataset is read-only input; the engine never mutates it.
package mvf

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Connection types recognized in the connections table.
const (
	ConnDoor      = "door"
	ConnStairs    = "stairs"
	ConnElevator  = "elevator"
	ConnEscalator = "escalator"
)

// Geometry kinds relevant to routing. Other kinds pass through untouched.
const (
	KindWall = "wall"
	KindRoom = "room"
)

// Entrance is one endpoint of a connection: a geometry on a floor with its
// raw flag word.
type Entrance struct {
	GeometryID string `json:"geometryId"`
	FloorID    string `json:"floorId"`
	Flags      uint32 `json:"flags"`
}

// Connection is one row of the connections table.
type Connection struct {
	Type      string     `json:"type"`
	Entrances []Entrance `json:"entrances"`
}

// FlagSpec describes which bit position encodes a door property.
type FlagSpec struct {
	Bit int `json:"bit"`
}

// NavigationFlags maps flag names ("public", ...) to their bit positions.
type NavigationFlags map[string]FlagSpec

// PublicBit returns the bit position of the "public" flag. The second
// return value is false when the bundle does not declare one, in which case
// all doors are treated as public.
func (f NavigationFlags) PublicBit() (int, bool) {
	spec, ok := f["public"]
	return spec.Bit, ok
}

// Dataset is the full input bundle.
type Dataset struct {
	// MapID identifies the dataset. Empty means "derive from content".
	MapID string

	// MapTime is the bundle's modification timestamp (unix seconds).
	MapTime int64

	Geometry       *geojson.FeatureCollection
	Kinds          map[string]string
	WalkableSet    map[string]struct{}
	NonwalkableSet map[string]struct{}

	WalkableNodes *geojson.FeatureCollection
	StairNodes    *geojson.FeatureCollection
	ElevatorNodes *geojson.FeatureCollection
	EntranceNodes *geojson.FeatureCollection

	Connections []Connection
	Flags       NavigationFlags
}

// FeatureByID returns the geometry feature with the given properties.id,
// or nil.
func (d *Dataset) FeatureByID(id string) *geojson.Feature {
	if d.Geometry == nil {
		return nil
	}
	for _, f := range d.Geometry.Features {
		if featureID(f) == id {
			return f
		}
	}
	return nil
}

// Fingerprint returns a stable content hash of the dataset, used as the
// map identity in the visibility edge cache key when the bundle declares no
// MapID of its own. Only routing-relevant inputs contribute.
func (d *Dataset) Fingerprint() uint64 {
	h := xxhash.New()

	hashFC := func(fc *geojson.FeatureCollection) {
		if fc == nil {
			return
		}
		for _, f := range fc.Features {
			h.WriteString(featureID(f))
			if f.Geometry != nil {
				writeBound(h, f.Geometry.Bound())
			}
		}
	}
	hashFC(d.Geometry)
	hashFC(d.WalkableNodes)
	hashFC(d.StairNodes)
	hashFC(d.ElevatorNodes)
	hashFC(d.EntranceNodes)

	for _, id := range sortedKeys(d.Kinds) {
		h.WriteString(id)
		h.WriteString(d.Kinds[id])
	}
	for _, id := range sortedSet(d.WalkableSet) {
		h.WriteString(id)
	}
	for _, id := range sortedSet(d.NonwalkableSet) {
		h.WriteString(id)
	}
	for _, c := range d.Connections {
		h.WriteString(c.Type)
		for _, e := range c.Entrances {
			h.WriteString(e.GeometryID)
			h.WriteString(e.FloorID)
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], e.Flags)
			h.Write(b[:])
		}
	}
	return h.Sum64()
}

func writeBound(h *xxhash.Digest, b orb.Bound) {
	var buf [8]byte
	for _, v := range [...]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v*1e9)))
		h.Write(buf[:])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func featureID(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	if id := f.Properties.MustString("id", ""); id != "" {
		return id
	}
	if s, ok := f.ID.(string); ok {
		return s
	}
	return ""
}

// FeatureFloorID extracts properties.floorId from a feature.
func FeatureFloorID(f *geojson.Feature) string {
	return f.Properties.MustString("floorId", "")
}
