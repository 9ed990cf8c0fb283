package mvf

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// Bundle file names inside a dataset directory. Only geometry.geojson and
// walkable_nodes.geojson are mandatory; everything else is optional.
const (
	fileGeometry      = "geometry.geojson"
	fileWalkableNodes = "walkable_nodes.geojson"
	fileStairNodes    = "stair_nodes.geojson"
	fileElevatorNodes = "elevator_nodes.geojson"
	fileEntranceNodes = "entrance_nodes.geojson"
	fileKinds         = "kinds.json"
	fileWalkable      = "walkable.json"
	fileNonwalkable   = "nonwalkable.json"
	fileConnections   = "connections.json"
	fileFlags         = "navigation_flags.json"
	fileManifest      = "manifest.json"
)

type manifest struct {
	MapID   string `json:"mapId"`
	MapTime int64  `json:"mapTime"`
}

// LoadDir reads a dataset bundle from a directory. Missing optional files
// leave the corresponding Dataset fields empty; a malformed optional file is
// logged and skipped rather than failing the load.
func LoadDir(dir string, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ds := &Dataset{
		Kinds:          make(map[string]string),
		WalkableSet:    make(map[string]struct{}),
		NonwalkableSet: make(map[string]struct{}),
		Flags:          NavigationFlags{},
	}

	var err error
	if ds.Geometry, err = loadFeatureCollection(filepath.Join(dir, fileGeometry)); err != nil {
		return nil, fmt.Errorf("mvf: loading geometry: %w", err)
	}
	if ds.WalkableNodes, err = loadFeatureCollection(filepath.Join(dir, fileWalkableNodes)); err != nil {
		return nil, fmt.Errorf("mvf: loading walkable nodes: %w", err)
	}

	ds.StairNodes = loadOptionalFC(filepath.Join(dir, fileStairNodes), logger)
	ds.ElevatorNodes = loadOptionalFC(filepath.Join(dir, fileElevatorNodes), logger)
	ds.EntranceNodes = loadOptionalFC(filepath.Join(dir, fileEntranceNodes), logger)

	loadOptionalJSON(filepath.Join(dir, fileKinds), &ds.Kinds, logger)
	loadIDSet(filepath.Join(dir, fileWalkable), ds.WalkableSet, logger)
	loadIDSet(filepath.Join(dir, fileNonwalkable), ds.NonwalkableSet, logger)
	loadOptionalJSON(filepath.Join(dir, fileConnections), &ds.Connections, logger)
	loadOptionalJSON(filepath.Join(dir, fileFlags), &ds.Flags, logger)

	var m manifest
	loadOptionalJSON(filepath.Join(dir, fileManifest), &m, logger)
	ds.MapID = m.MapID
	ds.MapTime = m.MapTime
	if ds.MapTime == 0 {
		if info, err := os.Stat(filepath.Join(dir, fileGeometry)); err == nil {
			ds.MapTime = info.ModTime().Unix()
		}
	}

	return ds, nil
}

func loadFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}

func loadOptionalFC(path string, logger *slog.Logger) *geojson.FeatureCollection {
	fc, err := loadFeatureCollection(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("skipping unreadable feature collection", "path", path, "error", err)
		}
		return nil
	}
	return fc
}

func loadOptionalJSON(path string, v any, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("skipping unreadable table", "path", path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("skipping malformed table", "path", path, "error", err)
	}
}

func loadIDSet(path string, set map[string]struct{}, logger *slog.Logger) {
	var ids []string
	loadOptionalJSON(path, &ids, logger)
	for _, id := range ids {
		set[id] = struct{}{}
	}
}
