// Package server exposes the routing engine over HTTP: route queries,
// engine status, health, and Prometheus metrics.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML server configuration.
type Config struct {
	// HTTPAddr is the listen address, e.g. ":8080".
	HTTPAddr string `yaml:"http_addr"`

	// DatasetDir is the path of the MVF bundle directory.
	DatasetDir string `yaml:"dataset_dir"`

	// CacheDir enables the file-backed visibility edge cache when set.
	CacheDir string `yaml:"cache_dir"`

	Engine EngineConfig `yaml:"engine"`
}

// EngineConfig tunes the routing engine from the config file. Zero values
// keep the engine defaults.
type EngineConfig struct {
	MaxEdgeDistanceM    float64 `yaml:"max_edge_distance_m"`
	MaxNeighbors        int     `yaml:"max_neighbors"`
	YieldEvery          int     `yaml:"yield_every"`
	YieldAfterMS        int     `yaml:"yield_after_ms"`
	PathCacheSize       int     `yaml:"path_cache_size"`
	PublicRoomDoorCount int     `yaml:"public_room_door_count"`
	PublicRoomAreaM2    float64 `yaml:"public_room_area_m2"`
	VerticalPenaltyM    float64 `yaml:"vertical_penalty_m"`
	SmoothResolution    int     `yaml:"smooth_resolution"`
}

// DefaultConfig returns a runnable configuration for a local dataset.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:   ":8080",
		DatasetDir: "./dataset",
	}
}

// LoadConfig reads a YAML config file. A missing path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("server: reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parsing config: %w", err)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	return cfg, nil
}
