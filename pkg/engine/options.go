package engine

import (
	"time"

	"github.com/mapell/floornav/pkg/edgecache"
)

// Options configures the engine: edge-build parameters, cooperative
// yielding budgets, cache wiring, and room classification thresholds.
type Options struct {
	// MaxEdgeDistanceM is the visibility edge length cap in meters.
	MaxEdgeDistanceM float64

	// MaxNeighbors is how many visibility edges a node accepts.
	MaxNeighbors int

	// YieldEvery suspends the edge build after this many processed nodes so
	// other work on the executor can run. 0 disables this trigger.
	YieldEvery int

	// YieldAfter suspends the edge build when this much wall-clock time
	// passed since the last yield. 0 disables this trigger.
	YieldAfter time.Duration

	// PathCacheSize bounds the LRU route cache on the query path.
	PathCacheSize int

	// PublicRoomDoorCount and PublicRoomAreaM2 tune the public-room
	// classification.
	PublicRoomDoorCount int
	PublicRoomAreaM2    float64

	// ConnectorSearchRadiusDeg bounds the widening nearest-node search used
	// by the endpoint fallbacks. Roughly 200 m at the default.
	ConnectorSearchRadiusDeg float64

	// VerticalPenaltyM is added to every cross-floor connector edge weight
	// to disincentivize gratuitous floor changes.
	VerticalPenaltyM float64

	// SmoothResolution is the sample count per smoothed subpath.
	SmoothResolution int

	// Cache is the visibility edge store. Nil disables persistence.
	Cache edgecache.Store

	// RebuildGraph skips the cache read but still writes the fresh edges.
	RebuildGraph bool

	// NoGraphCache skips both the cache read and the write.
	NoGraphCache bool
}

// Edge-build defaults, and the tightened values applied to graphs with more
// than largeGraphNodes nodes.
const (
	defaultMaxEdgeDistanceM = 15.0
	defaultMaxNeighbors     = 8

	largeGraphNodes            = 8000
	largeGraphMaxEdgeDistanceM = 8.0
	largeGraphMaxNeighbors     = 6
	largeGraphYieldEvery       = 10
	largeGraphYieldAfter       = 12 * time.Millisecond

	defaultYieldEvery    = 50
	defaultYieldAfter    = 50 * time.Millisecond
	defaultPathCacheSize = 100

	defaultConnectorRadiusDeg = 0.002
	defaultVerticalPenaltyM   = 5.0
)

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		MaxEdgeDistanceM:         defaultMaxEdgeDistanceM,
		MaxNeighbors:             defaultMaxNeighbors,
		YieldEvery:               defaultYieldEvery,
		YieldAfter:               defaultYieldAfter,
		PathCacheSize:            defaultPathCacheSize,
		PublicRoomDoorCount:      2,
		PublicRoomAreaM2:         80,
		ConnectorSearchRadiusDeg: defaultConnectorRadiusDeg,
		VerticalPenaltyM:         defaultVerticalPenaltyM,
	}
}

// tightenForSize applies the large-graph parameter set when the node count
// crosses the threshold, unless the caller already overrode the defaults.
func (o *Options) tightenForSize(nodeCount int) {
	if nodeCount <= largeGraphNodes {
		return
	}
	if o.MaxEdgeDistanceM == defaultMaxEdgeDistanceM {
		o.MaxEdgeDistanceM = largeGraphMaxEdgeDistanceM
	}
	if o.MaxNeighbors == defaultMaxNeighbors {
		o.MaxNeighbors = largeGraphMaxNeighbors
	}
	if o.YieldEvery == defaultYieldEvery {
		o.YieldEvery = largeGraphYieldEvery
	}
	if o.YieldAfter == defaultYieldAfter {
		o.YieldAfter = largeGraphYieldAfter
	}
}
