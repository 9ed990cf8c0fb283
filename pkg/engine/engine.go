// Package engine implements the indoor routing core: it builds an
// obstacle-aware visibility graph over the walkable sample points of each
// floor, stitches floors together through stairs and elevators, treats rooms
// and doors as first-class routing constraints, and answers shortest-path
// queries with A* behind a layered endpoint-fallback strategy.
//
// Basic usage:
//
//	ds, err := mvf.LoadDir("./dataset", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng := engine.New(ds, engine.DefaultOptions())
//	if err := eng.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	route, err := eng.FindRoute(start, end, "floor0", "floor0", engine.RouteOptions{})
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mapell/floornav/pkg/collision"
	"github.com/mapell/floornav/pkg/edgecache"
	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
	"github.com/mapell/floornav/pkg/metrics"
	"github.com/mapell/floornav/pkg/mvf"
	"github.com/mapell/floornav/pkg/rooms"
)

// orphanDoorRadiusM bounds the nearest-node search when linking door nodes
// that ended the edge build with no edges.
const orphanDoorRadiusM = 6.0

// Engine is a routing instance over one dataset. After Initialize returns,
// the graph, collision model, and room indexes are immutable; concurrent
// readers need no locking. The LRU path cache is the only mutable shared
// state on the query path.
type Engine struct {
	opts    Options
	dataset *mvf.Dataset
	logger  *slog.Logger

	g         *graph.Graph
	detector  *collision.Detector
	roomModel *rooms.Model

	pathCache *lru.Cache[string, *Route]

	initialized atomic.Bool

	errMu   sync.Mutex
	lastErr *RouteError

	// adminMu serializes Initialize against itself.
	adminMu sync.Mutex
}

// New creates an engine over the dataset. Call Initialize before querying.
func New(ds *mvf.Dataset, opts Options) *Engine {
	return NewWithLogger(ds, opts, nil)
}

// NewWithLogger is New with an explicit logger. A nil logger falls back to
// slog.Default().
func NewWithLogger(ds *mvf.Dataset, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PathCacheSize <= 0 {
		opts.PathCacheSize = defaultPathCacheSize
	}
	cache, _ := lru.New[string, *Route](opts.PathCacheSize)
	return &Engine{
		opts:      opts,
		dataset:   ds,
		logger:    logger,
		pathCache: cache,
	}
}

// Initialized reports whether Initialize has completed.
func (e *Engine) Initialized() bool { return e.initialized.Load() }

// LastRouteError returns the failure reason of the most recent query that
// did not produce a route, for operator inspection. Each failed query
// overwrites it; a successful query leaves it unchanged.
func (e *Engine) LastRouteError() *RouteError {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}

func (e *Engine) setLastError(err *RouteError) {
	e.errMu.Lock()
	e.lastErr = err
	e.errMu.Unlock()
}

// Graph exposes the built routing graph for inspection. Read-only.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Rooms exposes the room model. Read-only.
func (e *Engine) Rooms() *rooms.Model { return e.roomModel }

// Detector exposes the collision model. Read-only.
func (e *Engine) Detector() *collision.Detector { return e.detector }

// Initialize runs the full build pipeline: obstacles, nodes, spatial
// indexes, visibility edges (from cache when possible), cross-floor
// connectors, then room and door tagging. Long-running work yields
// cooperatively and checks ctx at every yield point; on cancellation the
// engine is left uninitialized and partial state is discarded.
func (e *Engine) Initialize(ctx context.Context) error {
	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	// let prior tasks drain before the heavy build starts
	runtime.Gosched()
	if err := ctx.Err(); err != nil {
		return err
	}

	started := time.Now()

	detector := collision.NewDetector(e.logger)
	roomModel := rooms.NewModel(e.logger)
	if e.opts.PublicRoomDoorCount > 0 {
		roomModel.PublicDoorCount = e.opts.PublicRoomDoorCount
	}
	if e.opts.PublicRoomAreaM2 > 0 {
		roomModel.PublicAreaM2 = e.opts.PublicRoomAreaM2
	}
	g := graph.New()

	e.buildObstaclesAndRooms(detector, roomModel)

	if err := e.buildNodes(g, detector); err != nil {
		return err
	}

	opts := e.opts
	opts.tightenForSize(g.NodeCount())

	g.BuildSpatialIndexes()

	if err := e.buildVisibilityEdges(ctx, g, detector, opts); err != nil {
		return err
	}

	e.applyConnections(g, opts.VerticalPenaltyM)

	roomModel.AttachDoors(g)
	roomModel.TagNodes(g)
	e.connectOrphanDoors(g, detector)

	// publish only once the build is complete
	e.g = g
	e.detector = detector
	e.roomModel = roomModel
	e.opts = opts
	e.initialized.Store(true)

	metrics.GraphNodes.Set(float64(g.NodeCount()))
	metrics.GraphEdges.Set(float64(g.EdgeCount()))

	e.logger.Info("engine initialized",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"rooms", len(roomModel.Rooms()),
		"duration", time.Since(started).String(),
	)
	return nil
}

// buildObstaclesAndRooms classifies the source geometry into the collision
// model and the room index. A single malformed feature never aborts
// initialization.
func (e *Engine) buildObstaclesAndRooms(detector *collision.Detector, roomModel *rooms.Model) {
	if e.dataset.Geometry == nil {
		return
	}
	for _, f := range e.dataset.Geometry.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		id := f.Properties.MustString("id", "")
		floorID := mvf.FeatureFloorID(f)
		if id == "" || floorID == "" {
			continue
		}

		kind := e.dataset.Kinds[id]
		_, nonwalkable := e.dataset.NonwalkableSet[id]

		switch {
		case kind == mvf.KindWall:
			// buffering failures already logged by the detector
			_ = detector.AddWall(floorID, f.Geometry)
		case nonwalkable:
			_ = detector.AddObstacle(floorID, f.Geometry)
		}

		if kind == mvf.KindRoom {
			_ = roomModel.AddRoom(id, floorID, f.Geometry)
		}
	}
}

// buildNodes populates the graph with walkable, connector, entrance, and
// door nodes, and registers door segments with the collision detector.
func (e *Engine) buildNodes(g *graph.Graph, detector *collision.Detector) error {
	add := func(nf mvf.NodeFeature, typ graph.NodeType, meta graph.Metadata) {
		meta.GeometryIDs = nf.GeometryIDs
		n := &graph.Node{
			ID:      nf.ID,
			Coords:  nf.Coords,
			FloorID: nf.FloorID,
			Type:    typ,
			Meta:    meta,
		}
		if err := g.AddNode(n); err != nil {
			e.logger.Warn("skipping node", "id", nf.ID, "error", err)
		}
	}

	for _, nf := range mvf.NormalizeNodes(e.dataset.WalkableNodes, string(graph.NodeWalkable), e.logger) {
		add(nf, graph.NodeWalkable, graph.Metadata{Accessible: true})
	}
	for _, nf := range mvf.NormalizeNodes(e.dataset.StairNodes, string(graph.NodeStairs), e.logger) {
		add(nf, graph.NodeStairs, graph.Metadata{IsStairs: true})
	}
	for _, nf := range mvf.NormalizeNodes(e.dataset.ElevatorNodes, string(graph.NodeElevator), e.logger) {
		add(nf, graph.NodeElevator, graph.Metadata{IsElevator: true, Accessible: true})
	}
	for _, nf := range mvf.NormalizeNodes(e.dataset.EntranceNodes, string(graph.NodeEntrance), e.logger) {
		add(nf, graph.NodeEntrance, graph.Metadata{Accessible: true})
	}

	doorNodes, doorSegments := rooms.BuildDoorNodes(e.dataset, e.logger)
	for _, n := range doorNodes {
		if err := g.AddNode(n); err != nil {
			e.logger.Warn("skipping door node", "id", n.ID, "error", err)
		}
	}
	for floorID, segs := range doorSegments {
		detector.SetDoorSegments(floorID, segs)
	}

	if g.NodeCount() == 0 {
		return fmt.Errorf("engine: dataset produced no nodes")
	}
	return nil
}

// buildVisibilityEdges fetches the edge set from the cache when allowed and
// valid, otherwise runs the edge builder and persists the result
// fire-and-forget.
func (e *Engine) buildVisibilityEdges(ctx context.Context, g *graph.Graph, detector *collision.Detector, opts Options) error {
	key := e.cacheKey(opts)

	if opts.Cache != nil && !opts.RebuildGraph && !opts.NoGraphCache {
		rec, ok, err := opts.Cache.Get(key)
		switch {
		case err != nil:
			metrics.EdgeCacheLookups.WithLabelValues("error").Inc()
			e.logger.Warn("edge cache read failed, rebuilding", "key", key, "error", err)
		case ok:
			if applied := e.applyCachedEdges(g, rec); applied >= 0 {
				metrics.EdgeCacheLookups.WithLabelValues("hit").Inc()
				e.logger.Info("visibility edges restored from cache", "key", key, "edges", applied)
				return nil
			}
		default:
			metrics.EdgeCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	edges, err := BuildVisibilityEdges(ctx, g, detector, EdgeBuilderConfig{
		MaxDistanceM: opts.MaxEdgeDistanceM,
		MaxNeighbors: opts.MaxNeighbors,
		YieldEvery:   opts.YieldEvery,
		YieldAfter:   opts.YieldAfter,
		OnFloor: func(i int, floorID string, count int) {
			e.logger.Debug("visibility edges built", "floorIndex", i, "floor", floorID, "edges", count)
		},
	})
	if err != nil {
		return err
	}
	for _, edge := range edges {
		if err := g.AddEdge(edge); err != nil {
			return err
		}
	}

	if opts.Cache != nil && !opts.NoGraphCache {
		rec := recordFromEdges(edges, e.dataset)
		store := opts.Cache
		logger := e.logger
		go func() {
			if err := store.Put(key, rec); err != nil {
				logger.Warn("edge cache write failed", "key", key, "error", err)
			}
		}()
	}
	return nil
}

// applyCachedEdges loads cached triples into the graph. Returns the number
// applied, or -1 when the record references unknown nodes, which means the
// record belongs to a different dataset generation and must be rebuilt.
func (e *Engine) applyCachedEdges(g *graph.Graph, rec *edgecache.Record) int {
	for _, t := range rec.Edges {
		if !g.HasNode(t.From) || !g.HasNode(t.To) {
			e.logger.Warn("edge cache record is stale, rebuilding", "from", t.From, "to", t.To)
			return -1
		}
	}
	for _, t := range rec.Edges {
		_ = g.AddEdge(graph.Edge{
			From:       t.From,
			To:         t.To,
			Weight:     t.Weight,
			Type:       graph.EdgeWalkable,
			Accessible: true,
		})
	}
	return len(rec.Edges)
}

func (e *Engine) cacheKey(opts Options) string {
	mapID := e.dataset.MapID
	if mapID == "" {
		mapID = fmt.Sprintf("%016x", e.dataset.Fingerprint())
	}
	return edgecache.Key(mapID, e.dataset.MapTime, opts.MaxEdgeDistanceM, opts.MaxNeighbors)
}

func recordFromEdges(edges []graph.Edge, ds *mvf.Dataset) *edgecache.Record {
	triples := make([]edgecache.EdgeTriple, 0, len(edges))
	for _, edge := range edges {
		triples = append(triples, edgecache.EdgeTriple{
			From:   edge.From,
			To:     edge.To,
			Weight: edge.Weight,
		})
	}
	return &edgecache.Record{
		Edges: triples,
		Meta: map[string]string{
			"mapId": ds.MapID,
		},
		CreatedAt: time.Now().Unix(),
	}
}

// connectOrphanDoors links every door node that ended the edge build with
// zero edges to its nearest node within 6 m on the same floor: line-of-sight
// preferred, unconditional nearest as fallback. Doors are never isolated.
func (e *Engine) connectOrphanDoors(g *graph.Graph, detector *collision.Detector) {
	g.Nodes(func(n *graph.Node) bool {
		if !n.Meta.IsDoor || g.Degree(n.ID) > 0 {
			return true
		}

		_, radiusDeg := geo.MetersToDegrees(orphanDoorRadiusM, n.Coords[1])
		notSelf := func(c *graph.Node) bool {
			return c.ID != n.ID && geo.Distance(n.Coords, c.Coords) <= orphanDoorRadiusM
		}
		withSight := func(c *graph.Node) bool {
			return notSelf(c) && detector.HasLineOfSight(n.Coords, c.Coords, n.FloorID)
		}

		target := g.NearestNode(n.Coords, n.FloorID, radiusDeg, withSight)
		if target == nil {
			target = g.NearestNode(n.Coords, n.FloorID, radiusDeg, notSelf)
		}
		if target == nil {
			e.logger.Warn("door has no reachable neighbor", "door", n.ID, "floor", n.FloorID)
			return true
		}

		err := g.AddBidirectional(graph.Edge{
			From:       n.ID,
			To:         target.ID,
			Weight:     geo.Distance(n.Coords, target.Coords),
			Type:       graph.EdgeDoorLink,
			Accessible: true,
		})
		if err != nil {
			e.logger.Warn("linking orphan door failed", "door", n.ID, "error", err)
		}
		return true
	})
}
