package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
	"github.com/mapell/floornav/pkg/metrics"
	"github.com/mapell/floornav/pkg/rooms"
	"github.com/mapell/floornav/pkg/smooth"
)

// Room traversal modes: "public" allows public rooms plus the endpoint
// rooms, "strict" allows only the endpoint rooms and explicit AllowedRoomIDs,
// "all" disables the room gate entirely.
const (
	TraversalPublic = "public"
	TraversalStrict = "strict"
	TraversalAll    = "all"
)

// RouteOptions controls one query.
type RouteOptions struct {
	// AccessibleOnly rejects edges not traversable with a wheelchair
	// (stairs, escalators).
	AccessibleOnly bool

	// AvoidStairs rejects stairs edges specifically.
	AvoidStairs bool

	// AllowLockedDoors lets the search pass through locked (non-public)
	// doors.
	AllowLockedDoors bool

	// HeuristicWeight scales the A* heuristic; values above 1 trade
	// optimality for speed. 0 means 1.
	HeuristicWeight float64

	// RoomTraversalMode is one of TraversalPublic (default), TraversalStrict,
	// TraversalAll.
	RoomTraversalMode string

	// AllowedRoomIDs are always traversable regardless of classification.
	AllowedRoomIDs []string

	// Bidirectional switches to the bidirectional A* variant.
	Bidirectional bool
}

// Segment is one leg of a route between consecutive path points. Type is
// the traversed edge's type; legs between a user endpoint and its anchor
// node carry EdgeWalkable.
type Segment struct {
	From        string         `json:"from"`
	To          string         `json:"to"`
	FromCoords  orb.Point      `json:"fromCoords"`
	ToCoords    orb.Point      `json:"toCoords"`
	DistanceM   float64        `json:"distanceM"`
	Type        graph.EdgeType `json:"type"`
	FromFloor   string         `json:"fromFloor"`
	ToFloor     string         `json:"toFloor"`
	FloorChange bool           `json:"floorChange"`
}

// Route is the result of a successful query. Path and Floors are parallel
// slices; DistanceM is the sum of the segment distances.
type Route struct {
	ID        string            `json:"id"`
	Path      []orb.Point       `json:"path"`
	NodeIDs   []string          `json:"nodeIds"`
	Floors    []string          `json:"floors"`
	Segments  []Segment         `json:"segments"`
	DistanceM float64           `json:"distanceM"`
	StartNode string            `json:"startNode,omitempty"`
	EndNode   string            `json:"endNode,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// anchored is a candidate graph node for one endpoint, with the connector
// distance from the user coordinate and whether the connector passed a
// clearance check.
type anchored struct {
	node  *graph.Node
	dist  float64
	clear bool
}

// FindRoute computes a walking route between two coordinates. It returns a
// *RouteError for the taxonomy failures (not-initialized, no-door, no-path,
// blocked); the same error is retrievable via LastRouteError.
func (e *Engine) FindRoute(start, end orb.Point, startFloor, endFloor string, opts RouteOptions) (*Route, error) {
	began := time.Now()
	route, rerr := e.findRoute(start, end, startFloor, endFloor, opts)
	metrics.RouteDuration.Observe(time.Since(began).Seconds())

	if rerr != nil {
		e.setLastError(rerr)
		metrics.RouteRequestsTotal.WithLabelValues(string(rerr.Code)).Inc()
		return nil, rerr
	}
	metrics.RouteRequestsTotal.WithLabelValues("ok").Inc()
	return route, nil
}

func (e *Engine) findRoute(start, end orb.Point, startFloor, endFloor string, opts RouteOptions) (*Route, *RouteError) {
	if !e.initialized.Load() {
		return nil, routeErrorf(CodeNotInitialized, "engine not initialized; call Initialize first")
	}
	if opts.RoomTraversalMode == "" {
		opts.RoomTraversalMode = TraversalPublic
	}

	cacheKey := e.pathCacheKey(start, end, startFloor, endFloor, opts)
	if cached, ok := e.pathCache.Get(cacheKey); ok {
		metrics.PathCacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.PathCacheHits.WithLabelValues("miss").Inc()

	startRoom := e.roomModel.RoomAt(start, startFloor)
	endRoom := e.roomModel.RoomAt(end, endFloor)

	// trivial case: both endpoints in the same room with clear line of sight
	if startRoom != nil && endRoom != nil &&
		startRoom.GeometryID == endRoom.GeometryID &&
		startFloor == endFloor &&
		e.detector.IsPathClear(start, end, startFloor) {
		route := e.trivialRoute(start, end, startFloor)
		e.pathCache.Add(cacheKey, route)
		return route, nil
	}

	startCandidates, rerr := e.endpointCandidates(start, startFloor, startRoom, opts, "start")
	if rerr != nil {
		return nil, rerr
	}
	endCandidates, rerr := e.endpointCandidates(end, endFloor, endRoom, opts, "end")
	if rerr != nil {
		return nil, rerr
	}

	constraints := e.buildConstraints(opts, startRoom, endRoom)

	best, bestStart, bestEnd := e.searchPairs(startCandidates, endCandidates, constraints, opts)
	if best == nil && constraints.DisallowOtherRooms {
		// constrained search failed; retry as if mode were "all"
		relaxed := constraints
		relaxed.DisallowOtherRooms = false
		relaxed.AllowedRoomIDs = nil
		best, bestStart, bestEnd = e.searchPairs(startCandidates, endCandidates, relaxed, opts)
	}
	if best == nil {
		return nil, routeErrorf(CodeNoPath, "no path between (%v, %s) and (%v, %s)",
			start, startFloor, end, endFloor)
	}

	route := e.assembleRoute(start, end, startFloor, endFloor, best, bestStart, bestEnd, opts)
	e.pathCache.Add(cacheKey, route)
	return route, nil
}

// endpointCandidates builds the anchor candidate set for one endpoint and
// runs the layered connector-clearance fallbacks over it.
func (e *Engine) endpointCandidates(p orb.Point, floorID string, room *rooms.Room, opts RouteOptions, side string) ([]anchored, *RouteError) {
	var raw []*graph.Node

	walkable := func(n *graph.Node) bool {
		return n.Type == graph.NodeWalkable || n.Type == graph.NodeEntrance || n.Type == graph.NodeWaypoint
	}
	if nearest := e.g.NearestNode(p, floorID, e.opts.ConnectorSearchRadiusDeg, walkable); nearest != nil {
		raw = append(raw, nearest)
	}

	// door anchoring is required only for private rooms
	var roomDoors []*graph.Node
	if room != nil && !e.roomModel.IsPublic(room.GeometryID) {
		doorIDs := e.roomModel.DoorsOf(room.GeometryID)
		usable := 0
		for _, id := range doorIDs {
			door := e.g.Node(id)
			if door == nil {
				continue
			}
			if door.Meta.IsLocked && !opts.AllowLockedDoors {
				continue
			}
			usable++
			roomDoors = append(roomDoors, door)
		}
		if len(doorIDs) > 0 && usable == 0 {
			return nil, routeErrorf(CodeNoDoor,
				"%s endpoint is in private room %s and every door is locked", side, room.GeometryID)
		}
		raw = append(raw, roomDoors...)
	}

	// layer 0: strict clearance
	var out []anchored
	for _, n := range raw {
		if e.detector.IsPathClear(p, n.Coords, floorID) {
			out = append(out, anchored{node: n, dist: geo.Distance(p, n.Coords), clear: true})
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	// layer 1: relaxed clearance
	for _, n := range raw {
		if e.detector.IsPathClearRelaxed(p, n.Coords, floorID) {
			out = append(out, anchored{node: n, dist: geo.Distance(p, n.Coords), clear: true})
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	// layer 2: inside a room, its doors count without any sight check
	if room != nil {
		for _, id := range e.roomModel.DoorsOf(room.GeometryID) {
			door := e.g.Node(id)
			if door == nil || (door.Meta.IsLocked && !opts.AllowLockedDoors) {
				continue
			}
			out = append(out, anchored{node: door, dist: geo.Distance(p, door.Coords)})
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	// layer 3: widen over the spatial index, relaxed clearance only
	for _, n := range e.g.NodesNear(p, floorID, e.opts.ConnectorSearchRadiusDeg) {
		if !walkable(n) {
			continue
		}
		if e.detector.IsPathClearRelaxed(p, n.Coords, floorID) {
			out = append(out, anchored{node: n, dist: geo.Distance(p, n.Coords)})
			if len(out) >= 10 {
				break
			}
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	// layer 4: unconditional nearest; trust the precomputed graph
	if nearest := e.g.NearestNode(p, floorID, e.opts.ConnectorSearchRadiusDeg, nil); nearest != nil {
		return []anchored{{node: nearest, dist: geo.Distance(p, nearest.Coords)}}, nil
	}

	return nil, routeErrorf(CodeBlocked, "%s endpoint (%v, %s) is unreachable from the graph", side, p, floorID)
}

// buildConstraints translates the query options into search filters.
func (e *Engine) buildConstraints(opts RouteOptions, startRoom, endRoom *rooms.Room) searchConstraints {
	c := searchConstraints{
		AccessibleOnly:  opts.AccessibleOnly,
		AvoidStairs:     opts.AvoidStairs,
		HeuristicWeight: opts.HeuristicWeight,
	}
	if !opts.AllowLockedDoors {
		c.NodeFilter = func(n *graph.Node) bool { return !n.Meta.IsLocked }
	}
	if opts.RoomTraversalMode == TraversalAll {
		return c
	}

	allowed := make(map[string]struct{})
	for _, id := range opts.AllowedRoomIDs {
		allowed[id] = struct{}{}
	}
	if startRoom != nil {
		allowed[startRoom.GeometryID] = struct{}{}
	}
	if endRoom != nil {
		allowed[endRoom.GeometryID] = struct{}{}
	}
	if opts.RoomTraversalMode == TraversalPublic {
		for _, r := range e.roomModel.Rooms() {
			if e.roomModel.IsPublic(r.GeometryID) {
				allowed[r.GeometryID] = struct{}{}
			}
		}
	}
	c.AllowedRoomIDs = allowed
	c.DisallowOtherRooms = true
	return c
}

// searchPairs runs the graph search for every candidate pair and keeps the
// combination minimizing indoor distance plus both connector distances.
func (e *Engine) searchPairs(startCandidates, endCandidates []anchored, c searchConstraints, opts RouteOptions) (*searchResult, anchored, anchored) {
	var best *searchResult
	var bestStart, bestEnd anchored
	bestTotal := inf

	for _, sc := range startCandidates {
		for _, ec := range endCandidates {
			var result *searchResult
			var ok bool
			if opts.Bidirectional {
				result, ok = bidirectionalSearch(e.g, sc.node.ID, ec.node.ID, c)
			} else {
				result, ok = astarSearch(e.g, sc.node.ID, ec.node.ID, c)
			}
			if !ok {
				continue
			}
			total := result.Distance + sc.dist + ec.dist
			if total < bestTotal {
				best = result
				bestStart, bestEnd = sc, ec
				bestTotal = total
			}
		}
	}
	return best, bestStart, bestEnd
}

// trivialRoute is the two-point route used when both endpoints share a room
// with clear line of sight. It has no graph nodes at all.
func (e *Engine) trivialRoute(start, end orb.Point, floorID string) *Route {
	dist := geo.Distance(start, end)
	return &Route{
		ID:     uuid.NewString(),
		Path:   []orb.Point{start, end},
		Floors: []string{floorID, floorID},
		Segments: []Segment{{
			FromCoords: start,
			ToCoords:   end,
			DistanceM:  dist,
			Type:       graph.EdgeWalkable,
			FromFloor:  floorID,
			ToFloor:    floorID,
		}},
		DistanceM: dist,
		Meta:      map[string]string{"trivial": "true"},
	}
}

// assembleRoute turns a raw search result into the final route: node
// coordinates, the user endpoints when their connectors are clear, parallel
// floors, per-leg segments, and warnings for blocked connectors.
func (e *Engine) assembleRoute(start, end orb.Point, startFloor, endFloor string, result *searchResult, sc, ec anchored, opts RouteOptions) *Route {
	type waypoint struct {
		id      string
		coords  orb.Point
		floorID string
	}

	var points []waypoint
	var warnings []string

	if sc.clear {
		points = append(points, waypoint{coords: start, floorID: startFloor})
	} else {
		warnings = append(warnings, "start connector is blocked; route begins at the nearest graph node")
	}
	for _, id := range result.NodeIDs {
		n := e.g.Node(id)
		points = append(points, waypoint{id: id, coords: n.Coords, floorID: n.FloorID})
	}
	if ec.clear {
		points = append(points, waypoint{coords: end, floorID: endFloor})
	} else {
		warnings = append(warnings, "end connector is blocked; route ends at the nearest graph node")
	}

	route := &Route{
		ID:        uuid.NewString(),
		NodeIDs:   result.NodeIDs,
		StartNode: sc.node.ID,
		EndNode:   ec.node.ID,
		Warnings:  warnings,
		Meta: map[string]string{
			"roomTraversalMode": opts.RoomTraversalMode,
		},
	}
	for _, wp := range points {
		route.Path = append(route.Path, wp.coords)
		route.Floors = append(route.Floors, wp.floorID)
	}
	route.Floors = backfillFloors(route.Floors, len(route.Path), startFloor)

	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		seg := Segment{
			From:        a.id,
			To:          b.id,
			FromCoords:  a.coords,
			ToCoords:    b.coords,
			DistanceM:   geo.Distance(a.coords, b.coords),
			Type:        e.edgeTypeBetween(a.id, b.id),
			FromFloor:   a.floorID,
			ToFloor:     b.floorID,
			FloorChange: a.floorID != b.floorID,
		}
		route.Segments = append(route.Segments, seg)
		route.DistanceM += seg.DistanceM
	}
	return route
}

// edgeTypeBetween returns the type of the edge A* traversed between two
// adjacent route nodes: the cheapest edge connecting them, matching the
// search's own choice. User-endpoint legs have no graph edge and count as
// plain walking.
func (e *Engine) edgeTypeBetween(from, to string) graph.EdgeType {
	if from == "" || to == "" {
		return graph.EdgeWalkable
	}
	edgeType := graph.EdgeWalkable
	bestWeight := math.Inf(1)
	for _, edge := range e.g.Out(from) {
		if edge.To == to && edge.Weight < bestWeight {
			edgeType = edge.Type
			bestWeight = edge.Weight
		}
	}
	return edgeType
}

// backfillFloors pads a floor sequence shorter than the path: middle
// entries default to the start-side floor. This is a convention, not a
// correctness property.
func backfillFloors(floors []string, pathLen int, startFloor string) []string {
	if len(floors) >= pathLen {
		return floors[:pathLen]
	}
	out := make([]string, pathLen)
	copy(out, floors)
	for i := len(floors); i < pathLen; i++ {
		out[i] = startFloor
	}
	if len(floors) > 0 {
		out[pathLen-1] = floors[len(floors)-1]
	}
	return out
}

// SmoothRoute returns the cosmetically smoothed polyline of a route with
// its parallel floor slice. The route itself is never mutated and the
// smoothed coordinates are never fed back into the graph.
func (e *Engine) SmoothRoute(r *Route) ([]orb.Point, []string) {
	resolution := e.opts.SmoothResolution
	return smooth.SmoothWithFloors(r.Path, r.Floors, resolution)
}

// SimplifyRoute returns the Douglas-Peucker-simplified polyline of a route.
func (e *Engine) SimplifyRoute(r *Route, epsilonDeg float64) []orb.Point {
	return smooth.Simplify(r.Path, epsilonDeg)
}

// pathCacheKey rounds the endpoints to roughly one meter and folds in every
// option that changes the result.
func (e *Engine) pathCacheKey(start, end orb.Point, startFloor, endFloor string, opts RouteOptions) string {
	return fmt.Sprintf("%.5f,%.5f,%s|%.5f,%.5f,%s|acc=%t|mode=%s|locked=%t|stairs=%t|bidi=%t|p=%d|a=%g",
		start[0], start[1], startFloor,
		end[0], end[1], endFloor,
		opts.AccessibleOnly, opts.RoomTraversalMode, opts.AllowLockedDoors, opts.AvoidStairs, opts.Bidirectional,
		e.opts.PublicRoomDoorCount, e.opts.PublicRoomAreaM2)
}
