package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/mapell/floornav/pkg/edgecache"
	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
)

func TestQueryBeforeInitialize(t *testing.T) {
	eng := New(corridorDataset(), DefaultOptions())

	_, err := eng.FindRoute(pt(0.5, 1), pt(9.5, 1), testFloor0, testFloor0, RouteOptions{})
	var rerr *RouteError
	if !errors.As(err, &rerr) || rerr.Code != CodeNotInitialized {
		t.Fatalf("expected not-initialized, got %v", err)
	}
}

func TestInitializeCancellation(t *testing.T) {
	eng := New(corridorDataset(), DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := eng.Initialize(ctx); err == nil {
		t.Fatal("canceled context must abort initialization")
	}
	if eng.Initialized() {
		t.Error("aborted initialization must leave the engine uninitialized")
	}
}

func TestStraightCorridor(t *testing.T) {
	eng := initEngine(t, corridorDataset(), DefaultOptions())

	route, err := eng.FindRoute(pt(0.5, 1), pt(9.5, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if math.Abs(route.DistanceM-9) > 0.2 {
		t.Errorf("expected ~9m, got %.3f", route.DistanceM)
	}
	for _, f := range route.Floors {
		if f != testFloor0 {
			t.Fatalf("all points must be on %s, got %q", testFloor0, f)
		}
	}
	if countFloorChanges(route.Floors) != 0 {
		t.Error("no floor changes expected")
	}
	if len(route.Warnings) != 0 {
		t.Errorf("no warnings expected, got %v", route.Warnings)
	}
	if len(route.Path) != len(route.Floors) {
		t.Error("path and floors must be parallel")
	}
}

func TestRouteDistanceMatchesSegments(t *testing.T) {
	eng := initEngine(t, corridorDataset(), DefaultOptions())

	route, err := eng.FindRoute(pt(0.5, 1), pt(9.5, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	sum := 0.0
	for i := 0; i+1 < len(route.Path); i++ {
		sum += geo.Distance(route.Path[i], route.Path[i+1])
	}
	if math.Abs(route.DistanceM-sum) > 1e-6*math.Max(1, sum) {
		t.Errorf("distance %.9f must equal path sum %.9f", route.DistanceM, sum)
	}
}

func TestLShapeAvoidsObstacle(t *testing.T) {
	eng := initEngine(t, lShapeDataset(), DefaultOptions())

	route, err := eng.FindRoute(pt(1, 1), pt(9, 9), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	for i := 0; i+1 < len(route.Path); i++ {
		if eng.Detector().LineIntersectsObstacle(route.Path[i], route.Path[i+1], testFloor0) {
			t.Fatalf("leg %d crosses the obstacle", i)
		}
	}

	euclid := geo.Distance(pt(1, 1), pt(9, 9))
	if route.DistanceM <= euclid {
		t.Errorf("detour %.2fm must exceed the straight line %.2fm", route.DistanceM, euclid)
	}
}

func TestLockedDoor(t *testing.T) {
	t.Run("LockedFails", func(t *testing.T) {
		eng := initEngine(t, lockedDoorDataset(0), DefaultOptions())

		_, err := eng.FindRoute(pt(2.5, 2.5), pt(2, 6.5), testFloor0, testFloor0, RouteOptions{})
		var rerr *RouteError
		if !errors.As(err, &rerr) || rerr.Code != CodeNoDoor {
			t.Fatalf("expected no-door, got %v", err)
		}
		if got := eng.LastRouteError(); got == nil || got.Code != CodeNoDoor {
			t.Errorf("last error slot must hold no-door, got %v", got)
		}
	})

	t.Run("AllowLockedPassesThroughDoor", func(t *testing.T) {
		eng := initEngine(t, lockedDoorDataset(0), DefaultOptions())

		route, err := eng.FindRoute(pt(2.5, 2.5), pt(2, 6.5), testFloor0, testFloor0,
			RouteOptions{AllowLockedDoors: true})
		if err != nil {
			t.Fatalf("route: %v", err)
		}

		found := false
		for _, id := range route.NodeIDs {
			if id == "door_R1_D1" {
				found = true
			}
		}
		if !found {
			t.Errorf("route must pass through door_R1_D1, got %v", route.NodeIDs)
		}
	})

	t.Run("UnlockedDoorWorks", func(t *testing.T) {
		eng := initEngine(t, lockedDoorDataset(1), DefaultOptions())

		route, err := eng.FindRoute(pt(2.5, 2.5), pt(2, 6.5), testFloor0, testFloor0, RouteOptions{})
		if err != nil {
			t.Fatalf("route with public door: %v", err)
		}
		if len(route.NodeIDs) == 0 {
			t.Error("expected a graph-backed route")
		}
	})
}

func TestSameRoomTrivialRoute(t *testing.T) {
	eng := initEngine(t, lockedDoorDataset(0), DefaultOptions())

	route, err := eng.FindRoute(pt(1, 1), pt(4, 4), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(route.Path) != 2 {
		t.Errorf("same-room clear-sight route has exactly two coordinates, got %d", len(route.Path))
	}
	if len(route.NodeIDs) != 0 {
		t.Errorf("trivial route uses no graph nodes, got %v", route.NodeIDs)
	}
}

func TestMultiFloorElevator(t *testing.T) {
	t.Run("AccessibleViaElevator", func(t *testing.T) {
		eng := initEngine(t, twoFloorDataset("elevator"), DefaultOptions())

		route, err := eng.FindRoute(pt(0, 0), pt(0, 0), testFloor0, testFloor1,
			RouteOptions{AccessibleOnly: true})
		if err != nil {
			t.Fatalf("route: %v", err)
		}
		if countFloorChanges(route.Floors) != 1 {
			t.Errorf("expected exactly one floor change, floors %v", route.Floors)
		}

		// the floor change must ride the elevator nodes
		hasLift := false
		for i := 0; i+1 < len(route.NodeIDs); i++ {
			if route.NodeIDs[i] == "lift0" && route.NodeIDs[i+1] == "lift1" {
				hasLift = true
			}
		}
		if !hasLift {
			t.Errorf("route must traverse lift0 -> lift1, got %v", route.NodeIDs)
		}

		// the floor-change segment records the traversed edge type
		for _, seg := range route.Segments {
			if seg.FloorChange && seg.Type != graph.EdgeElevator {
				t.Errorf("floor-change segment must carry the elevator type, got %q", seg.Type)
			}
		}

		instrs := Instructions(route)
		named := false
		for _, in := range instrs {
			if in.Type == InstrFloorChange && in.Text == "Take the elevator to "+testFloor1 {
				named = true
			}
		}
		if !named {
			t.Errorf("floor-change instruction must name the elevator, got %v", instrs)
		}
	})

	t.Run("StairsOnlyBlocksAvoidStairs", func(t *testing.T) {
		eng := initEngine(t, twoFloorDataset("stairs"), DefaultOptions())

		_, err := eng.FindRoute(pt(0, 0), pt(0, 0), testFloor0, testFloor1,
			RouteOptions{AvoidStairs: true})
		var rerr *RouteError
		if !errors.As(err, &rerr) || rerr.Code != CodeNoPath {
			t.Fatalf("expected no-path, got %v", err)
		}
	})

	t.Run("StairsOnlyBlocksAccessible", func(t *testing.T) {
		eng := initEngine(t, twoFloorDataset("stairs"), DefaultOptions())

		_, err := eng.FindRoute(pt(0, 0), pt(0, 0), testFloor0, testFloor1,
			RouteOptions{AccessibleOnly: true})
		var rerr *RouteError
		if !errors.As(err, &rerr) || rerr.Code != CodeNoPath {
			t.Fatalf("expected no-path, got %v", err)
		}
	})

	t.Run("StairsWorkByDefault", func(t *testing.T) {
		eng := initEngine(t, twoFloorDataset("stairs"), DefaultOptions())

		route, err := eng.FindRoute(pt(0, 0), pt(0, 0), testFloor0, testFloor1, RouteOptions{})
		if err != nil {
			t.Fatalf("route: %v", err)
		}
		if countFloorChanges(route.Floors) != 1 {
			t.Errorf("expected one floor change, floors %v", route.Floors)
		}
	})
}

func TestEndpointInsideWallBuffer(t *testing.T) {
	eng := initEngine(t, walledDataset(), DefaultOptions())

	// (5, 1.8) sits inside the 0.5m wall buffer; the nearest node (5, 1) is
	// 0.8m away, so the relaxed short-connector rule applies
	route, err := eng.FindRoute(pt(5, 1.8), pt(9, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("relaxed clearance should rescue the endpoint: %v", err)
	}
	if len(route.Path) < 2 {
		t.Error("expected a usable route")
	}
}

func TestFullyBlockedEndpointWarns(t *testing.T) {
	eng := initEngine(t, boxedDataset(), DefaultOptions())

	route, err := eng.FindRoute(pt(5, 5), pt(9, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("the unconditional fallback must still produce a route: %v", err)
	}
	if len(route.Warnings) == 0 {
		t.Error("a blocked start connector must be reported in warnings")
	}
	// the blocked start coordinate itself is not prepended
	if route.Path[0] == pt(5, 5) {
		t.Error("blocked endpoints must not appear in the path")
	}
}

func TestIdempotentQueries(t *testing.T) {
	eng := initEngine(t, lShapeDataset(), DefaultOptions())

	first, err := eng.FindRoute(pt(1, 1), pt(9, 9), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	second, err := eng.FindRoute(pt(1, 1), pt(9, 9), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if len(first.Path) != len(second.Path) {
		t.Fatal("identical queries must return identical paths")
	}
	for i := range first.Path {
		if first.Path[i] != second.Path[i] {
			t.Fatalf("paths diverge at %d", i)
		}
	}
}

func TestReversalSymmetry(t *testing.T) {
	eng := initEngine(t, corridorDataset(), DefaultOptions())

	ab, err := eng.FindRoute(pt(0.5, 1), pt(9.5, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	ba, err := eng.FindRoute(pt(9.5, 1), pt(0.5, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	if math.Abs(ab.DistanceM-ba.DistanceM) > 1e-6 {
		t.Errorf("reversed route must have the same length: %.9f vs %.9f", ab.DistanceM, ba.DistanceM)
	}
	if ab.Path[0] != ba.Path[len(ba.Path)-1] || ab.Path[len(ab.Path)-1] != ba.Path[0] {
		t.Error("reversed route must mirror the endpoints")
	}
}

func edgeSet(g *graph.Graph) []string {
	var out []string
	g.Edges(func(e graph.Edge) bool {
		if e.Type == graph.EdgeWalkable {
			out = append(out, e.From+"->"+e.To)
		}
		return true
	})
	sort.Strings(out)
	return out
}

func TestCacheHitEquivalence(t *testing.T) {
	store := edgecache.NewMemStore()

	opts := DefaultOptions()
	opts.Cache = store
	first := initEngine(t, corridorDataset(), opts)

	// the write is fire-and-forget; make it visible deterministically
	key := first.cacheKey(first.opts)
	if _, ok, _ := store.Get(key); !ok {
		rec := recordFromEdges(collectWalkable(first.g), first.dataset)
		if err := store.Put(key, rec); err != nil {
			t.Fatalf("seeding cache: %v", err)
		}
	}

	second := initEngine(t, corridorDataset(), opts)

	a, b := edgeSet(first.Graph()), edgeSet(second.Graph())
	if len(a) != len(b) {
		t.Fatalf("edge counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("edge sets differ at %d: %s vs %s", i, a[i], b[i])
		}
	}

	r1, err := first.FindRoute(pt(0.5, 1), pt(9.5, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	r2, err := second.FindRoute(pt(0.5, 1), pt(9.5, 1), testFloor0, testFloor0, RouteOptions{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if math.Abs(r1.DistanceM-r2.DistanceM) > 1e-9 {
		t.Errorf("cached graph must route identically: %.9f vs %.9f", r1.DistanceM, r2.DistanceM)
	}
}

func collectWalkable(g *graph.Graph) []graph.Edge {
	var out []graph.Edge
	g.Edges(func(e graph.Edge) bool {
		if e.Type == graph.EdgeWalkable {
			out = append(out, e)
		}
		return true
	})
	return out
}

func TestVisibilityEdgesHaveLineOfSight(t *testing.T) {
	eng := initEngine(t, lShapeDataset(), DefaultOptions())
	g := eng.Graph()

	g.Edges(func(e graph.Edge) bool {
		if e.Type != graph.EdgeWalkable {
			return true
		}
		from, to := g.Node(e.From), g.Node(e.To)
		if from.FloorID != to.FloorID {
			t.Fatalf("visibility edge %s->%s spans floors", e.From, e.To)
		}
		if !eng.Detector().HasLineOfSight(from.Coords, to.Coords, from.FloorID) {
			t.Fatalf("edge %s->%s lacks line of sight", e.From, e.To)
		}
		return true
	})
}

func TestAccessibleRouteAvoidsStairEdges(t *testing.T) {
	eng := initEngine(t, twoFloorDataset("elevator"), DefaultOptions())

	route, err := eng.FindRoute(pt(0, 0), pt(0, 0), testFloor0, testFloor1,
		RouteOptions{AccessibleOnly: true})
	if err != nil {
		t.Fatalf("route: %v", err)
	}

	g := eng.Graph()
	for i := 0; i+1 < len(route.NodeIDs); i++ {
		for _, e := range g.Out(route.NodeIDs[i]) {
			if e.To == route.NodeIDs[i+1] && e.Type == graph.EdgeStairs {
				t.Fatalf("accessible route rides a stairs edge %s->%s", e.From, e.To)
			}
		}
	}
}
