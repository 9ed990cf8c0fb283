package engine

import (
	"math"
	"testing"

	"github.com/mapell/floornav/pkg/graph"
)

// diamond builds a four-node graph with a short and a long branch:
//
//	a -- b -- d
//	 \-- c --/ (longer)
func diamond(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	add := func(id string, xM, yM float64) {
		if err := g.AddNode(&graph.Node{ID: id, Coords: pt(xM, yM), FloorID: testFloor0, Type: graph.NodeWalkable}); err != nil {
			t.Fatal(err)
		}
	}
	add("a", 0, 0)
	add("b", 5, 1)
	add("c", 5, -4)
	add("d", 10, 0)

	edge := func(from, to string, w float64, typ graph.EdgeType, accessible bool) {
		if err := g.AddBidirectional(graph.Edge{From: from, To: to, Weight: w, Type: typ, Accessible: accessible}); err != nil {
			t.Fatal(err)
		}
	}
	edge("a", "b", 5.1, graph.EdgeWalkable, true)
	edge("b", "d", 5.1, graph.EdgeWalkable, true)
	edge("a", "c", 6.4, graph.EdgeWalkable, true)
	edge("c", "d", 6.4, graph.EdgeWalkable, true)
	return g
}

func TestAStarPicksShorterBranch(t *testing.T) {
	g := diamond(t)
	res, ok := astarSearch(g, "a", "d", searchConstraints{})
	if !ok {
		t.Fatal("expected a path")
	}
	want := []string{"a", "b", "d"}
	if len(res.NodeIDs) != 3 {
		t.Fatalf("want %v, got %v", want, res.NodeIDs)
	}
	for i := range want {
		if res.NodeIDs[i] != want[i] {
			t.Fatalf("want %v, got %v", want, res.NodeIDs)
		}
	}
	if math.Abs(res.Distance-10.2) > 1e-9 {
		t.Errorf("want distance 10.2, got %v", res.Distance)
	}
}

func TestAStarNoPath(t *testing.T) {
	g := diamond(t)
	g.AddNode(&graph.Node{ID: "island", Coords: pt(50, 50), FloorID: testFloor0, Type: graph.NodeWalkable})

	if _, ok := astarSearch(g, "a", "island", searchConstraints{}); ok {
		t.Error("disconnected nodes must yield no path")
	}
	if _, ok := astarSearch(g, "a", "ghost", searchConstraints{}); ok {
		t.Error("unknown goal must yield no path")
	}
}

func TestAStarSameNode(t *testing.T) {
	g := diamond(t)
	res, ok := astarSearch(g, "a", "a", searchConstraints{})
	if !ok || len(res.NodeIDs) != 1 || res.Distance != 0 {
		t.Errorf("start == goal must be a zero-length path, got %+v ok=%v", res, ok)
	}
}

func TestAStarEdgeFilters(t *testing.T) {
	g := diamond(t)

	t.Run("AccessibleOnly", func(t *testing.T) {
		// make the short branch inaccessible
		g2 := graph.New()
		for _, id := range []string{"a", "b", "c", "d"} {
			n := g.Node(id)
			g2.AddNode(&graph.Node{ID: n.ID, Coords: n.Coords, FloorID: n.FloorID, Type: n.Type})
		}
		g2.AddBidirectional(graph.Edge{From: "a", To: "b", Weight: 5.1, Type: graph.EdgeStairs, Accessible: false})
		g2.AddBidirectional(graph.Edge{From: "b", To: "d", Weight: 5.1, Type: graph.EdgeStairs, Accessible: false})
		g2.AddBidirectional(graph.Edge{From: "a", To: "c", Weight: 6.4, Type: graph.EdgeWalkable, Accessible: true})
		g2.AddBidirectional(graph.Edge{From: "c", To: "d", Weight: 6.4, Type: graph.EdgeWalkable, Accessible: true})

		res, ok := astarSearch(g2, "a", "d", searchConstraints{AccessibleOnly: true})
		if !ok {
			t.Fatal("accessible branch must still connect")
		}
		if res.NodeIDs[1] != "c" {
			t.Errorf("accessible-only search must take the long branch, got %v", res.NodeIDs)
		}

		res, ok = astarSearch(g2, "a", "d", searchConstraints{AvoidStairs: true})
		if !ok || res.NodeIDs[1] != "c" {
			t.Errorf("avoid-stairs must also take the long branch, got %v ok=%v", res, ok)
		}
	})

	t.Run("NodeFilter", func(t *testing.T) {
		blockB := func(n *graph.Node) bool { return n.ID != "b" }
		res, ok := astarSearch(g, "a", "d", searchConstraints{NodeFilter: blockB})
		if !ok || res.NodeIDs[1] != "c" {
			t.Errorf("filtering b must reroute via c, got %v ok=%v", res, ok)
		}
	})
}

func TestAStarRoomGate(t *testing.T) {
	g := graph.New()
	mk := func(id string, xM float64, roomIDs ...string) {
		g.AddNode(&graph.Node{
			ID: id, Coords: pt(xM, 0), FloorID: testFloor0, Type: graph.NodeWalkable,
			Meta: graph.Metadata{RoomIDs: roomIDs},
		})
	}
	mk("s", 0)
	mk("private", 5, "roomX")
	mk("open", 5)
	mk("t", 10)
	g.AddBidirectional(graph.Edge{From: "s", To: "private", Weight: 5, Type: graph.EdgeWalkable, Accessible: true})
	g.AddBidirectional(graph.Edge{From: "private", To: "t", Weight: 5, Type: graph.EdgeWalkable, Accessible: true})
	g.AddBidirectional(graph.Edge{From: "s", To: "open", Weight: 7, Type: graph.EdgeWalkable, Accessible: true})
	g.AddBidirectional(graph.Edge{From: "open", To: "t", Weight: 7, Type: graph.EdgeWalkable, Accessible: true})

	c := searchConstraints{DisallowOtherRooms: true, AllowedRoomIDs: map[string]struct{}{"roomY": {}}}
	res, ok := astarSearch(g, "s", "t", c)
	if !ok {
		t.Fatal("public walkway must still connect")
	}
	if res.NodeIDs[1] != "open" {
		t.Errorf("disallowed room must be bypassed, got %v", res.NodeIDs)
	}

	c.AllowedRoomIDs = map[string]struct{}{"roomX": {}}
	res, ok = astarSearch(g, "s", "t", c)
	if !ok || res.NodeIDs[1] != "private" {
		t.Errorf("allowed room must open the shortcut, got %v ok=%v", res, ok)
	}
}

func TestFloorPenaltyPrefersSameFloor(t *testing.T) {
	// two equal-cost branches; the middle node of one sits on another floor
	g := graph.New()
	g.AddNode(&graph.Node{ID: "s", Coords: pt(0, 0), FloorID: testFloor0, Type: graph.NodeWalkable})
	g.AddNode(&graph.Node{ID: "same", Coords: pt(5, 0), FloorID: testFloor0, Type: graph.NodeWalkable})
	g.AddNode(&graph.Node{ID: "other", Coords: pt(5, 0), FloorID: testFloor1, Type: graph.NodeStairs})
	g.AddNode(&graph.Node{ID: "t", Coords: pt(10, 0), FloorID: testFloor0, Type: graph.NodeWalkable})
	for _, pair := range [][2]string{{"s", "same"}, {"same", "t"}, {"s", "other"}, {"other", "t"}} {
		g.AddBidirectional(graph.Edge{From: pair[0], To: pair[1], Weight: 5, Type: graph.EdgeWalkable, Accessible: true})
	}

	res, ok := astarSearch(g, "s", "t", searchConstraints{})
	if !ok || res.NodeIDs[1] != "same" {
		t.Errorf("the heuristic must break the tie toward the same floor, got %v ok=%v", res, ok)
	}
}

func TestBidirectionalMatchesUnidirectional(t *testing.T) {
	g := diamond(t)

	uni, ok := astarSearch(g, "a", "d", searchConstraints{})
	if !ok {
		t.Fatal("unidirectional path expected")
	}
	bi, ok := bidirectionalSearch(g, "a", "d", searchConstraints{})
	if !ok {
		t.Fatal("bidirectional path expected")
	}

	if math.Abs(uni.Distance-bi.Distance) > 1e-9 {
		t.Errorf("distances must agree: %v vs %v", uni.Distance, bi.Distance)
	}
	if bi.NodeIDs[0] != "a" || bi.NodeIDs[len(bi.NodeIDs)-1] != "d" {
		t.Errorf("bidirectional path endpoints wrong: %v", bi.NodeIDs)
	}
	for i := 1; i < len(bi.NodeIDs); i++ {
		if bi.NodeIDs[i] == bi.NodeIDs[i-1] {
			t.Errorf("join must be deduplicated, got %v", bi.NodeIDs)
		}
	}
}

func TestBidirectionalNoPath(t *testing.T) {
	g := diamond(t)
	g.AddNode(&graph.Node{ID: "island", Coords: pt(50, 50), FloorID: testFloor0, Type: graph.NodeWalkable})

	if _, ok := bidirectionalSearch(g, "a", "island", searchConstraints{}); ok {
		t.Error("disconnected nodes must yield no path")
	}
}
