package graph

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func pt(xM, yM float64) orb.Point {
	return orb.Point{xM / 111_320, yM / 111_320}
}

func newNode(id, floor string, xM, yM float64) *Node {
	return &Node{ID: id, Coords: pt(xM, yM), FloorID: floor, Type: NodeWalkable}
}

func TestAddNode(t *testing.T) {
	g := New()
	if err := g.AddNode(newNode("a", "f0", 0, 0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.AddNode(newNode("a", "f0", 1, 1)); err == nil {
		t.Error("duplicate id must be rejected")
	}
	if err := g.AddNode(&Node{}); err == nil {
		t.Error("empty id must be rejected")
	}
	if g.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", g.NodeCount())
	}
}

func TestAddEdgeValidation(t *testing.T) {
	g := New()
	g.AddNode(newNode("a", "f0", 0, 0))
	g.AddNode(newNode("b", "f0", 1, 0))

	if err := g.AddEdge(Edge{From: "a", To: "missing", Weight: 1}); err == nil {
		t.Error("edge to unknown node must be rejected")
	}
	if err := g.AddEdge(Edge{From: "a", To: "b", Weight: math.Inf(1)}); err == nil {
		t.Error("infinite weight must be rejected")
	}
	if err := g.AddEdge(Edge{From: "a", To: "b", Weight: -1}); err == nil {
		t.Error("negative weight must be rejected")
	}
	if err := g.AddEdge(Edge{From: "a", To: "b", Weight: 1.5, Type: EdgeWalkable}); err != nil {
		t.Fatalf("valid edge rejected: %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", g.EdgeCount())
	}
}

func TestAddBidirectional(t *testing.T) {
	g := New()
	g.AddNode(newNode("a", "f0", 0, 0))
	g.AddNode(newNode("b", "f0", 1, 0))

	if err := g.AddBidirectional(Edge{From: "a", To: "b", Weight: 2, Type: EdgeWalkable}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(g.Out("a")) != 1 || len(g.Out("b")) != 1 {
		t.Error("both directions must exist")
	}
	if g.Out("b")[0].To != "a" || g.Out("b")[0].Weight != 2 {
		t.Error("mirror edge must carry the identical weight")
	}
}

func TestFloorPartition(t *testing.T) {
	g := New()
	g.AddNode(newNode("a", "f0", 0, 0))
	g.AddNode(newNode("b", "f0", 1, 0))
	g.AddNode(newNode("c", "f1", 0, 0))

	if len(g.FloorNodes("f0")) != 2 || len(g.FloorNodes("f1")) != 1 {
		t.Error("floor partition mismatch")
	}
	floors := g.Floors()
	if len(floors) != 2 || floors[0] != "f0" || floors[1] != "f1" {
		t.Errorf("floors must be sorted, got %v", floors)
	}
}

func TestNodesNearUsesIndex(t *testing.T) {
	g := New()
	for i := 0; i < 20; i++ {
		g.AddNode(newNode(string(rune('a'+i)), "f0", float64(i), 0))
	}
	g.BuildSpatialIndexes()

	near := g.NodesNear(pt(5, 0), "f0", 2.5/111_320)
	if len(near) != 5 {
		t.Errorf("expected nodes at 3..7m, got %d", len(near))
	}
}

func TestNearestNodeExpandingRadius(t *testing.T) {
	g := New()
	g.AddNode(newNode("near", "f0", 1, 0))
	g.AddNode(newNode("far", "f0", 150, 0))
	g.BuildSpatialIndexes()

	n := g.NearestNode(pt(0, 0), "f0", 0.002, nil)
	if n == nil || n.ID != "near" {
		t.Fatalf("expected 'near', got %v", n)
	}

	onlyFar := func(c *Node) bool { return c.ID == "far" }
	n = g.NearestNode(pt(0, 0), "f0", 0.002, onlyFar)
	if n == nil || n.ID != "far" {
		t.Fatalf("expanding search should still reach 'far', got %v", n)
	}

	if n = g.NearestNode(pt(0, 0), "f1", 0.002, nil); n != nil {
		t.Errorf("empty floor should yield nil, got %v", n)
	}
}

func TestEdgesDeterministicOrder(t *testing.T) {
	g := New()
	g.AddNode(newNode("b", "f0", 0, 0))
	g.AddNode(newNode("a", "f0", 1, 0))
	g.AddEdge(Edge{From: "b", To: "a", Weight: 1})
	g.AddEdge(Edge{From: "a", To: "b", Weight: 1})

	var order []string
	g.Edges(func(e Edge) bool {
		order = append(order, e.From)
		return true
	})
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("edges must iterate by sorted source id, got %v", order)
	}
}
