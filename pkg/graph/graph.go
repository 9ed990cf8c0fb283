// Package graph holds the routing graph: typed nodes keyed by stable string
// ids, directed weighted edges stored as adjacency lists, a per-floor
// partition, and per-floor spatial indexes for nearest-node queries.
//
// Nodes reference each other only by id; the Graph owns all nodes. This
// keeps the cached edge format trivially serializable and avoids
// back-pointer cycles between nodes and edges.
package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/spatial"
)

// NodeType classifies what a node represents in the building.
type NodeType string

const (
	NodeWalkable NodeType = "walkable"
	NodeEntrance NodeType = "entrance"
	NodeDoor     NodeType = "door"
	NodeStairs   NodeType = "stairs"
	NodeElevator NodeType = "elevator"
	NodeWaypoint NodeType = "waypoint"
)

// EdgeType classifies how an edge is traversed.
type EdgeType string

const (
	EdgeWalkable  EdgeType = "walkable"
	EdgeDoorLink  EdgeType = "door-link"
	EdgeStairs    EdgeType = "stairs"
	EdgeElevator  EdgeType = "elevator"
	EdgeEscalator EdgeType = "escalator"
)

// Metadata carries the routing-relevant attributes of a node. RoomIDs is the
// only field mutated after graph build, during room tagging; everything else
// is fixed at node creation.
type Metadata struct {
	GeometryIDs []string
	RoomIDs     []string
	IsDoor      bool
	IsPublic    bool
	IsLocked    bool
	IsStairs    bool
	IsElevator  bool
	Accessible  bool
	Flags       uint32
}

// Node is a routing graph vertex.
type Node struct {
	ID      string
	Coords  orb.Point
	FloorID string
	Type    NodeType
	Meta    Metadata
}

// Point implements orb.Pointer so nodes can live in the spatial index.
func (n *Node) Point() orb.Point { return n.Coords }

// InRoom reports whether the node is tagged with the given room.
func (n *Node) InRoom(roomID string) bool {
	for _, id := range n.Meta.RoomIDs {
		if id == roomID {
			return true
		}
	}
	return false
}

// Edge is a directed weighted connection between two nodes.
type Edge struct {
	From       string
	To         string
	Weight     float64
	Type       EdgeType
	Accessible bool
}

// Graph is the arena owning all nodes and adjacency lists.
type Graph struct {
	nodes    map[string]*Node
	out      map[string][]Edge
	floors   map[string][]*Node
	indexes  map[string]*spatial.Index
	edgeQty  int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		out:     make(map[string][]Edge),
		floors:  make(map[string][]*Node),
		indexes: make(map[string]*spatial.Index),
	}
}

// AddNode inserts a node. Re-adding an existing id is an error; ids are the
// graph's identity space and silently replacing a node would orphan edges.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("graph: node without id")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("graph: duplicate node id %q", n.ID)
	}
	g.nodes[n.ID] = n
	g.floors[n.FloorID] = append(g.floors[n.FloorID], n)
	return nil
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// HasNode reports whether the id resolves.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge inserts a directed edge. Both endpoints must resolve and the
// weight must be finite and non-negative.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("graph: edge from unknown node %q", e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("graph: edge to unknown node %q", e.To)
	}
	if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight < 0 {
		return fmt.Errorf("graph: edge %s->%s has invalid weight %v", e.From, e.To, e.Weight)
	}
	g.out[e.From] = append(g.out[e.From], e)
	g.edgeQty++
	return nil
}

// AddBidirectional inserts the edge and its mirror with identical weight.
func (g *Graph) AddBidirectional(e Edge) error {
	if err := g.AddEdge(e); err != nil {
		return err
	}
	mirror := e
	mirror.From, mirror.To = e.To, e.From
	return g.AddEdge(mirror)
}

// Out returns the outgoing edges of a node. The returned slice is owned by
// the graph and must not be mutated.
func (g *Graph) Out(id string) []Edge { return g.out[id] }

// Degree returns the number of outgoing edges of a node.
func (g *Graph) Degree(id string) int { return len(g.out[id]) }

// FloorNodes returns the nodes on a floor. The slice is owned by the graph.
func (g *Graph) FloorNodes(floorID string) []*Node { return g.floors[floorID] }

// Floors returns the floor ids in sorted order, so iteration over floors is
// deterministic.
func (g *Graph) Floors() []string {
	ids := make([]string, 0, len(g.floors))
	for id := range g.floors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int { return g.edgeQty }

// Nodes iterates all nodes in unspecified order.
func (g *Graph) Nodes(fn func(*Node) bool) {
	for _, n := range g.nodes {
		if !fn(n) {
			return
		}
	}
}

// Edges iterates all directed edges, grouped by source node in sorted-id
// order so the sequence is deterministic.
func (g *Graph) Edges(fn func(Edge) bool) {
	ids := make([]string, 0, len(g.out))
	for id := range g.out {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, e := range g.out[id] {
			if !fn(e) {
				return
			}
		}
	}
}

// BuildSpatialIndexes (re)builds the per-floor quadtrees from the current
// node set. Must be called after all nodes are added and before any spatial
// query.
func (g *Graph) BuildSpatialIndexes() {
	g.indexes = make(map[string]*spatial.Index, len(g.floors))
	for floorID, nodes := range g.floors {
		if len(nodes) == 0 {
			continue
		}
		bound := orb.Bound{Min: nodes[0].Coords, Max: nodes[0].Coords}
		for _, n := range nodes[1:] {
			bound = bound.Extend(n.Coords)
		}
		idx := spatial.New(bound)
		for _, n := range nodes {
			// only fails for out-of-bound points, which cannot happen here
			_ = idx.Insert(n)
		}
		g.indexes[floorID] = idx
	}
}

// SpatialIndex returns the index for a floor, or nil if the floor has no
// nodes or indexes were not built yet.
func (g *Graph) SpatialIndex(floorID string) *spatial.Index { return g.indexes[floorID] }

// NodesNear returns the nodes on the floor within radiusDeg of p (inclusive
// box query). Falls back to a linear scan when no index exists.
func (g *Graph) NodesNear(p orb.Point, floorID string, radiusDeg float64) []*Node {
	bound := orb.Bound{
		Min: orb.Point{p[0] - radiusDeg, p[1] - radiusDeg},
		Max: orb.Point{p[0] + radiusDeg, p[1] + radiusDeg},
	}
	if idx := g.indexes[floorID]; idx != nil {
		hits := idx.Query(bound)
		nodes := make([]*Node, 0, len(hits))
		for _, h := range hits {
			nodes = append(nodes, h.(*Node))
		}
		return nodes
	}
	var nodes []*Node
	for _, n := range g.floors[floorID] {
		if bound.Contains(n.Coords) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// NearestNode finds the closest node to p on the floor that satisfies the
// filter, searching in an expanding radius up to maxRadiusDeg. A nil filter
// accepts every node. Ties are broken by node id so the result is
// deterministic.
func (g *Graph) NearestNode(p orb.Point, floorID string, maxRadiusDeg float64, filter func(*Node) bool) *Node {
	radius := maxRadiusDeg / 8
	if radius <= 0 {
		radius = 1e-5
	}
	for ; radius <= maxRadiusDeg; radius *= 2 {
		if best := g.bestWithin(p, floorID, radius, filter); best != nil {
			return best
		}
	}
	return g.bestWithin(p, floorID, maxRadiusDeg, filter)
}

func (g *Graph) bestWithin(p orb.Point, floorID string, radiusDeg float64, filter func(*Node) bool) *Node {
	var best *Node
	bestDist := math.MaxFloat64
	for _, n := range g.NodesNear(p, floorID, radiusDeg) {
		if filter != nil && !filter(n) {
			continue
		}
		d := geo.FastDistance(p, n.Coords)
		if d < bestDist || (d == bestDist && best != nil && n.ID < best.ID) {
			best = n
			bestDist = d
		}
	}
	return best
}
