package engine

import (
	"container/heap"

	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
)

// floorChangePenaltyM is added to the heuristic when a node sits on a
// different floor than the goal. It nudges the search toward staying on the
// same floor when two candidates are otherwise equal. It is larger than the
// default vertical connector penalty (5 m), so near a connector the
// heuristic can exceed the true remaining cost by up to the difference, and
// cross-floor routes are not guaranteed to be the shortest.
const floorChangePenaltyM = 10.0

// searchConstraints are the pluggable node and edge filters applied during
// expansion.
type searchConstraints struct {
	AccessibleOnly     bool
	AvoidStairs        bool
	HeuristicWeight    float64
	AllowedRoomIDs     map[string]struct{}
	DisallowOtherRooms bool
	NodeFilter         func(*graph.Node) bool
}

func (c *searchConstraints) weight() float64 {
	if c.HeuristicWeight > 0 {
		return c.HeuristicWeight
	}
	return 1.0
}

func (c *searchConstraints) edgeAllowed(e graph.Edge) bool {
	if c.AccessibleOnly && !e.Accessible {
		return false
	}
	if c.AvoidStairs && e.Type == graph.EdgeStairs {
		return false
	}
	return true
}

// nodeAllowed gates traversal through rooms: with room constraints active, a
// plain node is traversable only when it lies on a public walkway (no room)
// or inside an allowed room. Doors and vertical connectors always pass the
// room gate; NodeFilter applies to everything.
func (c *searchConstraints) nodeAllowed(n *graph.Node) bool {
	if c.NodeFilter != nil && !c.NodeFilter(n) {
		return false
	}
	if !c.DisallowOtherRooms {
		return true
	}
	switch n.Type {
	case graph.NodeDoor, graph.NodeStairs, graph.NodeElevator:
		return true
	}
	if len(n.Meta.RoomIDs) == 0 {
		return true
	}
	for _, id := range n.Meta.RoomIDs {
		if _, ok := c.AllowedRoomIDs[id]; ok {
			return true
		}
	}
	return false
}

// searchResult is a raw shortest path: node ids and total edge weight.
type searchResult struct {
	NodeIDs  []string
	Distance float64
}

func heuristic(n, goal *graph.Node) float64 {
	h := geo.Distance(n.Coords, goal.Coords)
	if n.FloorID != goal.FloorID {
		h += floorChangePenaltyM
	}
	return h
}

// astarSearch runs A* from startID to goalID under the constraints. The
// second result is false when no path exists.
func astarSearch(g *graph.Graph, startID, goalID string, c searchConstraints) (*searchResult, bool) {
	start := g.Node(startID)
	goal := g.Node(goalID)
	if start == nil || goal == nil {
		return nil, false
	}
	if !c.nodeAllowed(start) || !c.nodeAllowed(goal) {
		return nil, false
	}
	if startID == goalID {
		return &searchResult{NodeIDs: []string{startID}}, true
	}

	w := c.weight()
	open := &pathHeap{}
	heap.Init(open)
	heap.Push(open, pathItem{id: startID, priority: heuristic(start, goal) * w})

	gScore := map[string]float64{startID: 0}
	cameFrom := map[string]string{}
	closed := map[string]struct{}{}

	for open.Len() > 0 {
		current := heap.Pop(open).(pathItem)
		if _, done := closed[current.id]; done {
			continue // lazy deletion of stale heap entries
		}
		if current.id == goalID {
			return reconstruct(g, cameFrom, startID, goalID, gScore[goalID]), true
		}
		closed[current.id] = struct{}{}

		for _, edge := range g.Out(current.id) {
			if !c.edgeAllowed(edge) {
				continue
			}
			neighbor := g.Node(edge.To)
			if neighbor == nil || !c.nodeAllowed(neighbor) {
				continue
			}

			weight := edge.Weight
			if weight == 0 {
				weight = geo.Distance(g.Node(edge.From).Coords, neighbor.Coords)
			}
			tentative := gScore[current.id] + weight
			if best, seen := gScore[edge.To]; seen && tentative >= best {
				continue
			}

			gScore[edge.To] = tentative
			cameFrom[edge.To] = current.id
			delete(closed, edge.To) // re-open on a strictly better g
			heap.Push(open, pathItem{
				id:       edge.To,
				priority: tentative + heuristic(neighbor, goal)*w,
			})
		}
	}
	return nil, false
}

func reconstruct(g *graph.Graph, cameFrom map[string]string, startID, goalID string, dist float64) *searchResult {
	var rev []string
	for id := goalID; ; {
		rev = append(rev, id)
		if id == startID {
			break
		}
		id = cameFrom[id]
	}
	ids := make([]string, len(rev))
	for i, id := range rev {
		ids[len(rev)-1-i] = id
	}
	return &searchResult{NodeIDs: ids, Distance: dist}
}

// bidirectionalSearch alternates one expansion on each side and terminates
// when the best meeting distance drops to the sum of both heap tops. That
// bound is strictly admissible only for an unweighted heuristic; with
// HeuristicWeight > 1 the result is approximate, matching the plain
// weighted A* tradeoff.
//
// The backward side expands over out-edges: every edge class in this graph
// is materialized as a bidirectional pair, so outgoing adjacency doubles as
// incoming adjacency.
func bidirectionalSearch(g *graph.Graph, startID, goalID string, c searchConstraints) (*searchResult, bool) {
	start := g.Node(startID)
	goal := g.Node(goalID)
	if start == nil || goal == nil {
		return nil, false
	}
	if !c.nodeAllowed(start) || !c.nodeAllowed(goal) {
		return nil, false
	}
	if startID == goalID {
		return &searchResult{NodeIDs: []string{startID}}, true
	}

	w := c.weight()
	fwd := newSide(startID, heuristic(start, goal)*w)
	bwd := newSide(goalID, heuristic(goal, start)*w)

	bestMeeting := ""
	bestDistance := inf

	expand := func(side, other *searchSide, target *graph.Node) {
		current := heap.Pop(side.open).(pathItem)
		if _, done := side.closed[current.id]; done {
			return
		}
		side.closed[current.id] = struct{}{}

		if otherG, met := other.g[current.id]; met {
			if total := side.g[current.id] + otherG; total < bestDistance {
				bestDistance = total
				bestMeeting = current.id
			}
		}

		for _, edge := range g.Out(current.id) {
			if !c.edgeAllowed(edge) {
				continue
			}
			neighbor := g.Node(edge.To)
			if neighbor == nil || !c.nodeAllowed(neighbor) {
				continue
			}
			weight := edge.Weight
			if weight == 0 {
				weight = geo.Distance(g.Node(edge.From).Coords, neighbor.Coords)
			}
			tentative := side.g[current.id] + weight
			if best, seen := side.g[edge.To]; seen && tentative >= best {
				continue
			}
			side.g[edge.To] = tentative
			side.cameFrom[edge.To] = current.id
			delete(side.closed, edge.To)
			heap.Push(side.open, pathItem{
				id:       edge.To,
				priority: tentative + heuristic(neighbor, target)*w,
			})
		}
	}

	for fwd.open.Len() > 0 && bwd.open.Len() > 0 {
		if bestMeeting != "" {
			if bestDistance <= fwd.top()+bwd.top() {
				break
			}
		}
		expand(fwd, bwd, goal)
		if bwd.open.Len() == 0 {
			break
		}
		expand(bwd, fwd, start)
	}

	if bestMeeting == "" {
		return nil, false
	}

	// forward half ends at the meeting node; backward half starts just after
	forward := reconstruct(g, fwd.cameFrom, startID, bestMeeting, 0).NodeIDs
	var backward []string
	for id := bestMeeting; id != goalID; {
		id = bwd.cameFrom[id]
		backward = append(backward, id)
	}
	ids := append(forward, backward...)
	return &searchResult{NodeIDs: ids, Distance: bestDistance}, true
}

var inf = 1e18

type searchSide struct {
	open     *pathHeap
	g        map[string]float64
	cameFrom map[string]string
	closed   map[string]struct{}
}

func newSide(startID string, h0 float64) *searchSide {
	open := &pathHeap{}
	heap.Init(open)
	heap.Push(open, pathItem{id: startID, priority: h0})
	return &searchSide{
		open:     open,
		g:        map[string]float64{startID: 0},
		cameFrom: map[string]string{},
		closed:   map[string]struct{}{},
	}
}

func (s *searchSide) top() float64 {
	if s.open.Len() == 0 {
		return inf
	}
	return (*s.open)[0].priority
}

// pathItem is an entry in the open set: a node id with its f = g + h·w
// priority.
type pathItem struct {
	id       string
	priority float64
}

type pathHeap []pathItem

func (h pathHeap) Len() int           { return len(h) }
func (h pathHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h pathHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pathHeap) Push(x any)        { *h = append(*h, x.(pathItem)) }
func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
