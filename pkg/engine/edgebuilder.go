package engine

import (
	"container/heap"
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/mapell/floornav/pkg/collision"
	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
)

// oversampleFactor is the multiplier applied to MaxNeighbors when pulling
// candidates from the spatial index. Truncating to the K nearest before the
// line-of-sight test fragments the graph whenever the nearest neighbors sit
// on the wrong side of a wall, so the builder oversamples and then keeps the
// first MaxNeighbors that pass, in ascending distance order.
const oversampleFactor = 6

// EdgeBuilderConfig carries the edge-build parameters and the cooperative
// yielding budgets.
type EdgeBuilderConfig struct {
	MaxDistanceM float64
	MaxNeighbors int

	// YieldEvery suspends after this many processed nodes; YieldAfter
	// suspends when this much wall-clock time elapsed since the last yield.
	// Either being zero disables that trigger.
	YieldEvery int
	YieldAfter time.Duration

	// OnFloor, if set, is called after each completed floor with the floor
	// index, floor id, and the number of directed edges emitted so far.
	OnFloor func(floorIndex int, floorID string, edgeCount int)
}

// BuildVisibilityEdges constructs the per-floor visibility edges: for each
// node, the higher-id candidates within MaxDistanceM on the same floor are
// taken in ascending distance, and the first MaxNeighbors of them with clear
// line of sight each yield both directed edges with the meter distance as
// weight.
//
// The output is deterministic for identical inputs regardless of how often
// the builder yields: floors are walked in sorted order, nodes in sorted id
// order, and candidates in ascending distance with id tie-breaks.
func BuildVisibilityEdges(ctx context.Context, g *graph.Graph, detector *collision.Detector, cfg EdgeBuilderConfig) ([]graph.Edge, error) {
	if cfg.MaxNeighbors <= 0 {
		cfg.MaxNeighbors = defaultMaxNeighbors
	}
	if cfg.MaxDistanceM <= 0 {
		cfg.MaxDistanceM = defaultMaxEdgeDistanceM
	}

	var edges []graph.Edge
	y := newYielder(cfg.YieldEvery, cfg.YieldAfter)

	for floorIndex, floorID := range g.Floors() {
		nodes := append([]*graph.Node(nil), g.FloorNodes(floorID)...)
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

		for _, node := range nodes {
			if err := y.tick(ctx); err != nil {
				return nil, err
			}
			edges = appendNodeEdges(edges, g, detector, node, cfg)
		}

		if cfg.OnFloor != nil {
			cfg.OnFloor(floorIndex, floorID, len(edges))
		}
	}
	return edges, nil
}

func appendNodeEdges(edges []graph.Edge, g *graph.Graph, detector *collision.Detector, node *graph.Node, cfg EdgeBuilderConfig) []graph.Edge {
	candidates := nearbyCandidates(g, node, cfg.MaxDistanceM)

	// reduce an oversized pool to the K nearest, K = oversample headroom
	k := cfg.MaxNeighbors * oversampleFactor
	if k < cfg.MaxNeighbors {
		k = cfg.MaxNeighbors
	}
	if len(candidates) > k {
		candidates = nearestK(candidates, node.Coords, k)
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := squaredDegreeDistance(node.Coords, candidates[i].Coords)
		dj := squaredDegreeDistance(node.Coords, candidates[j].Coords)
		if di != dj {
			return di < dj
		}
		return candidates[i].ID < candidates[j].ID
	})

	accepted := 0
	for _, cand := range candidates {
		if accepted >= cfg.MaxNeighbors {
			break
		}
		// each unordered pair is considered exactly once, from its lower id
		if cand.ID <= node.ID {
			continue
		}
		dist := geo.Distance(node.Coords, cand.Coords)
		if dist > cfg.MaxDistanceM {
			continue
		}
		if !detector.HasLineOfSight(node.Coords, cand.Coords, node.FloorID) {
			continue
		}

		edges = append(edges,
			graph.Edge{From: node.ID, To: cand.ID, Weight: dist, Type: graph.EdgeWalkable, Accessible: true},
			graph.Edge{From: cand.ID, To: node.ID, Weight: dist, Type: graph.EdgeWalkable, Accessible: true},
		)
		accepted++
	}
	return edges
}

// nearbyCandidates queries the floor's spatial index for nodes within the
// meter radius converted to a degree box at the node's latitude. Without an
// index it falls back to a linear bbox filter over the floor's nodes.
func nearbyCandidates(g *graph.Graph, node *graph.Node, maxDistanceM float64) []*graph.Node {
	dLng, dLat := geo.MetersToDegrees(maxDistanceM, node.Coords[1])

	if idx := g.SpatialIndex(node.FloorID); idx != nil {
		bound := orb.Bound{
			Min: orb.Point{node.Coords[0] - dLng, node.Coords[1] - dLat},
			Max: orb.Point{node.Coords[0] + dLng, node.Coords[1] + dLat},
		}
		hits := idx.Query(bound)
		out := make([]*graph.Node, 0, len(hits))
		for _, h := range hits {
			if n := h.(*graph.Node); n.ID != node.ID {
				out = append(out, n)
			}
		}
		return out
	}

	var out []*graph.Node
	for _, n := range g.FloorNodes(node.FloorID) {
		if n.ID == node.ID {
			continue
		}
		if abs(n.Coords[0]-node.Coords[0]) <= dLng && abs(n.Coords[1]-node.Coords[1]) <= dLat {
			out = append(out, n)
		}
	}
	return out
}

// nearestK selects the k candidates closest to p in squared-degree distance
// using a bounded max-heap: O(n log k) instead of sorting the whole pool.
func nearestK(candidates []*graph.Node, p orb.Point, k int) []*graph.Node {
	h := make(candidateHeap, 0, k+1)
	heap.Init(&h)
	for _, c := range candidates {
		heap.Push(&h, rankedCandidate{node: c, dist: squaredDegreeDistance(p, c.Coords)})
		if h.Len() > k {
			heap.Pop(&h)
		}
	}
	out := make([]*graph.Node, 0, h.Len())
	for _, rc := range h {
		out = append(out, rc.node)
	}
	return out
}

func squaredDegreeDistance(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// rankedCandidate lives in the bounded selection heap. The heap is a
// max-heap on distance so the current worst is always on top, ready to be
// evicted by a closer candidate.
type rankedCandidate struct {
	node *graph.Node
	dist float64
}

type candidateHeap []rankedCandidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)         { *h = append(*h, x.(rankedCandidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// yielder implements the cooperative suspension contract: the build gives
// up the processor every YieldEvery nodes or after YieldAfter of wall-clock
// work, and checks for cancellation at each suspension point.
type yielder struct {
	every     int
	after     time.Duration
	processed int
	lastYield time.Time
}

func newYielder(every int, after time.Duration) *yielder {
	return &yielder{every: every, after: after, lastYield: time.Now()}
}

func (y *yielder) tick(ctx context.Context) error {
	y.processed++

	due := false
	if y.every > 0 && y.processed%y.every == 0 {
		due = true
	}
	if !due && y.after > 0 && time.Since(y.lastYield) >= y.after {
		due = true
	}
	if !due {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	runtime.Gosched()
	y.lastYield = time.Now()
	return nil
}
