package engine

import (
	"github.com/mapell/floornav/pkg/geo"
	"github.com/mapell/floornav/pkg/graph"
	"github.com/mapell/floornav/pkg/mvf"
)

// applyConnections stitches floors together: every stairs, elevator, or
// escalator entry in the connections table becomes bidirectional edges
// between the connector's nodes on each referenced floor. The weight is the
// geodesic distance between the endpoints plus a constant vertical-travel
// penalty, which disincentivizes gratuitous floor changes without needing
// absolute elevation data.
//
// Elevators are accessible; stairs and escalators are not. A malformed
// connection is skipped; the remaining connections still apply.
func (e *Engine) applyConnections(g *graph.Graph, verticalPenaltyM float64) {
	// connector entrances reference geometry ids, not node ids
	byGeometry := indexNodesByGeometry(g)

	for _, conn := range e.dataset.Connections {
		var edgeType graph.EdgeType
		switch conn.Type {
		case mvf.ConnStairs:
			edgeType = graph.EdgeStairs
		case mvf.ConnElevator:
			edgeType = graph.EdgeElevator
		case mvf.ConnEscalator:
			edgeType = graph.EdgeEscalator
		default:
			continue
		}

		nodes := make([]*graph.Node, 0, len(conn.Entrances))
		for _, ent := range conn.Entrances {
			n := byGeometry[geometryFloorKey(ent.GeometryID, ent.FloorID)]
			if n == nil {
				e.logger.Warn("skipping connection entrance with no node",
					"type", conn.Type, "geometry", ent.GeometryID, "floor", ent.FloorID)
				continue
			}
			nodes = append(nodes, n)
		}
		if len(nodes) < 2 {
			continue
		}

		accessible := edgeType == graph.EdgeElevator
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				weight := geo.Distance(nodes[i].Coords, nodes[j].Coords) + verticalPenaltyM
				err := g.AddBidirectional(graph.Edge{
					From:       nodes[i].ID,
					To:         nodes[j].ID,
					Weight:     weight,
					Type:       edgeType,
					Accessible: accessible,
				})
				if err != nil {
					e.logger.Warn("skipping connector edge", "type", conn.Type, "error", err)
				}
			}
		}
	}
}

func indexNodesByGeometry(g *graph.Graph) map[string]*graph.Node {
	index := make(map[string]*graph.Node)
	g.Nodes(func(n *graph.Node) bool {
		for _, geomID := range n.Meta.GeometryIDs {
			key := geometryFloorKey(geomID, n.FloorID)
			// lowest node id wins so the mapping is deterministic
			if prev, ok := index[key]; !ok || n.ID < prev.ID {
				index[key] = n
			}
		}
		return true
	})
	return index
}

func geometryFloorKey(geometryID, floorID string) string {
	return geometryID + "\x00" + floorID
}
