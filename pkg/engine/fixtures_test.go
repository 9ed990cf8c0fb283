package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mapell/floornav/pkg/mvf"
)

// Synthetic geometries in local meters converted to lng/lat around (0, 0),
// where one degree is ~111320m on both axes.

const testFloor0 = "floor0"
const testFloor1 = "floor1"

func pt(xM, yM float64) orb.Point {
	return orb.Point{xM / 111_320, yM / 111_320}
}

func rect(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{pt(x0, y0), pt(x1, y0), pt(x1, y1), pt(x0, y1), pt(x0, y0)}}
}

func wallLine(x0, y0, x1, y1 float64) orb.LineString {
	return orb.LineString{pt(x0, y0), pt(x1, y1)}
}

func geomFeature(id, floorID string, g orb.Geometry) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties["id"] = id
	f.Properties["floorId"] = floorID
	return f
}

func nodeFeature(id, floorID string, p orb.Point, geometryIDs ...string) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.Properties["id"] = id
	f.Properties["floorId"] = floorID
	if len(geometryIDs) > 0 {
		ids := make([]interface{}, len(geometryIDs))
		for i, id := range geometryIDs {
			ids[i] = id
		}
		f.Properties["geometryIds"] = ids
	}
	return f
}

func emptyDataset() *mvf.Dataset {
	return &mvf.Dataset{
		MapID:          "test-map",
		MapTime:        1700000000,
		Geometry:       geojson.NewFeatureCollection(),
		Kinds:          map[string]string{},
		WalkableSet:    map[string]struct{}{},
		NonwalkableSet: map[string]struct{}{},
		WalkableNodes:  geojson.NewFeatureCollection(),
		Flags:          mvf.NavigationFlags{},
	}
}

// corridorDataset is scenario 1: a 10x2m corridor with walkable samples on
// a 1m grid along its axis and no obstacles.
func corridorDataset() *mvf.Dataset {
	ds := emptyDataset()
	ds.Geometry.Append(geomFeature("corridor", testFloor0, rect(0, 0, 10, 2)))
	ds.Kinds["corridor"] = "object"
	ds.WalkableSet["corridor"] = struct{}{}

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("n%02d", i)
		ds.WalkableNodes.Append(nodeFeature(id, testFloor0, pt(float64(i)+0.5, 1)))
	}
	return ds
}

// lShapeDataset is scenario 2: a 10x10m room with a 5x5m blocking obstacle
// toward the top-right, sampled on a 1m grid that skips the obstacle.
func lShapeDataset() *mvf.Dataset {
	ds := emptyDataset()
	ds.Geometry.Append(geomFeature("room", testFloor0, rect(0, 0, 10, 10)))
	ds.Kinds["room"] = "object"
	ds.WalkableSet["room"] = struct{}{}

	ds.Geometry.Append(geomFeature("block", testFloor0, rect(3.5, 3.5, 8.5, 8.5)))
	ds.NonwalkableSet["block"] = struct{}{}

	for x := 0; x <= 10; x++ {
		for y := 0; y <= 10; y++ {
			fx, fy := float64(x), float64(y)
			if fx > 3.4 && fx < 8.6 && fy > 3.4 && fy < 8.6 {
				continue
			}
			id := fmt.Sprintf("g%02d%02d", x, y)
			ds.WalkableNodes.Append(nodeFeature(id, testFloor0, pt(fx, fy)))
		}
	}
	return ds
}

// lockedDoorDataset is scenario 3: private room R1 connected to a corridor
// through a single door whose public flag is clear.
func lockedDoorDataset(doorFlags uint32) *mvf.Dataset {
	ds := emptyDataset()
	ds.Flags["public"] = mvf.FlagSpec{Bit: 0}

	ds.Geometry.Append(geomFeature("R1", testFloor0, rect(0, 0, 5, 5)))
	ds.Kinds["R1"] = "room"

	ds.Geometry.Append(geomFeature("W1", testFloor0, orb.LineString{pt(0, 5), pt(5, 5)}))
	ds.Kinds["W1"] = "wall"

	ds.Geometry.Append(geomFeature("R1_D1", testFloor0, orb.LineString{pt(4.2, 5), pt(4.8, 5)}))

	ds.WalkableNodes.Append(nodeFeature("rc", testFloor0, pt(2.5, 2.5)))
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("c%02d", i)
		ds.WalkableNodes.Append(nodeFeature(id, testFloor0, pt(float64(i), 6.5)))
	}

	ds.Connections = []mvf.Connection{{
		Type: mvf.ConnDoor,
		Entrances: []mvf.Entrance{
			{GeometryID: "R1_D1", FloorID: testFloor0, Flags: doorFlags},
		},
	}}
	return ds
}

// twoFloorDataset is scenario 4: two identical corridors joined by a single
// vertical connector of the given kind.
func twoFloorDataset(connType string) *mvf.Dataset {
	ds := emptyDataset()

	for i := 0; i < 5; i++ {
		ds.WalkableNodes.Append(nodeFeature(fmt.Sprintf("a%02d", i), testFloor0, pt(float64(i), 0)))
		ds.WalkableNodes.Append(nodeFeature(fmt.Sprintf("b%02d", i), testFloor1, pt(float64(i), 0)))
	}

	connectors := geojson.NewFeatureCollection()
	connectors.Append(nodeFeature("lift0", testFloor0, pt(5, 0), "EL1"))
	connectors.Append(nodeFeature("lift1", testFloor1, pt(5, 0), "EL1"))
	if connType == mvf.ConnElevator {
		ds.ElevatorNodes = connectors
	} else {
		ds.StairNodes = connectors
	}

	ds.Connections = []mvf.Connection{{
		Type: connType,
		Entrances: []mvf.Entrance{
			{GeometryID: "EL1", FloorID: testFloor0},
			{GeometryID: "EL1", FloorID: testFloor1},
		},
	}}
	return ds
}

// walledDataset is scenario 5: a corridor whose far wall catches endpoints
// placed slightly inside its buffer.
func walledDataset() *mvf.Dataset {
	ds := emptyDataset()
	ds.Geometry.Append(geomFeature("W1", testFloor0, orb.LineString{pt(0, 2), pt(10, 2)}))
	ds.Kinds["W1"] = "wall"

	for i := 0; i < 10; i++ {
		ds.WalkableNodes.Append(nodeFeature(fmt.Sprintf("n%02d", i), testFloor0, pt(float64(i), 1)))
	}
	return ds
}

// boxedDataset surrounds an endpoint with a solid obstacle so that no
// connector clears even under relaxed checks.
func boxedDataset() *mvf.Dataset {
	ds := emptyDataset()
	ds.Geometry.Append(geomFeature("box", testFloor0, rect(3, 3, 7, 7)))
	ds.NonwalkableSet["box"] = struct{}{}

	for i := 0; i < 10; i++ {
		ds.WalkableNodes.Append(nodeFeature(fmt.Sprintf("n%02d", i), testFloor0, pt(float64(i), 1)))
	}
	return ds
}

func initEngine(t *testing.T, ds *mvf.Dataset, opts Options) *Engine {
	t.Helper()
	eng := New(ds, opts)
	if err := eng.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return eng
}

func countFloorChanges(floors []string) int {
	changes := 0
	for i := 1; i < len(floors); i++ {
		if floors[i] != floors[i-1] {
			changes++
		}
	}
	return changes
}
