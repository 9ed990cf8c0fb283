package spatial

import (
	"testing"

	"github.com/paulmach/orb"
)

type item struct {
	id string
	p  orb.Point
}

func (i *item) Point() orb.Point { return i.p }

func buildIndex(t *testing.T, points []orb.Point) (*Index, []*item) {
	t.Helper()
	bound := orb.Bound{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		bound = bound.Extend(p)
	}
	idx := New(bound)
	items := make([]*item, len(points))
	for i, p := range points {
		items[i] = &item{id: string(rune('a' + i)), p: p}
		if err := idx.Insert(items[i]); err != nil {
			t.Fatalf("insert %v: %v", p, err)
		}
	}
	return idx, items
}

func TestQueryInclusiveRectangle(t *testing.T) {
	idx, _ := buildIndex(t, []orb.Point{
		{0, 0}, {1, 1}, {2, 2}, {3, 3}, {10, 10},
	})

	hits := idx.Query(orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{3, 3}})
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits (1,1) (2,2) and the inclusive (3,3), got %d", len(hits))
	}
}

func TestQueryEmptyRegion(t *testing.T) {
	idx, _ := buildIndex(t, []orb.Point{{0, 0}, {5, 5}})
	hits := idx.Query(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}})
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestQueryStableUnderRepetition(t *testing.T) {
	idx, _ := buildIndex(t, []orb.Point{
		{0, 0}, {0.1, 0.2}, {0.5, 0.5}, {0.9, 0.1}, {1, 1},
	})
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

	first := idx.Query(bound)
	for i := 0; i < 5; i++ {
		again := idx.Query(bound)
		if len(again) != len(first) {
			t.Fatalf("query %d returned %d hits, first returned %d", i, len(again), len(first))
		}
	}
}

func TestKNearest(t *testing.T) {
	idx, items := buildIndex(t, []orb.Point{
		{0, 0}, {1, 0}, {2, 0}, {5, 0},
	})

	hits := idx.KNearest(orb.Point{0.1, 0}, 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 nearest, got %d", len(hits))
	}
	found := map[string]bool{}
	for _, h := range hits {
		found[h.(*item).id] = true
	}
	if !found[items[0].id] || !found[items[1].id] {
		t.Errorf("expected the two closest items, got %v", found)
	}
}

func TestLen(t *testing.T) {
	idx, _ := buildIndex(t, []orb.Point{{0, 0}, {1, 1}, {2, 2}})
	if idx.Len() != 3 {
		t.Errorf("expected 3, got %d", idx.Len())
	}
}
