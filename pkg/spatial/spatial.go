// Package spatial provides the per-floor 2D point index used for neighbor
// enumeration during the visibility edge build and for nearest-node lookups.
//
// It wraps paulmach/orb's quadtree: O(n log n) build, O(log n + k) expected
// range queries, and queries never mutate the tree, so repeated calls over
// the same index are stable.
package spatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

// Index is a quadtree over (lng, lat) points. The bound passed to New must
// cover every point that will be inserted; out-of-bound inserts are
// rejected.
type Index struct {
	tree  *quadtree.Quadtree
	bound orb.Bound
	size  int
}

// New creates an index covering the given bound. The bound is padded
// slightly so points exactly on the hull are accepted.
func New(bound orb.Bound) *Index {
	pad := orb.Point{1e-7, 1e-7}
	bound.Min = orb.Point{bound.Min[0] - pad[0], bound.Min[1] - pad[1]}
	bound.Max = orb.Point{bound.Max[0] + pad[0], bound.Max[1] + pad[1]}
	return &Index{
		tree:  quadtree.New(bound),
		bound: bound,
	}
}

// Insert adds a pointer item to the index.
func (x *Index) Insert(p orb.Pointer) error {
	if err := x.tree.Add(p); err != nil {
		return err
	}
	x.size++
	return nil
}

// Query returns every indexed item whose point falls inside the inclusive
// rectangle.
func (x *Index) Query(b orb.Bound) []orb.Pointer {
	if x.size == 0 {
		return nil
	}
	return x.tree.InBound(nil, b)
}

// KNearest returns up to k items closest to p, optionally limited to
// maxDistanceDeg (degrees, Euclidean in lng/lat space).
func (x *Index) KNearest(p orb.Point, k int, maxDistanceDeg ...float64) []orb.Pointer {
	if x.size == 0 || k <= 0 {
		return nil
	}
	return x.tree.KNearest(nil, p, k, maxDistanceDeg...)
}

// Len returns the number of indexed items.
func (x *Index) Len() int { return x.size }

// Bound returns the coverage bound the index was created with.
func (x *Index) Bound() orb.Bound { return x.bound }
