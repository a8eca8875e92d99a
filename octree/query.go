package octree

import (
	"iter"
	"slices"

	"render-octree/math"
)

// Query yields the objects whose cached AABB intersects box. Octants that
// box does not touch are skipped.
func (t *Tree) Query(box math.AABB) iter.Seq[Object] {
	return func(yield func(Object) bool) {
		t.query(Root, box, yield)
	}
}

func (t *Tree) query(id NodeID, box math.AABB, yield func(Object) bool) bool {
	n := &t.nodes[id]

	// The root may store objects outside its bounds.
	if id != Root && !n.bounds.Intersects(box) {
		return true
	}
	for _, e := range n.objects {
		if e.aabb.Intersects(box) && !yield(e.object) {
			return false
		}
	}
	if !n.divided {
		return true
	}
	for _, c := range n.children {
		if !t.query(c, box, yield) {
			return false
		}
	}
	return true
}

// RayHit is an object whose AABB a ray enters.
type RayHit struct {
	Object   Object
	Node     NodeID
	Distance float32
}

// Raycast returns the objects whose cached AABB r enters within maxDistance,
// nearest first.
func (t *Tree) Raycast(r math.Ray, maxDistance float32) []RayHit {
	var hits []RayHit
	t.raycast(Root, r, maxDistance, &hits)

	slices.SortStableFunc(hits, func(a, b RayHit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
	return hits
}

func (t *Tree) raycast(id NodeID, r math.Ray, maxDistance float32, hits *[]RayHit) {
	n := &t.nodes[id]
	if id != Root {
		if d, ok := r.IntersectAABB(n.bounds); !ok || d > maxDistance {
			return
		}
	}

	for _, e := range n.objects {
		if d, ok := r.IntersectAABB(e.aabb); ok && d <= maxDistance {
			*hits = append(*hits, RayHit{Object: e.object, Node: id, Distance: d})
		}
	}
	if !n.divided {
		return
	}
	for _, c := range n.children {
		t.raycast(c, r, maxDistance, hits)
	}
}
