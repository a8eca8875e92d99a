package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"

	"render-octree/math"
)

type node struct {
	bounds   math.AABB
	parent   NodeID
	children [8]NodeID
	divided  bool
	depth    int
	objects  []entry
	vis      *VisibilityState
	live     bool
}

var noChildren = [8]NodeID{Nil, Nil, Nil, Nil, Nil, Nil, Nil, Nil}

// alloc takes a slot from the free list, or grows the arena.
func (t *Tree) alloc(bounds math.AABB, parent NodeID, depth int) NodeID {
	n := node{
		bounds:   bounds,
		parent:   parent,
		children: noChildren,
		depth:    depth,
		live:     true,
	}
	t.metrics.nodes.Inc()

	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		n.vis = t.nodes[id].vis
		n.vis.reset()
		n.objects = t.nodes[id].objects[:0]
		t.nodes[id] = n
		return id
	}

	n.vis = new(VisibilityState)
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) release(id NodeID) {
	n := &t.nodes[id]
	clear(n.objects[:cap(n.objects)])
	n.objects = n.objects[:0]
	n.live = false
	n.divided = false
	n.children = noChildren
	t.free = append(t.free, id)
	t.metrics.nodes.Dec()
}

// octantFor returns the single octant of node id containing aabb, or -1 when
// none or more than one does, or when the node may not subdivide further.
func (t *Tree) octantFor(id NodeID, aabb math.AABB) int {
	n := &t.nodes[id]
	if n.depth >= t.config.MaxDepth {
		return -1
	}

	found := -1
	for i := 0; i < 8; i++ {
		if !n.bounds.Octant(i).Contains(aabb) {
			continue
		}
		if found >= 0 {
			return -1
		}
		found = i
	}
	return found
}

// sink descends from start to the deepest node fitting aabb, dividing nodes
// on the way, and returns it.
func (t *Tree) sink(start NodeID, aabb math.AABB) NodeID {
	id := start
	for {
		i := t.octantFor(id, aabb)
		if i < 0 {
			return id
		}
		if !t.nodes[id].divided {
			t.divide(id)
		}
		id = t.nodes[id].children[i]
	}
}

// Divide creates the 8 octants of node id.
func (t *Tree) Divide(id NodeID) error {
	if err := t.checkMutable("divide"); err != nil {
		return err
	}
	if !t.validNode(id) {
		return invalidState("divide", "unknown node")
	}
	if t.nodes[id].divided {
		return errors.New("node is already divided").
			WithType(ErrTypeInvalidState).
			WithTag("node_id", id)
	}

	t.divide(id)
	return nil
}

// divide creates all 8 octants at once. Creating only the needed octant
// would save memory, but a full set keeps traversal branch free.
func (t *Tree) divide(id NodeID) {
	bounds := t.nodes[id].bounds
	depth := t.nodes[id].depth + 1

	var children [8]NodeID
	for i := range children {
		children[i] = t.alloc(bounds.Octant(i), id, depth)
	}

	n := &t.nodes[id]
	n.children = children
	n.divided = true
	t.metrics.divides.Inc()

	for _, c := range children {
		t.fire(OctantCreated, c, nil)
	}
}

// Undivide releases the octants of node id. It fails without modifying the
// tree when the node or any of its descendants stores objects.
func (t *Tree) Undivide(id NodeID) error {
	if err := t.checkMutable("undivide"); err != nil {
		return err
	}
	if !t.validNode(id) {
		return invalidState("undivide", "unknown node")
	}
	if !t.nodes[id].divided {
		return errors.New("node is not divided").
			WithType(ErrTypeInvalidState).
			WithTag("node_id", id)
	}
	if !t.EmptyDeep(id, -1) {
		return errors.New("node still holds objects").
			WithType(ErrTypeInvalidState).
			WithTag("node_id", id)
	}

	t.undivide(id)
	return nil
}

// undivide releases the subtree below id, children before parents.
func (t *Tree) undivide(id NodeID) {
	children := t.nodes[id].children
	for _, c := range children {
		if t.nodes[c].divided {
			t.undivide(c)
		}
	}
	for _, c := range children {
		t.fire(OctantDestroyed, c, nil)
		t.release(c)
	}

	n := &t.nodes[id]
	n.children = noChildren
	n.divided = false
	t.metrics.undivides.Inc()
}

// EmptyDeep reports whether node id stores no objects and, looking at most
// maxDepth levels down, neither do its descendants. A negative maxDepth
// searches the whole subtree. A node still divided when the search depth is
// exhausted is not proven empty.
func (t *Tree) EmptyDeep(id NodeID, maxDepth int) bool {
	n := &t.nodes[id]
	if len(n.objects) > 0 {
		return false
	}
	if !n.divided {
		return true
	}
	if maxDepth == 0 {
		return false
	}
	for _, c := range n.children {
		if !t.EmptyDeep(c, maxDepth-1) {
			return false
		}
	}
	return true
}

// collapseFrom shrinks the tree around node id once it no longer holds
// anything.
func (t *Tree) collapseFrom(id NodeID) {
	n := &t.nodes[id]
	if len(n.objects) > 0 {
		return
	}
	if n.divided && !t.EmptyDeep(id, -1) {
		return
	}
	t.collapseParents(id)
}

// collapseParents climbs from the empty node start and undivides the highest
// ancestor whose octants are all empty.
//
// The first ancestor's octants are searched without depth bound. Every later
// ancestor only needs its other octants searched one level deep since the
// octant we came from is already proven empty; an octant that is still
// divided below that level stops the climb.
func (t *Tree) collapseParents(start NodeID) {
	highest := Nil
	if t.nodes[start].divided {
		highest = start
	}

	proven := start
	depth := -1
	for cur := t.nodes[start].parent; cur != Nil; cur = t.nodes[cur].parent {
		if len(t.nodes[cur].objects) > 0 || !t.siblingsEmpty(cur, proven, depth) {
			break
		}
		highest = cur
		proven = cur
		depth = 1
	}

	if highest != Nil {
		t.undivide(highest)
	}
}

func (t *Tree) siblingsEmpty(parent, proven NodeID, depth int) bool {
	for _, c := range t.nodes[parent].children {
		if c != proven && !t.EmptyDeep(c, depth) {
			return false
		}
	}
	return true
}
