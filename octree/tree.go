// Package octree implements a dynamic octree over moving bounded
// objects, and the per-scene visibility state the renderer uses to cull them.
//
// Nodes live in an arena owned by the Tree and are addressed by NodeID. An
// object is stored in the deepest node whose bounds fully contain its AABB;
// the tree subdivides only where objects fit into an octant and collapses
// regions that become empty.
//
// A Tree is not safe for concurrent mutation. Once mutation for a frame is
// done, CalculateVisibility may run concurrently for distinct scenes.
package octree

import (
	"slices"

	"render-octree/math"
)

// NodeID identifies a node in a Tree's arena.
type NodeID int32

const (
	// Nil represents an invalid NodeID.
	Nil NodeID = -1

	// Root is the id of the root node of every tree.
	Root NodeID = 0
)

// ObjectID is the stable identity of an object stored in a tree.
type ObjectID uint64

// Object is the capability an entity exposes to be stored in a tree.
type Object interface {
	// ID returns the identity of the object. It must not change while the
	// object is in a tree.
	ID() ObjectID

	// WorldAABB returns the current world-space bounds of the object.
	WorldAABB() math.AABB

	// OnAddedToOctree is called after the object was stored in node.
	OnAddedToOctree(t *Tree, node NodeID)

	// OnRemovedFromOctree is called after the object left node.
	OnRemovedFromOctree(t *Tree, node NodeID)
}

// Config holds the tree parameters.
type Config struct {
	// Name labels the tree's metrics.
	Name string

	// MaxDepth bounds how deep the tree subdivides. The root has depth 0.
	MaxDepth int
}

func DefaultConfig() Config {
	return Config{
		Name:     "default",
		MaxDepth: 8,
	}
}

// Tree is the root context of an octree: it owns the node arena, the
// object identity map and the listener channels.
type Tree struct {
	config  Config
	nodes   []node
	free    []NodeID
	objects map[ObjectID]NodeID

	listeners    [eventTypeCount][]listener
	nextListener int
	dispatching  bool

	generation uint32
	metrics    treeMetrics
}

type entry struct {
	object Object
	aabb   math.AABB
	vis    *VisibilityState
}

// New creates a tree whose root covers bounds.
func New(bounds math.AABB, config Config) *Tree {
	if config.Name == "" {
		config.Name = DefaultConfig().Name
	}
	if config.MaxDepth < 0 {
		config.MaxDepth = 0
	}

	t := &Tree{
		config:     config,
		objects:    make(map[ObjectID]NodeID),
		generation: 1,
		metrics:    newTreeMetrics(config.Name),
	}
	t.alloc(bounds, Nil, 0)
	return t
}

// Insert stores obj in the deepest node whose bounds contain its AABB.
//
// An AABB that the root does not contain is stored in the root.
func (t *Tree) Insert(obj Object) error {
	if err := t.checkMutable("insert"); err != nil {
		return err
	}

	id := obj.ID()
	if _, ok := t.objects[id]; ok {
		return invalidState("insert", "object is already in the octree")
	}

	aabb := obj.WorldAABB()
	if !t.nodes[Root].bounds.Contains(aabb) {
		t.metrics.outOfBounds.Inc()
	}

	dest := t.sink(Root, aabb)
	t.store(dest, entry{object: obj, aabb: aabb, vis: new(VisibilityState)})
	t.metrics.objects.Inc()

	t.fire(NodeInserted, dest, obj)
	t.notifyAdded(obj, dest)
	return nil
}

// Remove removes obj from the tree and collapses the regions left empty.
func (t *Tree) Remove(obj Object) error {
	if err := t.checkMutable("remove"); err != nil {
		return err
	}

	id := obj.ID()
	nid, ok := t.objects[id]
	if !ok {
		return notFound("remove", id)
	}

	e := t.detach(nid, t.indexOf(nid, id))
	delete(t.objects, id)
	t.metrics.objects.Dec()

	t.fire(NodeRemoved, nid, e.object)
	t.notifyRemoved(e.object, nid)
	t.collapseFrom(nid)
	return nil
}

// Update relocates obj after its AABB changed. It reports whether the
// cached AABB was different; an unchanged AABB is a no-op that fires no
// events.
//
// The object sinks from its node when that node still contains it, and
// otherwise climbs to the first ancestor that does (or the root) before
// sinking again. Listeners and hooks are notified only when the owning node
// changes.
func (t *Tree) Update(obj Object) (bool, error) {
	if err := t.checkMutable("update"); err != nil {
		return false, err
	}

	id := obj.ID()
	old, ok := t.objects[id]
	if !ok {
		return false, notFound("update", id)
	}

	idx := t.indexOf(old, id)
	aabb := obj.WorldAABB()
	if t.nodes[old].objects[idx].aabb.Equal(aabb) {
		return false, nil
	}

	e := t.detach(old, idx)
	e.aabb = aabb

	start := old
	for start != Root && !t.nodes[start].bounds.Contains(aabb) {
		start = t.nodes[start].parent
	}
	if start == Root && !t.nodes[Root].bounds.Contains(aabb) {
		t.metrics.outOfBounds.Inc()
	}

	dest := t.sink(start, aabb)
	t.store(dest, e)

	if dest != old {
		t.fire(NodeRemoved, old, obj)
		t.notifyRemoved(obj, old)
		t.fire(NodeInserted, dest, obj)
		t.notifyAdded(obj, dest)
		t.collapseFrom(old)
	}
	return true, nil
}

// Clear removes every object and every octant, leaving a lone root.
func (t *Tree) Clear() error {
	if err := t.checkMutable("clear"); err != nil {
		return err
	}

	var ids []NodeID
	t.Walk(func(id NodeID, _ int) bool {
		ids = append(ids, id)
		return true
	})

	for _, nid := range ids {
		for len(t.nodes[nid].objects) > 0 {
			e := t.detach(nid, len(t.nodes[nid].objects)-1)
			delete(t.objects, e.object.ID())
			t.metrics.objects.Dec()

			t.fire(NodeRemoved, nid, e.object)
			t.notifyRemoved(e.object, nid)
		}
	}

	if t.nodes[Root].divided {
		t.undivide(Root)
	}
	t.nodes = t.nodes[:1]
	t.free = t.free[:0]
	t.nodes[Root].vis.reset()
	return nil
}

// Lookup returns the node storing the object identified by id.
func (t *Tree) Lookup(id ObjectID) (NodeID, bool) {
	nid, ok := t.objects[id]
	return nid, ok
}

// Len returns the number of objects in the tree.
func (t *Tree) Len() int {
	return len(t.objects)
}

// NodeCount returns the number of live nodes, root included.
func (t *Tree) NodeCount() int {
	return len(t.nodes) - len(t.free)
}

// Bounds returns the bounds of node id.
func (t *Tree) Bounds(id NodeID) math.AABB {
	return t.nodes[id].bounds
}

// Parent returns the parent of node id, or Nil for the root.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].parent
}

// Divided reports whether node id has its 8 octants.
func (t *Tree) Divided(id NodeID) bool {
	return t.nodes[id].divided
}

// Children returns the octants of node id; all are Nil when undivided.
func (t *Tree) Children(id NodeID) [8]NodeID {
	return t.nodes[id].children
}

// Depth returns the depth of node id.
func (t *Tree) Depth(id NodeID) int {
	return t.nodes[id].depth
}

// Objects returns the objects stored directly in node id, in insertion
// order.
func (t *Tree) Objects(id NodeID) []Object {
	objs := make([]Object, len(t.nodes[id].objects))
	for i, e := range t.nodes[id].objects {
		objs[i] = e.object
	}
	return objs
}

// Walk visits the live nodes depth-first, parents before children. Returning
// false from fn skips the children of the visited node.
func (t *Tree) Walk(fn func(id NodeID, depth int) bool) {
	t.walk(Root, fn)
}

func (t *Tree) walk(id NodeID, fn func(NodeID, int) bool) {
	n := &t.nodes[id]
	if !fn(id, n.depth) || !n.divided {
		return
	}
	for _, c := range n.children {
		t.walk(c, fn)
	}
}

func (t *Tree) checkMutable(op string) error {
	if t.dispatching {
		return invalidState(op, "octree mutated from a listener")
	}
	return nil
}

func (t *Tree) validNode(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes) && t.nodes[id].live
}

// store appends e to node id and points the identity map at it.
func (t *Tree) store(id NodeID, e entry) {
	t.nodes[id].objects = append(t.nodes[id].objects, e)
	t.objects[e.object.ID()] = id
}

// detach removes the entry at idx from node id, keeping the order of the
// others. The identity map is left untouched.
func (t *Tree) detach(id NodeID, idx int) entry {
	n := &t.nodes[id]
	e := n.objects[idx]
	n.objects = slices.Delete(n.objects, idx, idx+1)
	return e
}

func (t *Tree) indexOf(id NodeID, obj ObjectID) int {
	return slices.IndexFunc(t.nodes[id].objects, func(e entry) bool {
		return e.object.ID() == obj
	})
}
