package octree

import (
	"slices"
)

// EventType identifies one of the tree's listener channels.
type EventType int

const (
	// OctantCreated is fired once per child created by a Divide.
	OctantCreated EventType = iota

	// OctantDestroyed is fired once per child released by an Undivide.
	OctantDestroyed

	// NodeInserted is fired when an object is stored in a node.
	NodeInserted

	// NodeRemoved is fired when an object leaves a node.
	NodeRemoved

	eventTypeCount
)

func (t EventType) String() string {
	switch t {
	case OctantCreated:
		return "octant_created"
	case OctantDestroyed:
		return "octant_destroyed"
	case NodeInserted:
		return "node_inserted"
	case NodeRemoved:
		return "node_removed"
	default:
		return "unknown"
	}
}

// Event describes a topology change. Object is nil for octant events.
type Event struct {
	Type   EventType
	Node   NodeID
	Object Object
}

// Listener receives events synchronously while the tree is being mutated.
// It must not call mutating methods of the tree that fired it; such calls
// fail with an ErrTypeInvalidState error.
type Listener func(Event)

type listener struct {
	id int
	fn Listener
}

// Subscribe registers l on the channel typ and returns a function that
// unregisters it.
func (t *Tree) Subscribe(typ EventType, l Listener) (cancel func()) {
	if typ < 0 || typ >= eventTypeCount || l == nil {
		return func() {}
	}

	t.nextListener++
	id := t.nextListener
	t.listeners[typ] = append(t.listeners[typ], listener{id: id, fn: l})

	return func() {
		// Clone so that a dispatch in progress keeps iterating a stable slice.
		t.listeners[typ] = slices.DeleteFunc(slices.Clone(t.listeners[typ]), func(l listener) bool {
			return l.id == id
		})
	}
}

func (t *Tree) fire(typ EventType, node NodeID, obj Object) {
	ls := t.listeners[typ]
	if len(ls) == 0 {
		return
	}

	e := Event{Type: typ, Node: node, Object: obj}
	t.dispatching = true
	defer func() { t.dispatching = false }()

	for _, l := range ls {
		l.fn(e)
	}
}

// notifyAdded and notifyRemoved call the object hooks under the same
// re-entrancy guard as listeners.
func (t *Tree) notifyAdded(obj Object, node NodeID) {
	t.dispatching = true
	defer func() { t.dispatching = false }()
	obj.OnAddedToOctree(t, node)
}

func (t *Tree) notifyRemoved(obj Object, node NodeID) {
	t.dispatching = true
	defer func() { t.dispatching = false }()
	obj.OnRemovedFromOctree(t, node)
}
