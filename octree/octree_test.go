package octree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"render-octree/math"
)

type testObject struct {
	id      ObjectID
	aabb    math.AABB
	added   []NodeID
	removed []NodeID
	onAdd   func(t *Tree)
}

func (o *testObject) ID() ObjectID         { return o.id }
func (o *testObject) WorldAABB() math.AABB { return o.aabb }

func (o *testObject) OnAddedToOctree(t *Tree, node NodeID) {
	o.added = append(o.added, node)
	if o.onAdd != nil {
		o.onAdd(t)
	}
}

func (o *testObject) OnRemovedFromOctree(t *Tree, node NodeID) {
	o.removed = append(o.removed, node)
}

func box(x0, y0, z0, x1, y1, z1 float32) math.AABB {
	return math.NewAABB(math.NewVec3(x0, y0, z0), math.NewVec3(x1, y1, z1))
}

func newObject(id ObjectID, aabb math.AABB) *testObject {
	return &testObject{id: id, aabb: aabb}
}

func newTestTree(maxDepth int) *Tree {
	return New(box(0, 0, 0, 8, 8, 8), Config{
		Name:     "test",
		MaxDepth: maxDepth,
	})
}

type eventCounter map[EventType]int

func countEvents(t *Tree) eventCounter {
	c := make(eventCounter)
	for typ := OctantCreated; typ < eventTypeCount; typ++ {
		t.Subscribe(typ, func(e Event) {
			c[e.Type]++
		})
	}
	return c
}

func TestInsertDividesRootOnce(t *testing.T) {
	tree := newTestTree(1)
	events := countEvents(tree)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))

	err := tree.Insert(a)
	require.NoError(t, err)
	require.True(t, tree.Divided(Root))
	require.Equal(t, 9, tree.NodeCount())

	nid, ok := tree.Lookup(a.ID())
	require.True(t, ok)
	require.Equal(t, box(0, 0, 0, 4, 4, 4), tree.Bounds(nid))
	require.Equal(t, 1, tree.Depth(nid))
	require.False(t, tree.Divided(nid))
	require.Equal(t, []Object{a}, tree.Objects(nid))
	require.Equal(t, []NodeID{nid}, a.added)

	for _, c := range tree.Children(Root) {
		require.Equal(t, math.NewVec3(4, 4, 4), tree.Bounds(c).Size())
	}

	require.Equal(t, 8, events[OctantCreated])
	require.Equal(t, 1, events[NodeInserted])
}

func TestInsertDeepestFit(t *testing.T) {
	tree := newTestTree(DefaultConfig().MaxDepth)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))

	require.NoError(t, tree.Insert(a))

	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, box(0, 0, 0, 1, 1, 1), tree.Bounds(nid))
	require.Equal(t, 3, tree.Depth(nid))
	require.Equal(t, 25, tree.NodeCount())
}

func TestInsertStraddlingStaysInParent(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(3, 3, 3, 5, 5, 5))

	require.NoError(t, tree.Insert(a))

	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, Root, nid)
	require.False(t, tree.Divided(Root))
}

func TestInsertMaxDepthZero(t *testing.T) {
	tree := newTestTree(0)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))

	require.NoError(t, tree.Insert(a))

	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, Root, nid)
	require.Equal(t, 1, tree.NodeCount())
}

func TestInsertOutOfBoundsFallsBackToRoot(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(10, 10, 10, 11, 11, 11))

	require.NoError(t, tree.Insert(a))

	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, Root, nid)
}

func TestInsertTwice(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))

	require.NoError(t, tree.Insert(a))
	err := tree.Insert(a)
	require.Error(t, err)
	require.True(t, IsInvalidState(err))
	require.Equal(t, 1, tree.Len())
}

func TestRemoveCollapsesToRoot(t *testing.T) {
	tree := newTestTree(1)
	events := countEvents(tree)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))

	require.NoError(t, tree.Insert(a))
	nid, _ := tree.Lookup(a.ID())

	require.NoError(t, tree.Remove(a))
	require.False(t, tree.Divided(Root))
	require.Equal(t, 1, tree.NodeCount())
	require.Equal(t, 0, tree.Len())
	require.Empty(t, tree.Objects(Root))
	require.Equal(t, []NodeID{nid}, a.removed)

	_, ok := tree.Lookup(a.ID())
	require.False(t, ok)

	require.Equal(t, 8, events[OctantDestroyed])
	require.Equal(t, 1, events[NodeRemoved])
}

func TestRemoveAbsent(t *testing.T) {
	tree := newTestTree(8)

	err := tree.Remove(newObject(42, box(0, 0, 0, 1, 1, 1)))
	require.Error(t, err)
	require.True(t, IsNotFound(err))
	require.False(t, IsInvalidState(err))
}

func TestRemoveKeepsOccupiedSiblings(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	b := newObject(2, box(7, 7, 7, 8, 8, 8))

	require.NoError(t, tree.Insert(a))
	require.NoError(t, tree.Insert(b))
	require.Equal(t, 41, tree.NodeCount())

	require.NoError(t, tree.Remove(a))
	require.True(t, tree.Divided(Root))
	require.False(t, tree.Divided(tree.Children(Root)[0]))
	require.Equal(t, 25, tree.NodeCount())

	nid, _ := tree.Lookup(b.ID())
	require.Equal(t, box(7, 7, 7, 8, 8, 8), tree.Bounds(nid))

	require.NoError(t, tree.Remove(b))
	require.Equal(t, 1, tree.NodeCount())
}

func TestRemoveKeepsAncestorWithObjects(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	mid := newObject(2, box(3, 3, 3, 5, 5, 5))

	require.NoError(t, tree.Insert(mid))
	require.NoError(t, tree.Insert(a))
	require.NoError(t, tree.Remove(a))

	// The root holds mid, so it keeps its octants.
	require.True(t, tree.Divided(Root))
	require.Equal(t, 9, tree.NodeCount())

	nid, _ := tree.Lookup(mid.ID())
	require.Equal(t, Root, nid)
}

func TestInsertRemoveRestoresTopology(t *testing.T) {
	aabbs := []math.AABB{
		box(0, 0, 0, 1, 1, 1),
		box(0.1, 0.1, 0.1, 0.2, 0.2, 0.2),
		box(3, 3, 3, 5, 5, 5),
		box(6, 0, 6, 7, 1, 7),
		box(-1, -1, -1, 9, 9, 9),
	}

	for _, aabb := range aabbs {
		tree := newTestTree(8)
		before := tree.Snapshot()

		obj := newObject(1, aabb)
		require.NoError(t, tree.Insert(obj))
		require.NoError(t, tree.Remove(obj))

		after := tree.Snapshot()
		require.Equal(t, before.NodeCount, after.NodeCount)
		require.Equal(t, before.Nodes, after.Nodes)
	}
}

func TestUpdateUnchangedIsNoop(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, tree.Insert(a))

	events := countEvents(tree)
	before, _ := tree.Lookup(a.ID())

	moved, err := tree.Update(a)
	require.NoError(t, err)
	require.False(t, moved)

	after, _ := tree.Lookup(a.ID())
	require.Equal(t, before, after)
	require.Empty(t, events)
	require.Len(t, a.added, 1)
	require.Empty(t, a.removed)
}

func TestUpdateWithinNode(t *testing.T) {
	tree := newTestTree(1)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, tree.Insert(a))
	events := countEvents(tree)

	a.aabb = box(1, 1, 1, 2, 2, 2)
	moved, err := tree.Update(a)
	require.NoError(t, err)
	require.True(t, moved)

	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, box(0, 0, 0, 4, 4, 4), tree.Bounds(nid))
	require.Empty(t, events)
}

func TestUpdateClimbsAndCollapses(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, tree.Insert(a))
	old, _ := tree.Lookup(a.ID())
	events := countEvents(tree)

	a.aabb = box(5, 5, 5, 6, 6, 6)
	moved, err := tree.Update(a)
	require.NoError(t, err)
	require.True(t, moved)

	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, box(5, 5, 5, 6, 6, 6), tree.Bounds(nid))
	require.Equal(t, 3, tree.Depth(nid))

	require.True(t, tree.Divided(Root))
	require.False(t, tree.Divided(tree.Children(Root)[0]))
	require.Equal(t, 25, tree.NodeCount())

	require.Equal(t, 1, events[NodeRemoved])
	require.Equal(t, 1, events[NodeInserted])
	require.Equal(t, 16, events[OctantCreated])
	require.Equal(t, 16, events[OctantDestroyed])
	require.Equal(t, []NodeID{old}, a.removed)
	require.Equal(t, nid, a.added[len(a.added)-1])
}

func TestUpdateSinksDeeper(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(3, 3, 3, 5, 5, 5))
	require.NoError(t, tree.Insert(a))

	a.aabb = box(0, 0, 0, 1, 1, 1)
	moved, err := tree.Update(a)
	require.NoError(t, err)
	require.True(t, moved)

	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, 3, tree.Depth(nid))
	require.Empty(t, tree.Objects(Root))
}

func TestUpdateAbsent(t *testing.T) {
	tree := newTestTree(8)

	moved, err := tree.Update(newObject(7, box(0, 0, 0, 1, 1, 1)))
	require.Error(t, err)
	require.True(t, IsNotFound(err))
	require.False(t, moved)
}

func TestIdentityMapPointsAtContainingNode(t *testing.T) {
	tree := newTestTree(6)
	rng := rand.New(rand.NewSource(1))

	randomBox := func() math.AABB {
		c := math.NewVec3(rng.Float32()*8, rng.Float32()*8, rng.Float32()*8)
		h := math.Splat(rng.Float32() * 0.5)
		return math.AABBFromCenter(c, h)
	}

	objs := make([]*testObject, 200)
	for i := range objs {
		objs[i] = newObject(ObjectID(i+1), randomBox())
		require.NoError(t, tree.Insert(objs[i]))
	}

	for step := 0; step < 5; step++ {
		for i, o := range objs {
			switch {
			case i%7 == step:
				require.NoError(t, tree.Remove(o))
				o.aabb = randomBox()
				require.NoError(t, tree.Insert(o))
			default:
				o.aabb = randomBox()
				_, err := tree.Update(o)
				require.NoError(t, err)
			}
		}

		require.Equal(t, len(objs), tree.Len())
		for _, o := range objs {
			nid, ok := tree.Lookup(o.ID())
			require.True(t, ok)
			require.True(t, nid == Root || tree.Bounds(nid).Contains(o.aabb))
			require.Contains(t, tree.Objects(nid), Object(o))
		}
	}

	for _, o := range objs {
		require.NoError(t, tree.Remove(o))
	}
	require.Equal(t, 1, tree.NodeCount())
	require.False(t, tree.Divided(Root))
}

func TestDivide(t *testing.T) {
	tree := newTestTree(8)
	events := countEvents(tree)

	require.NoError(t, tree.Divide(Root))
	require.Equal(t, 8, events[OctantCreated])

	for i, c := range tree.Children(Root) {
		require.Equal(t, Root, tree.Parent(c))
		require.Equal(t, tree.Bounds(Root).Octant(i), tree.Bounds(c))
	}

	err := tree.Divide(Root)
	require.Error(t, err)
	require.True(t, IsInvalidState(err))
	require.Equal(t, 8, events[OctantCreated])

	err = tree.Divide(NodeID(1000))
	require.True(t, IsInvalidState(err))
}

func TestUndivide(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, tree.Insert(a))
	events := countEvents(tree)

	err := tree.Undivide(Root)
	require.Error(t, err)
	require.True(t, IsInvalidState(err))
	require.Equal(t, 25, tree.NodeCount())
	require.Empty(t, events)

	leaf, _ := tree.Lookup(a.ID())
	err = tree.Undivide(leaf)
	require.True(t, IsInvalidState(err))

	require.NoError(t, tree.Remove(a))
	require.NoError(t, tree.Divide(Root))
	require.NoError(t, tree.Divide(tree.Children(Root)[3]))
	require.NoError(t, tree.Undivide(Root))
	require.Equal(t, 1, tree.NodeCount())
}

func TestEmptyDeep(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, tree.Insert(a))

	require.False(t, tree.EmptyDeep(Root, -1))
	require.False(t, tree.EmptyDeep(Root, 0))

	octant := tree.Children(Root)[7]
	require.True(t, tree.EmptyDeep(octant, 0))
	require.True(t, tree.EmptyDeep(octant, -1))

	require.NoError(t, tree.Divide(octant))
	require.False(t, tree.EmptyDeep(octant, 0))
	require.True(t, tree.EmptyDeep(octant, 1))
}

func TestFreedSlotsAreReused(t *testing.T) {
	tree := newTestTree(1)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))

	for i := 0; i < 10; i++ {
		require.NoError(t, tree.Insert(a))
		require.NoError(t, tree.Remove(a))
	}
	require.Len(t, tree.nodes, 9)
	require.Equal(t, 1, tree.NodeCount())
}

func TestClear(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	b := newObject(2, box(3, 3, 3, 5, 5, 5))
	require.NoError(t, tree.Insert(a))
	require.NoError(t, tree.Insert(b))
	events := countEvents(tree)

	require.NoError(t, tree.Clear())
	require.Equal(t, 0, tree.Len())
	require.Equal(t, 1, tree.NodeCount())
	require.False(t, tree.Divided(Root))
	require.Len(t, a.removed, 1)
	require.Len(t, b.removed, 1)
	require.Equal(t, 2, events[NodeRemoved])
	require.Equal(t, 24, events[OctantDestroyed])

	require.NoError(t, tree.Insert(a))
	nid, _ := tree.Lookup(a.ID())
	require.Equal(t, 3, tree.Depth(nid))
}

func TestListenerCannotMutate(t *testing.T) {
	tree := newTestTree(8)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	b := newObject(2, box(7, 7, 7, 8, 8, 8))

	var errs []error
	tree.Subscribe(NodeInserted, func(e Event) {
		errs = append(errs, tree.Insert(b))
		_, err := tree.Update(e.Object)
		errs = append(errs, err)
		errs = append(errs, tree.Remove(e.Object))
		errs = append(errs, tree.Clear())
		errs = append(errs, tree.Divide(e.Node))
	})

	require.NoError(t, tree.Insert(a))
	require.Len(t, errs, 5)
	for _, err := range errs {
		require.True(t, IsInvalidState(err))
	}
	require.Equal(t, 1, tree.Len())

	// The guard is released once dispatch is over.
	require.NoError(t, tree.Remove(a))
}

func TestHookCannotMutate(t *testing.T) {
	tree := newTestTree(8)
	b := newObject(2, box(7, 7, 7, 8, 8, 8))

	var err error
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	a.onAdd = func(tr *Tree) {
		err = tr.Insert(b)
	}

	require.NoError(t, tree.Insert(a))
	require.True(t, IsInvalidState(err))
	require.Equal(t, 1, tree.Len())
}

func TestSubscribeCancel(t *testing.T) {
	tree := newTestTree(8)

	var calls int
	cancel := tree.Subscribe(NodeInserted, func(Event) { calls++ })

	require.NoError(t, tree.Insert(newObject(1, box(0, 0, 0, 1, 1, 1))))
	cancel()
	require.NoError(t, tree.Insert(newObject(2, box(7, 7, 7, 8, 8, 8))))
	require.Equal(t, 1, calls)
}

func TestEventTypeString(t *testing.T) {
	require.Equal(t, "octant_created", OctantCreated.String())
	require.Equal(t, "node_removed", NodeRemoved.String())
	require.Equal(t, "unknown", EventType(42).String())
}

func TestSnapshot(t *testing.T) {
	tree := newTestTree(1)
	a := newObject(1, box(0, 0, 0, 1, 1, 1))
	require.NoError(t, tree.Insert(a))

	s := tree.Snapshot()
	require.Equal(t, "test", s.Name)
	require.Equal(t, 9, s.NodeCount)
	require.Equal(t, 1, s.ObjectCount)
	require.Len(t, s.Nodes, 9)
	require.Equal(t, Root, s.Nodes[0].ID)
	require.True(t, s.Nodes[0].Divided)
	require.Equal(t, []ObjectID{1}, s.Nodes[1].Objects)
	require.Equal(t, [3]float32{4, 4, 4}, s.Nodes[1].Max)
}

func BenchmarkInsertRemove(b *testing.B) {
	tree := New(box(-512, -512, -512, 512, 512, 512), DefaultConfig())
	rng := rand.New(rand.NewSource(1))

	objs := make([]*testObject, 1024)
	for i := range objs {
		c := math.NewVec3(rng.Float32()*1000-500, rng.Float32()*1000-500, rng.Float32()*1000-500)
		objs[i] = newObject(ObjectID(i+1), math.AABBFromCenter(c, math.Splat(1)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o := objs[i%len(objs)]
		tree.Insert(o)
		tree.Remove(o)
	}
}

func BenchmarkUpdate(b *testing.B) {
	tree := New(box(-512, -512, -512, 512, 512, 512), DefaultConfig())
	rng := rand.New(rand.NewSource(1))

	objs := make([]*testObject, 1024)
	for i := range objs {
		c := math.NewVec3(rng.Float32()*1000-500, rng.Float32()*1000-500, rng.Float32()*1000-500)
		objs[i] = newObject(ObjectID(i+1), math.AABBFromCenter(c, math.Splat(1)))
		tree.Insert(objs[i])
	}

	step := math.NewVec3(0.5, 0, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o := objs[i%len(objs)]
		o.aabb = math.AABB{Min: o.aabb.Min.Add(step), Max: o.aabb.Max.Add(step)}
		tree.Update(o)
	}
}
