package octree

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"render-octree/math"
)

func queryTree(t *testing.T) (*Tree, []*testObject) {
	tree := newTestTree(3)
	objs := []*testObject{
		newObject(1, box(0, 0, 0, 1, 1, 1)),
		newObject(2, box(6, 6, 6, 7, 7, 7)),
		newObject(3, box(3, 3, 3, 5, 5, 5)),
		newObject(4, box(9, 0, 0, 10, 1, 1)),
	}
	for _, o := range objs {
		require.NoError(t, tree.Insert(o))
	}
	return tree, objs
}

func ids(seq func(func(Object) bool)) []ObjectID {
	var out []ObjectID
	for o := range seq {
		out = append(out, o.ID())
	}
	slices.Sort(out)
	return out
}

func TestQuery(t *testing.T) {
	tree, _ := queryTree(t)

	tests := []struct {
		name     string
		box      math.AABB
		expected []ObjectID
	}{
		{name: "corner", box: box(0, 0, 0, 2, 2, 2), expected: []ObjectID{1}},
		{name: "center", box: box(3.5, 3.5, 3.5, 4.5, 4.5, 4.5), expected: []ObjectID{3}},
		{name: "upper half", box: box(4, 4, 4, 8, 8, 8), expected: []ObjectID{2, 3}},
		{name: "everything", box: box(-1, -1, -1, 11, 9, 9), expected: []ObjectID{1, 2, 3, 4}},
		{name: "out of bounds object", box: box(9.5, 0, 0, 12, 1, 1), expected: []ObjectID{4}},
		{name: "empty region", box: box(0, 6, 0, 1, 7, 1)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, ids(tree.Query(test.box)))
		})
	}
}

func TestQueryStopsEarly(t *testing.T) {
	tree, _ := queryTree(t)

	count := 0
	for range tree.Query(box(-1, -1, -1, 11, 9, 9)) {
		count++
		break
	}
	require.Equal(t, 1, count)
}

func TestRaycast(t *testing.T) {
	tree, objs := queryTree(t)

	// Along the main diagonal from below the origin.
	hits := tree.Raycast(math.Ray{Origin: math.Splat(-1), Direction: math.Vec3One}, 100)
	require.Len(t, hits, 3)
	require.Equal(t, Object(objs[0]), hits[0].Object)
	require.InDelta(t, 1, hits[0].Distance, 0.001)
	require.Equal(t, Object(objs[2]), hits[1].Object)
	require.InDelta(t, 4, hits[1].Distance, 0.001)
	require.Equal(t, Object(objs[1]), hits[2].Object)

	nid, _ := tree.Lookup(objs[1].ID())
	require.Equal(t, nid, hits[2].Node)

	short := tree.Raycast(math.Ray{Origin: math.Splat(-1), Direction: math.Vec3One}, 2)
	require.Len(t, short, 1)

	miss := tree.Raycast(math.Ray{Origin: math.NewVec3(0.5, 7, 0.5), Direction: math.NewVec3(0, 1, 0)}, 100)
	require.Empty(t, miss)

	// The root keeps objects outside its bounds.
	outside := tree.Raycast(math.Ray{Origin: math.NewVec3(20, 0.5, 0.5), Direction: math.NewVec3(-1, 0, 0)}, 100)
	require.NotEmpty(t, outside)
	require.Equal(t, Object(objs[3]), outside[0].Object)
	require.InDelta(t, 10, outside[0].Distance, 0.001)
}
