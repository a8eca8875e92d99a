package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"render-octree/math"
	"render-octree/octree"
)

const testLayout = `
name: yard
bounds:
  min: [-32, -32, -32]
  max: [32, 32, 32]
max_depth: 5
views:
  - id: 0
    name: main
    position: [0, 0, 40]
    target: [0, 0, 0]
    fov: 60
    near: 0.1
    far: 200
  - id: 4
    name: top
    position: [0, 40, 0.1]
    target: [0, 0, 0]
objects:
  - name: crate
    position: [-20, 2, 0]
    half_extents: [1, 1, 1]
    velocity: [2, 0, 0]
    count: 4
    spacing: [5, 0, 0]
  - name: model
    position: [10, 10, 10]
    model: crate.glb
`

func writeLayout(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	writeTestModel(t, dir, [3]float64{0, 0, 0})

	l, err := LoadLayout(writeLayout(t, dir, testLayout))
	require.NoError(t, err)
	require.Equal(t, "yard", l.Name)
	require.Equal(t, octree.Config{Name: "yard", MaxDepth: 5}, l.OctreeConfig())
	require.Len(t, l.Views, 2)
	require.Equal(t, filepath.Join(dir, "crate.glb"), l.Objects[1].Model)

	s, err := l.NewScene()
	require.NoError(t, err)
	require.Len(t, s.Views(), 2)
	require.Equal(t, octree.SceneID(4), s.Views()[1].SceneID())
	require.Equal(t, math.NewAABB(math.Splat(-32), math.Splat(32)), s.Tree().Bounds(octree.Root))

	require.NoError(t, l.Populate(s))
	// 4 crates, plus the model's crate and lid.
	require.Equal(t, 6, s.Len())
	require.Equal(t, 6, s.Tree().Len())

	crate := s.Root.Find("crate_3")
	require.NotNil(t, crate)
	require.Equal(t, math.NewVec3(-5, 2, 0), crate.Transform.Position)
	require.Equal(t, math.NewVec3(2, 0, 0), crate.Velocity)

	lid := s.Root.Find("lid")
	require.NotNil(t, lid)
	require.Equal(t, math.NewAABB(math.NewVec3(9.5, 10.5, 9.5), math.NewVec3(10.5, 11.5, 10.5)), lid.WorldAABB())

	// Populating again replaces the objects.
	require.NoError(t, l.Populate(s))
	require.Equal(t, 6, s.Len())
}

func TestLoadLayoutInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "inverted bounds",
			content: "bounds: {min: [1, 1, 1], max: [0, 0, 0]}",
		},
		{
			name: "duplicate view",
			content: `
bounds: {min: [0, 0, 0], max: [1, 1, 1]}
views: [{id: 1, name: a}, {id: 1, name: b}]`,
		},
		{
			name: "view out of range",
			content: `
bounds: {min: [0, 0, 0], max: [1, 1, 1]}
views: [{id: 32}]`,
		},
		{
			name: "flat object",
			content: `
bounds: {min: [0, 0, 0], max: [1, 1, 1]}
objects: [{name: flat, half_extents: [1, 0, 1]}]`,
		},
		{
			name: "unknown shape",
			content: `
bounds: {min: [0, 0, 0], max: [1, 1, 1]}
objects: [{name: blob, shape: blob, half_extents: [1, 1, 1]}]`,
		},
		{
			name: "unsupported model",
			content: `
bounds: {min: [0, 0, 0], max: [1, 1, 1]}
objects: [{name: mesh, model: mesh.fbx}]`,
		},
		{
			name:    "not yaml",
			content: "bounds: [",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadLayout(writeLayout(t, t.TempDir(), test.content))
			require.Error(t, err)
		})
	}
}

func TestLayoutMissingModel(t *testing.T) {
	dir := t.TempDir()
	l, err := LoadLayout(writeLayout(t, dir, testLayout))
	require.NoError(t, err)

	s, err := l.NewScene()
	require.NoError(t, err)
	require.Error(t, l.Populate(s))
}

func TestSaveLayout(t *testing.T) {
	dir := t.TempDir()
	l := &Layout{
		Name:     "saved",
		Bounds:   LayoutBounds{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}},
		MaxDepth: 3,
		Objects: []LayoutObject{
			{Name: "box", HalfExtents: Vec3{0.1, 0.1, 0.1}},
		},
	}

	path := filepath.Join(dir, "saved.yaml")
	require.NoError(t, SaveLayout(l, path))

	loaded, err := LoadLayout(path)
	require.NoError(t, err)
	require.Equal(t, l, loaded)
}

func TestLayoutShapes(t *testing.T) {
	l := &Layout{
		Bounds: LayoutBounds{Min: Vec3{-16, -16, -16}, Max: Vec3{16, 16, 16}},
		Objects: []LayoutObject{
			{Name: "box", HalfExtents: Vec3{1, 2, 3}},
			{Name: "ball", Shape: "sphere", Position: Vec3{5, 0, 0}, HalfExtents: Vec3{2, 2, 2}},
			{Name: "pillar", Shape: "cylinder", HalfExtents: Vec3{1, 4, 1}},
			{Name: "tent", Shape: "pyramid", HalfExtents: Vec3{2, 1, 2}},
		},
	}
	require.NoError(t, l.Validate())

	nodes, err := l.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	bounds := func(i int) math.AABB {
		return nodes[i].WorldAABB()
	}

	require.Equal(t, math.NewAABB(math.NewVec3(-1, -2, -3), math.NewVec3(1, 2, 3)), bounds(0))
	require.Equal(t, "box", nodes[0].Mesh.Name)

	requireAABB(t, math.NewAABB(math.NewVec3(3, -2, -2), math.NewVec3(7, 2, 2)), bounds(1))
	requireAABB(t, math.NewAABB(math.NewVec3(-1, -4, -1), math.NewVec3(1, 4, 1)), bounds(2))
	requireAABB(t, math.NewAABB(math.NewVec3(-2, -1, -2), math.NewVec3(2, 1, 2)), bounds(3))
}

func TestLayoutOBJModel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.obj"), []byte(testOBJ), 0644))

	l, err := LoadLayout(writeLayout(t, dir, `
bounds: {min: [-8, -8, -8], max: [8, 8, 8]}
objects: [{name: tri, position: [1, 0, 0], model: tri.obj}]`))
	require.NoError(t, err)

	nodes, err := l.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 2)
	require.Equal(t, math.NewAABB(math.NewVec3(1, 0, 0), math.NewVec3(2, 1, 0)), nodes[0].Children[0].WorldAABB())
}
