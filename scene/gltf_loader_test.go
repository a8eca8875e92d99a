package scene

import (
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/require"

	"render-octree/math"
)

// writeTestModel saves a binary glTF with a unit cube node translated by
// offset, parenting a second cube shifted one unit up.
func writeTestModel(t *testing.T, dir string, offset [3]float64) string {
	t.Helper()

	doc := gltf.NewDocument()
	corners := math.AABBFromCenter(math.Vec3Zero, math.Splat(0.5)).Corners()
	positions := make([][3]float32, len(corners))
	for i, c := range corners {
		positions[i] = [3]float32{c.X, c.Y, c.Z}
	}

	posAccessor := modeler.WritePosition(doc, positions)
	indicesAccessor := modeler.WriteIndices(doc, BoxEdges[:])
	doc.Meshes = []*gltf.Mesh{{
		Name: "cube",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(indicesAccessor),
			Attributes: map[string]int{"POSITION": posAccessor},
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "crate", Mesh: gltf.Index(0), Translation: offset, Children: []int{1}},
		{Name: "lid", Mesh: gltf.Index(0), Translation: [3]float64{0, 1, 0}},
	}
	doc.Scenes[0].Nodes = []int{0}

	path := filepath.Join(dir, "crate.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestLoadGLTFBounds(t *testing.T) {
	path := writeTestModel(t, t.TempDir(), [3]float64{4, 0, 0})

	roots, err := LoadGLTFBounds(path)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	crate := roots[0]
	require.Equal(t, "crate", crate.Name)
	require.NotNil(t, crate.Mesh)
	require.Len(t, crate.Mesh.Positions, 8)
	require.Len(t, crate.Mesh.Indices, 24)
	require.Equal(t, math.NewAABB(math.Splat(-0.5), math.Splat(0.5)), crate.Mesh.LocalAABB)
	require.Equal(t, math.NewAABB(math.NewVec3(3.5, -0.5, -0.5), math.NewVec3(4.5, 0.5, 0.5)), crate.WorldAABB())

	lid := crate.Find("lid")
	require.NotNil(t, lid)
	require.Equal(t, math.NewAABB(math.NewVec3(3.5, 0.5, -0.5), math.NewVec3(4.5, 1.5, 0.5)), lid.WorldAABB())
}

func TestLoadGLTFBoundsMissingFile(t *testing.T) {
	_, err := LoadGLTFBounds(filepath.Join(t.TempDir(), "missing.glb"))
	require.Error(t, err)
}
