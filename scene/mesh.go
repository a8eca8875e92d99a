package scene

import (
	"render-octree/math"
)

// Mesh holds the CPU-side positions of a model. Only its bounds take part in
// culling.
type Mesh struct {
	Name      string
	Positions []math.Vec3
	Indices   []uint32

	// LocalAABB is the tight box of Positions in model space.
	LocalAABB math.AABB
}

// CreateMeshFromData builds a Mesh and pre-computes its local-space AABB.
func CreateMeshFromData(name string, positions []math.Vec3, indices []uint32) *Mesh {
	m := &Mesh{
		Name:      name,
		Positions: positions,
		Indices:   indices,
		LocalAABB: computeLocalAABB(positions),
	}
	return m
}

// computeLocalAABB returns the tight AABB of the given positions, or an empty
// box at the origin when there are none.
func computeLocalAABB(positions []math.Vec3) math.AABB {
	if len(positions) == 0 {
		return math.AABB{}
	}
	b := math.EmptyAABB()
	for _, p := range positions {
		b = b.Extend(p)
	}
	return b
}

// CreateBox returns the 8 corners of a box centred on the origin with the
// given half extents, indexed as 12 edges.
func CreateBox(name string, halfExtents math.Vec3) *Mesh {
	corners := math.AABBFromCenter(math.Vec3Zero, halfExtents).Corners()
	return CreateMeshFromData(name, corners[:], append([]uint32(nil), BoxEdges[:]...))
}

// CreateCube returns a box with edges of the given size.
func CreateCube(size float32) *Mesh {
	return CreateBox("Cube", math.Splat(size/2))
}

// BoxEdges indexes the 12 edges of a box as pairs of math.AABB.Corners
// indices.
var BoxEdges = [24]uint32{
	0, 1, 1, 3, 3, 2, 2, 0,
	4, 5, 5, 7, 7, 6, 6, 4,
	0, 4, 1, 5, 2, 6, 3, 7,
}
