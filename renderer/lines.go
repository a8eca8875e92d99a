package renderer

import (
	"render-octree/core"
	"render-octree/math"
	"render-octree/octree"
	"render-octree/scene"
)

// Palette holds the colours of the debug overlay.
type Palette struct {
	VisibleOctant core.Color
	CulledOctant  core.Color
	DrawnNode     core.Color
	CulledNode    core.Color
	AlwaysVisible core.Color
}

func DefaultPalette() Palette {
	return Palette{
		VisibleOctant: core.Color{R: 0.2, G: 0.8, B: 0.3, A: 1},
		CulledOctant:  core.ColorGray,
		DrawnNode:     core.ColorYellow,
		CulledNode:    core.Color{R: 0.3, G: 0.3, B: 0.8, A: 1},
		AlwaysVisible: core.ColorRed,
	}
}

// LineBatch is a set of line segments drawn with one colour. Vertices holds
// x, y, z triples, two per segment.
type LineBatch struct {
	Color    core.Color
	Vertices []float32
}

// Segments returns the number of segments in the batch.
func (b LineBatch) Segments() int {
	return len(b.Vertices) / 6
}

func (b *LineBatch) addBox(box math.AABB) {
	corners := box.Corners()
	for _, i := range scene.BoxEdges {
		p := corners[i]
		b.Vertices = append(b.Vertices, p.X, p.Y, p.Z)
	}
}

// DebugLines builds the overlay of a draw list: the octants of the scene
// tree coloured by their visibility for the list's view, and the bounds of
// every node coloured by whether the list draws it. Callers must hold the
// scene read lock.
func DebugLines(s *scene.Scene, list DrawList, p Palette) []LineBatch {
	visibleOctants := LineBatch{Color: p.VisibleOctant}
	culledOctants := LineBatch{Color: p.CulledOctant}
	drawn := LineBatch{Color: p.DrawnNode}
	culled := LineBatch{Color: p.CulledNode}
	always := LineBatch{Color: p.AlwaysVisible}

	tree := s.Tree()
	tree.Walk(func(id octree.NodeID, _ int) bool {
		if !list.Degraded && list.View != nil && tree.NodeVisible(id, list.View.ID) {
			visibleOctants.addBox(tree.Bounds(id))
		} else {
			culledOctants.addBox(tree.Bounds(id))
		}
		return true
	})

	inList := make(map[octree.ObjectID]struct{}, len(list.Nodes))
	for _, n := range list.Nodes {
		inList[n.ID()] = struct{}{}
	}

	for _, n := range s.Nodes() {
		switch _, ok := inList[n.ID()]; {
		case n.AlwaysVisible():
			always.addBox(n.WorldAABB())
		case ok:
			drawn.addBox(n.WorldAABB())
		default:
			culled.addBox(n.WorldAABB())
		}
	}

	return []LineBatch{culledOctants, visibleOctants, culled, drawn, always}
}

// GridLines returns a grid of divisions cells on the bottom face of bounds.
func GridLines(bounds math.AABB, divisions int, c core.Color) LineBatch {
	divisions = max(divisions, 1)
	b := LineBatch{Color: c}

	size := bounds.Size()
	y := bounds.Min.Y
	for i := 0; i <= divisions; i++ {
		t := float32(i) / float32(divisions)
		x := bounds.Min.X + t*size.X
		z := bounds.Min.Z + t*size.Z
		b.Vertices = append(b.Vertices,
			x, y, bounds.Min.Z, x, y, bounds.Max.Z,
			bounds.Min.X, y, z, bounds.Max.X, y, z,
		)
	}
	return b
}
