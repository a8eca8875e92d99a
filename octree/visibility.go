package octree

import (
	"iter"
	"sync/atomic"

	"render-octree/math"
)

// SceneID identifies a viewer. Each scene owns one bit of every
// VisibilityState.
type SceneID uint8

// MaxScenes is the number of scene ids a VisibilityState can track.
const MaxScenes = 32

// FrustumTest is the culling volume of a viewer.
type FrustumTest interface {
	Intersects(b math.AABB) bool
}

// Viewer is a camera for which visibility is computed.
type Viewer interface {
	SceneID() SceneID
	Frustum() FrustumTest
}

// VisibilityState records in which scenes a node or an object was seen
// during a given generation. The high 32 bits of the word hold the
// generation and the low 32 bits the scene mask.
type VisibilityState struct {
	word atomic.Uint64
}

// Visible reports whether the state was marked for scene during gen.
func (v *VisibilityState) Visible(scene SceneID, gen uint32) bool {
	if scene >= MaxScenes {
		return false
	}
	w := v.word.Load()
	return uint32(w>>32) == gen && uint32(w)&(1<<scene) != 0
}

// Word returns the raw packed state.
func (v *VisibilityState) Word() uint64 {
	return v.word.Load()
}

// mark sets the scene bit for gen, dropping bits left from another
// generation.
func (v *VisibilityState) mark(scene SceneID, gen uint32) {
	bit := uint32(1) << scene
	for {
		old := v.word.Load()
		mask := uint32(old)
		if uint32(old>>32) != gen {
			mask = 0
		}

		w := uint64(gen)<<32 | uint64(mask|bit)
		if w == old || v.word.CompareAndSwap(old, w) {
			return
		}
	}
}

func (v *VisibilityState) reset() {
	v.word.Store(0)
}

// VisibilityStats summarizes a visibility pass.
type VisibilityStats struct {
	NodesVisited   int
	NodesVisible   int
	ObjectsVisible int
}

// NextGeneration starts a new frame and returns its generation. Every
// visibility mark from previous generations reads as not visible. It must
// not run concurrently with a visibility pass.
func (t *Tree) NextGeneration() uint32 {
	t.generation++
	if t.generation == 0 {
		t.generation = 1
	}
	return t.generation
}

// Generation returns the current generation.
func (t *Tree) Generation() uint32 {
	return t.generation
}

// CalculateVisibility marks the nodes and objects the viewer's frustum
// intersects for the current generation.
//
// Passes for distinct scenes may run concurrently as long as the tree is not
// mutated meanwhile.
func (t *Tree) CalculateVisibility(v Viewer) (VisibilityStats, error) {
	var stats VisibilityStats

	scene := v.SceneID()
	if scene >= MaxScenes {
		return stats, invalidState("calculate_visibility", "scene id out of range")
	}
	frustum := v.Frustum()
	if frustum == nil {
		return stats, invalidState("calculate_visibility", "viewer has no frustum")
	}

	t.markVisible(Root, frustum, scene, t.generation, &stats)
	t.metrics.nodesVisited.Add(float64(stats.NodesVisited))
	return stats, nil
}

func (t *Tree) markVisible(id NodeID, f FrustumTest, scene SceneID, gen uint32, stats *VisibilityStats) {
	n := &t.nodes[id]
	stats.NodesVisited++
	if !f.Intersects(n.bounds) {
		return
	}

	n.vis.mark(scene, gen)
	stats.NodesVisible++
	for _, e := range n.objects {
		e.vis.mark(scene, gen)
	}
	stats.ObjectsVisible += len(n.objects)

	if !n.divided {
		return
	}
	for _, c := range n.children {
		t.markVisible(c, f, scene, gen, stats)
	}
}

// NodeVisible reports whether node id was visible in scene during the
// current generation.
func (t *Tree) NodeVisible(id NodeID, scene SceneID) bool {
	if !t.validNode(id) {
		return false
	}
	return t.nodes[id].vis.Visible(scene, t.generation)
}

// ObjectVisible reports whether the object identified by id was visible in
// scene during the current generation.
func (t *Tree) ObjectVisible(id ObjectID, scene SceneID) bool {
	nid, ok := t.objects[id]
	if !ok {
		return false
	}
	idx := t.indexOf(nid, id)
	return t.nodes[nid].objects[idx].vis.Visible(scene, t.generation)
}

// VisibleObjects iterates over the objects visible in scene during the
// current generation.
func (t *Tree) VisibleObjects(scene SceneID) iter.Seq[Object] {
	gen := t.generation
	return func(yield func(Object) bool) {
		t.yieldVisible(Root, scene, gen, yield)
	}
}

func (t *Tree) yieldVisible(id NodeID, scene SceneID, gen uint32, yield func(Object) bool) bool {
	n := &t.nodes[id]
	if !n.vis.Visible(scene, gen) {
		return true
	}
	for _, e := range n.objects {
		if e.vis.Visible(scene, gen) && !yield(e.object) {
			return false
		}
	}
	if !n.divided {
		return true
	}
	for _, c := range n.children {
		if !t.yieldVisible(c, scene, gen, yield) {
			return false
		}
	}
	return true
}
