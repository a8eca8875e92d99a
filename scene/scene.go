package scene

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"

	"render-octree/math"
	"render-octree/octree"
)

const (
	// ErrTypeDuplicateView is the type of errors returned when a view reuses
	// the scene id of another view.
	ErrTypeDuplicateView = "scene_duplicate_view"
)

// Scene owns a node graph, its octree and the views culling it.
//
// Mutating methods take the write lock. Readers such as the culler hold the
// read lock with RLock while they run visibility passes.
type Scene struct {
	mu sync.RWMutex

	Root  *Node
	tree  *octree.Tree
	views []*View

	// tracked holds every node with a mesh, in the tree or flagged always
	// visible.
	tracked map[octree.ObjectID]*Node
}

func NewScene(bounds math.AABB, config octree.Config) *Scene {
	return &Scene{
		Root:    NewNode("Root"),
		tree:    octree.New(bounds, config),
		tracked: make(map[octree.ObjectID]*Node),
	}
}

func (s *Scene) RLock() {
	s.mu.RLock()
}

func (s *Scene) RUnlock() {
	s.mu.RUnlock()
}

// Tree returns the scene octree. Callers must hold the read lock.
func (s *Scene) Tree() *octree.Tree {
	return s.tree
}

func (s *Scene) AddView(v *View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID >= octree.MaxScenes {
		return errors.New("view scene id out of range").
			WithType(octree.ErrTypeInvalidState).
			WithTag("view", v.Name).
			WithTag("scene_id", v.ID)
	}
	for _, o := range s.views {
		if o.ID == v.ID {
			return errors.New("view scene id already used").
				WithType(ErrTypeDuplicateView).
				WithTag("view", v.Name).
				WithTag("scene_id", v.ID)
		}
	}

	s.views = append(s.views, v)
	return nil
}

// Views returns the views of the scene. Callers must hold the read lock.
func (s *Scene) Views() []*View {
	return s.views
}

// Node returns the tracked node identified by id. Callers must hold the read
// lock.
func (s *Scene) Node(id octree.ObjectID) *Node {
	return s.tracked[id]
}

// Len returns the number of nodes with a mesh.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracked)
}

// TrackedCount returns the number of nodes with a mesh. Callers must hold the
// read lock.
func (s *Scene) TrackedCount() int {
	return len(s.tracked)
}

// Nodes returns the nodes with a mesh. Callers must hold the read lock.
func (s *Scene) Nodes() []*Node {
	nodes := make([]*Node, 0, len(s.tracked))
	for _, n := range s.tracked {
		nodes = append(nodes, n)
	}
	return nodes
}

// NextGeneration starts a new visibility frame.
func (s *Scene) NextGeneration() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.NextGeneration()
}

// AlwaysVisible returns the nodes the octree failed to track. Callers must
// hold the read lock.
func (s *Scene) AlwaysVisible() []*Node {
	var nodes []*Node
	for _, n := range s.tracked {
		if n.alwaysVisible {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Pick returns the nearest node whose bounds r enters within maxDistance.
func (s *Scene) Pick(r math.Ray, maxDistance float32) (*Node, float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		picked   *Node
		distance = maxDistance
	)
	for _, hit := range s.tree.Raycast(r, maxDistance) {
		if n, ok := hit.Object.(*Node); ok {
			picked, distance = n, hit.Distance
			break
		}
	}

	for _, n := range s.tracked {
		if !n.alwaysVisible {
			continue
		}
		if d, ok := r.IntersectAABB(n.WorldAABB()); ok && d < distance {
			picked, distance = n, d
		}
	}
	return picked, distance, picked != nil
}

// AddNode attaches n to the root of the graph and stores n and its
// descendants in the octree.
func (s *Scene) AddNode(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Root.AddChild(n)
	n.Traverse(s.track)
}

// RemoveNode detaches n from the graph and removes n and its descendants
// from the octree.
func (s *Scene) RemoveNode(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	n.Traverse(s.untrack)
}

// Update moves the nodes by their velocity and relocates the moved ones in
// the octree.
func (s *Scene) Update(deltaTime float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Root.Update(deltaTime)
	s.sync()
}

// Sync relocates the nodes whose transform changed since the last sync.
func (s *Scene) Sync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync()
}

// Clear removes every node and empties the octree. Views are kept.
func (s *Scene) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tree.Clear(); err != nil {
		return errors.New("clearing scene failed").Wrap(err)
	}

	for _, n := range s.tracked {
		n.scene = nil
		n.alwaysVisible = false
	}
	clear(s.tracked)

	for _, c := range s.Root.Children {
		c.Parent = nil
		c.Traverse(func(n *Node) { n.scene = nil })
	}
	s.Root.Children = s.Root.Children[:0]
	return nil
}

func (s *Scene) track(n *Node) {
	n.scene = s
	if n.Mesh == nil {
		return
	}
	if _, ok := s.tracked[n.id]; ok {
		return
	}

	s.tracked[n.id] = n
	n.GetWorldMatrix()
	n.moved = false

	if err := s.tree.Insert(n); err != nil {
		s.degrade(n, "insert", err)
	}
}

func (s *Scene) untrack(n *Node) {
	n.scene = nil
	if _, ok := s.tracked[n.id]; !ok {
		return
	}
	delete(s.tracked, n.id)

	if _, ok := n.OctreeNode(); ok {
		if err := s.tree.Remove(n); err != nil {
			logs.Warn(errors.New("removing node from octree failed").
				WithTag("node", n.Name).
				WithTag("object_id", n.id).
				Wrap(err))
		}
	}
	n.alwaysVisible = false
}

func (s *Scene) sync() {
	for _, n := range s.tracked {
		if n.alwaysVisible {
			s.retrack(n)
			continue
		}
		if !n.moved {
			continue
		}
		n.moved = false

		if _, err := s.tree.Update(n); err != nil {
			s.degrade(n, "update", err)
		}
	}
}

// retrack tries to store an always visible node in the octree again.
func (s *Scene) retrack(n *Node) {
	n.moved = false

	var err error
	if _, ok := n.OctreeNode(); ok {
		_, err = s.tree.Update(n)
	} else {
		err = s.tree.Insert(n)
	}
	if err != nil {
		return
	}

	n.alwaysVisible = false
	logs.WithTag("node", n.Name).
		WithTag("object_id", n.id).
		Debug("node tracked by octree again")
}

// degrade flags n as always visible so that a failing octree never hides
// it.
func (s *Scene) degrade(n *Node, op string, err error) {
	n.alwaysVisible = true
	logs.Warn(errors.New("octree operation failed, node is always visible").
		WithTag("op", op).
		WithTag("node", n.Name).
		WithTag("object_id", n.id).
		Wrap(err))
}
