package scene

import (
	"sync/atomic"

	"render-octree/core"
	"render-octree/math"
	"render-octree/octree"
)

// Node represents an object in the scene graph. Nodes added to a Scene are
// stored in its octree.
type Node struct {
	Name      string
	Transform core.Transform
	Parent    *Node
	Children  []*Node
	Mesh      *Mesh

	// Velocity moves the node every Update, in units per second.
	Velocity math.Vec3

	id octree.ObjectID

	// Cached world transform
	worldMatrixDirty bool
	worldMatrix      math.Mat4

	// moved is set when the world transform changed since the last sync
	// with the octree.
	moved bool

	scene      *Scene
	octreeNode octree.NodeID

	// alwaysVisible is set when the octree could not track the node.
	alwaysVisible bool
}

var nodeIDCounter atomic.Uint64

func NewNode(name string) *Node {
	return &Node{
		Name:             name,
		Transform:        core.NewTransform(),
		Children:         make([]*Node, 0),
		id:               octree.ObjectID(nodeIDCounter.Add(1)),
		worldMatrixDirty: true,
		octreeNode:       octree.Nil,
	}
}

func (n *Node) ID() octree.ObjectID {
	return n.id
}

func (n *Node) AddChild(child *Node) {
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
	child.MarkWorldMatrixDirty()
}

func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.Parent = nil
			child.MarkWorldMatrixDirty()
			return
		}
	}
}

// GetWorldMatrix returns the local matrix followed by the parent's world
// matrix.
func (n *Node) GetWorldMatrix() math.Mat4 {
	if n.worldMatrixDirty {
		localMatrix := n.Transform.GetMatrix()
		if n.Parent != nil {
			n.worldMatrix = localMatrix.Mul(n.Parent.GetWorldMatrix())
		} else {
			n.worldMatrix = localMatrix
		}
		n.worldMatrixDirty = false
	}
	return n.worldMatrix
}

func (n *Node) MarkWorldMatrixDirty() {
	n.worldMatrixDirty = true
	n.moved = true
	for _, child := range n.Children {
		child.MarkWorldMatrixDirty()
	}
}

func (n *Node) SetPosition(pos math.Vec3) {
	n.Transform.Position = pos
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetRotation(rot math.Quaternion) {
	n.Transform.Rotation = rot
	n.MarkWorldMatrixDirty()
}

func (n *Node) SetScale(scale math.Vec3) {
	n.Transform.Scale = scale
	n.MarkWorldMatrixDirty()
}

func (n *Node) Translate(delta math.Vec3) {
	n.Transform.Position = n.Transform.Position.Add(delta)
	n.MarkWorldMatrixDirty()
}

func (n *Node) Rotate(axis math.Vec3, angle float32) {
	rotation := math.QuaternionFromAxisAngle(axis, angle)
	n.Transform.Rotation = n.Transform.Rotation.Mul(rotation).Normalize()
	n.MarkWorldMatrixDirty()
}

// WorldAABB returns the mesh bounds in world space. A node without a mesh is
// a point at its world position.
func (n *Node) WorldAABB() math.AABB {
	world := n.GetWorldMatrix()
	if n.Mesh == nil {
		p := world.MulVec3(math.Vec3Zero)
		return math.AABB{Min: p, Max: p}
	}
	return n.Mesh.LocalAABB.Transform(world)
}

func (n *Node) OnAddedToOctree(_ *octree.Tree, node octree.NodeID) {
	n.octreeNode = node
}

func (n *Node) OnRemovedFromOctree(_ *octree.Tree, node octree.NodeID) {
	if n.octreeNode == node {
		n.octreeNode = octree.Nil
	}
}

// OctreeNode returns the octree node storing n, if any.
func (n *Node) OctreeNode() (octree.NodeID, bool) {
	return n.octreeNode, n.octreeNode != octree.Nil
}

// AlwaysVisible reports whether n bypasses culling because the octree failed
// to track it.
func (n *Node) AlwaysVisible() bool {
	return n.alwaysVisible
}

// Scene returns the scene n was added to, or nil.
func (n *Node) Scene() *Scene {
	return n.scene
}

// Detach removes n and its children from the scene they were added to.
func (n *Node) Detach() {
	if n.scene != nil {
		n.scene.RemoveNode(n)
	}
}

// Update moves the node and its children by their velocity.
func (n *Node) Update(deltaTime float32) {
	if n.Velocity != math.Vec3Zero {
		n.Translate(n.Velocity.Mul(deltaTime))
	}
	for _, child := range n.Children {
		child.Update(deltaTime)
	}
}

// Traverse visits all nodes in the graph
func (n *Node) Traverse(callback func(*Node)) {
	callback(n)
	for _, child := range n.Children {
		child.Traverse(callback)
	}
}

// Find finds a node by name
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, child := range n.Children {
		if found := child.Find(name); found != nil {
			return found
		}
	}
	return nil
}
