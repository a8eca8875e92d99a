package octree

// Snapshot is the debug view of a tree.
type Snapshot struct {
	Name        string     `json:"name"`
	MaxDepth    int        `json:"max_depth"`
	Generation  uint32     `json:"generation"`
	NodeCount   int        `json:"node_count"`
	ObjectCount int        `json:"object_count"`
	Nodes       []NodeInfo `json:"nodes"`
}

// NodeInfo is the debug view of a node.
type NodeInfo struct {
	ID          NodeID     `json:"id"`
	Parent      NodeID     `json:"parent"`
	Depth       int        `json:"depth"`
	Min         [3]float32 `json:"min"`
	Max         [3]float32 `json:"max"`
	Divided     bool       `json:"divided"`
	ObjectCount int        `json:"object_count"`
	Objects     []ObjectID `json:"objects,omitempty"`
	Visibility  uint64     `json:"visibility"`
}

// Snapshot captures the live nodes in Walk order.
func (t *Tree) Snapshot() Snapshot {
	s := Snapshot{
		Name:        t.config.Name,
		MaxDepth:    t.config.MaxDepth,
		Generation:  t.generation,
		NodeCount:   t.NodeCount(),
		ObjectCount: t.Len(),
		Nodes:       make([]NodeInfo, 0, t.NodeCount()),
	}

	t.Walk(func(id NodeID, depth int) bool {
		n := &t.nodes[id]
		info := NodeInfo{
			ID:          id,
			Parent:      n.parent,
			Depth:       depth,
			Min:         [3]float32{n.bounds.Min.X, n.bounds.Min.Y, n.bounds.Min.Z},
			Max:         [3]float32{n.bounds.Max.X, n.bounds.Max.Y, n.bounds.Max.Z},
			Divided:     n.divided,
			ObjectCount: len(n.objects),
			Visibility:  n.vis.Word(),
		}
		for _, e := range n.objects {
			info.Objects = append(info.Objects, e.object.ID())
		}
		s.Nodes = append(s.Nodes, info)
		return true
	})
	return s
}
