// Package renderer turns the scene octree into per-view draw lists once per
// frame.
package renderer

import (
	"strconv"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"

	"render-octree/octree"
	"render-octree/scene"
)

// DrawList holds the nodes a view draws in a frame.
type DrawList struct {
	View  *scene.View
	Nodes []*scene.Node
	Stats octree.VisibilityStats

	// Degraded is set when the visibility pass failed and every node was
	// kept.
	Degraded bool
}

// Frame is the result of a culling frame.
type Frame struct {
	Generation uint32
	Lists      []DrawList
	Duration   time.Duration
}

// Culler computes the draw lists of every view of a scene.
type Culler struct {
	Scene *scene.Scene

	// Sequential runs the visibility passes one after the other instead of
	// one goroutine per view.
	Sequential bool
}

// Frame starts a new visibility generation and runs one pass per view. The
// scene is read locked until every pass is done, so no node moves while
// passes run.
func (c *Culler) Frame() Frame {
	start := time.Now()
	defer instrumentFrame(start)

	gen := c.Scene.NextGeneration()

	c.Scene.RLock()
	defer c.Scene.RUnlock()

	views := c.Scene.Views()
	frame := Frame{
		Generation: gen,
		Lists:      make([]DrawList, len(views)),
	}

	if c.Sequential {
		for i, v := range views {
			frame.Lists[i] = c.cull(v)
		}
	} else {
		var wg sync.WaitGroup
		for i, v := range views {
			wg.Add(1)
			go func() {
				defer wg.Done()
				frame.Lists[i] = c.cull(v)
			}()
		}
		wg.Wait()
	}

	frame.Duration = time.Since(start)
	return frame
}

func (c *Culler) cull(v *scene.View) DrawList {
	tree := c.Scene.Tree()
	list := DrawList{View: v}
	label := viewName(v)

	stats, err := tree.CalculateVisibility(v)
	if err != nil {
		logs.Warn(errors.New("visibility pass failed, drawing every node").
			WithTag("view", label).
			WithTag("scene_id", v.ID).
			Wrap(err))
		instrumentDegradedPass(label)

		list.Degraded = true
		list.Nodes = c.Scene.Nodes()
		instrumentDrawList(label, len(list.Nodes), 0)
		return list
	}
	list.Stats = stats

	for obj := range tree.VisibleObjects(v.ID) {
		n, ok := obj.(*scene.Node)
		if !ok || n.AlwaysVisible() {
			continue
		}
		list.Nodes = append(list.Nodes, n)
	}
	list.Nodes = append(list.Nodes, c.Scene.AlwaysVisible()...)

	instrumentDrawList(label, len(list.Nodes), c.Scene.TrackedCount()-len(list.Nodes))
	return list
}

func viewName(v *scene.View) string {
	if v.Name != "" {
		return v.Name
	}
	return strconv.Itoa(int(v.ID))
}

// Summary logs the draw list sizes of a frame at debug level.
func (f Frame) Summary() {
	for _, l := range f.Lists {
		logs.WithTag("view", viewName(l.View)).
			WithTag("generation", f.Generation).
			WithTag("drawn", len(l.Nodes)).
			WithTag("nodes_visited", l.Stats.NodesVisited).
			WithTag("nodes_visible", l.Stats.NodesVisible).
			WithTag("degraded", l.Degraded).
			Debug("frame culled")
	}
}
