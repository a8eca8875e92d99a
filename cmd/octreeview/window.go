package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/chewxy/math32"

	"render-octree/core"
	"render-octree/internal/debugdraw"
	"render-octree/internal/viewer"
	"render-octree/internal/window"
	"render-octree/octree"
	"render-octree/renderer"
	"render-octree/scene"
)

const (
	orbitSpeed = 1.5
	zoomSpeed  = 40.0

	gridDivisions = 16
)

var background = core.Color{R: 0.05, G: 0.05, B: 0.08, A: 1}

// runWindow draws the octree of the selected view from an orbiting observer
// camera until the window closes or ctx is done.
func runWindow(ctx context.Context, v *viewer.Viewer, conf config) error {
	wc := window.DefaultWindowConfig()
	wc.Width = conf.Width
	wc.Height = conf.Height

	win, err := window.NewWindow(wc)
	if err != nil {
		return errors.New("opening window failed").Wrap(err)
	}
	defer win.Destroy()

	drawer, err := debugdraw.New()
	if err != nil {
		return errors.New("initializing debug draw failed").Wrap(err)
	}
	defer drawer.Destroy()

	observer := newObserver(v)
	palette := renderer.DefaultPalette()
	selected := 0

	win.SetKeyCallback(func(key int) {
		switch key {
		case window.KeyEscape:
			win.Close()
		case window.KeyTab:
			selected++
		case window.KeyP:
			logs.WithTag("paused", v.TogglePause()).Info("simulation toggled")
		case window.KeyR:
			observer = newObserver(v)
		}
	})
	win.SetClickCallback(func(button int, x, y float64) {
		if button == window.MouseButtonLeft {
			pick(v, observer, float32(x), float32(y), float32(win.Width), float32(win.Height))
		}
	})
	win.SetScrollCallback(func(_, yoff float64) {
		observer.Zoom(-float32(yoff) * observer.Distance * 0.1)
	})

	last := time.Now()
	for !win.ShouldClose() {
		if ctx.Err() != nil {
			return nil
		}

		now := time.Now()
		dt := now.Sub(last)
		last = now

		win.PollEvents()
		moveObserver(win, observer, float32(dt.Seconds()))

		width, height := win.GetFramebufferSize()
		observer.UpdateAspectRatio(float32(width), float32(height))
		drawer.SetViewport(width, height)
		drawer.BeginFrame(background)

		f := v.Frame(dt)
		if len(f.Lists) > 0 {
			list := f.Lists[selected%len(f.Lists)]

			s := v.Scene()
			s.RLock()
			batches := renderer.DebugLines(s, list, palette)
			grid := renderer.GridLines(s.Tree().Bounds(octree.Root), gridDivisions, core.ColorGray)
			s.RUnlock()

			drawer.Draw(append(batches, grid), observer.GetViewProjectionMatrix())
			win.SetTitle(title(wc.Title, list))
		}

		win.SwapBuffers()
	}
	return nil
}

// newObserver frames the bounds of the current scene tree.
func newObserver(v *viewer.Viewer) *scene.OrbitCamera {
	s := v.Scene()
	s.RLock()
	bounds := s.Tree().Bounds(octree.Root)
	s.RUnlock()

	size := bounds.Size()
	distance := math32.Max(size.X, math32.Max(size.Y, size.Z)) * 1.5
	c := scene.NewOrbitCamera(bounds.Center(), distance, math32.Pi/3, 16.0/9.0)
	c.FarPlane = distance * 4
	c.UpdatePosition()
	return c
}

// pick logs the node under the cursor and its octant.
func pick(v *viewer.Viewer, c *scene.OrbitCamera, x, y, width, height float32) {
	s := v.Scene()
	n, distance, ok := s.Pick(c.ScreenRay(x, y, width, height), c.FarPlane)
	if !ok {
		logs.WithTag("max_distance", c.FarPlane).Info("nothing picked")
		return
	}

	l := logs.WithTag("node", n.Name).
		WithTag("object_id", n.ID()).
		WithTag("distance", distance).
		WithTag("always_visible", n.AlwaysVisible())

	s.RLock()
	if nid, ok := n.OctreeNode(); ok {
		l = l.WithTag("octant", nid).
			WithTag("depth", s.Tree().Depth(nid))
	}
	s.RUnlock()

	l.Info("node picked")
}

func moveObserver(win *window.Window, c *scene.OrbitCamera, dt float32) {
	var yaw, pitch, zoom float32
	if win.IsKeyPressed(window.KeyLeft) || win.IsKeyPressed(window.KeyA) {
		yaw -= orbitSpeed * dt
	}
	if win.IsKeyPressed(window.KeyRight) || win.IsKeyPressed(window.KeyD) {
		yaw += orbitSpeed * dt
	}
	if win.IsKeyPressed(window.KeyUp) {
		pitch += orbitSpeed * dt
	}
	if win.IsKeyPressed(window.KeyDown) {
		pitch -= orbitSpeed * dt
	}
	if win.IsKeyPressed(window.KeyW) {
		zoom -= zoomSpeed * dt
	}
	if win.IsKeyPressed(window.KeyS) {
		zoom += zoomSpeed * dt
	}

	if yaw != 0 || pitch != 0 {
		c.Orbit(yaw, pitch)
	}
	if zoom != 0 {
		c.Zoom(zoom)
	}
}

func title(base string, l renderer.DrawList) string {
	state := ""
	if l.Degraded {
		state = " [degraded]"
	}
	return fmt.Sprintf("%s - %s: %d drawn, %d octants visited%s",
		base, l.View.Name, len(l.Nodes), l.Stats.NodesVisited, state)
}
