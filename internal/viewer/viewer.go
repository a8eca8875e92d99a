// Package viewer keeps a scene built from a layout file culled frame after
// frame, reloads it when the file changes and serves its state on an admin
// endpoint.
package viewer

import (
	"context"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/fsnotify/fsnotify"

	"render-octree/octree"
	"render-octree/renderer"
	"render-octree/scene"
)

// Viewer owns the scene built from a layout file and keeps it culled.
//
// Frame and TogglePause must be called from a single goroutine.
type Viewer struct {
	runID      string
	layoutPath string

	layout *scene.Layout
	scene  atomic.Pointer[scene.Scene]
	culler renderer.Culler

	reloads chan *scene.Layout
	paused  bool
}

// New loads the layout at layoutPath and builds its scene.
func New(runID, layoutPath string) (*Viewer, error) {
	l, err := scene.LoadLayout(layoutPath)
	if err != nil {
		return nil, err
	}

	v := &Viewer{
		runID:      runID,
		layoutPath: layoutPath,
		reloads:    make(chan *scene.Layout, 1),
	}
	if err := v.apply(l); err != nil {
		return nil, err
	}
	return v, nil
}

// Scene returns the current scene.
func (v *Viewer) Scene() *scene.Scene {
	return v.scene.Load()
}

// TogglePause stops or resumes the motion of the objects and reports
// whether they are now paused. Paused objects are still synced.
func (v *Viewer) TogglePause() bool {
	v.paused = !v.paused
	return v.paused
}

// apply populates the current scene with l, or replaces the scene when the
// bounds, depth or views of l differ from the current layout.
func (v *Viewer) apply(l *scene.Layout) error {
	if v.layout != nil && sameFrame(v.layout, l) {
		if err := l.Populate(v.scene.Load()); err != nil {
			return err
		}
		v.layout = l
		logs.WithTag("layout", v.layoutPath).
			WithTag("objects", v.scene.Load().Len()).
			Info("layout reloaded")
		return nil
	}

	s, err := l.NewScene()
	if err != nil {
		return err
	}
	if err := l.Populate(s); err != nil {
		return err
	}
	subscribeTreeLogs(s.Tree())

	v.layout = l
	v.scene.Store(s)
	v.culler = renderer.Culler{Scene: s}

	s.RLock()
	logs.WithTag("layout", v.layoutPath).
		WithTag("tree", l.OctreeConfig().Name).
		WithTag("max_depth", l.OctreeConfig().MaxDepth).
		WithTag("views", len(s.Views())).
		WithTag("objects", s.TrackedCount()).
		WithTag("octants", s.Tree().NodeCount()).
		Info("scene created")
	s.RUnlock()
	return nil
}

func sameFrame(a, b *scene.Layout) bool {
	return a.Name == b.Name &&
		a.Bounds == b.Bounds &&
		a.MaxDepth == b.MaxDepth &&
		slices.Equal(a.Views, b.Views)
}

func subscribeTreeLogs(t *octree.Tree) {
	for _, typ := range []octree.EventType{
		octree.OctantCreated,
		octree.OctantDestroyed,
		octree.NodeInserted,
		octree.NodeRemoved,
	} {
		t.Subscribe(typ, func(e octree.Event) {
			l := logs.WithTag("event", e.Type).
				WithTag("octant", e.Node).
				WithTag("depth", t.Depth(e.Node))
			if e.Object != nil {
				l = l.WithTag("object", e.Object.ID())
			}
			l.Debug("octree changed")
		})
	}
}

// Frame advances the scene by dt, applies a pending reload and culls every
// view.
func (v *Viewer) Frame(dt time.Duration) renderer.Frame {
	select {
	case l := <-v.reloads:
		if err := v.apply(l); err != nil {
			logs.Warn(errors.New("applying reloaded layout failed").
				WithTag("layout", v.layoutPath).
				Wrap(err))
		}
	default:
	}

	s := v.scene.Load()
	if v.paused {
		s.Sync()
	} else {
		s.Update(float32(dt.Seconds()))
	}

	f := v.culler.Frame()
	f.Summary()
	return f
}

// Watch reloads the layout file when it is written and queues it for the
// next frame. Invalid layouts are logged and ignored.
func (v *Viewer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New("creating layout watcher failed").Wrap(err)
	}
	defer watcher.Close()

	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(filepath.Dir(v.layoutPath)); err != nil {
		return errors.New("watching layout directory failed").
			WithTag("layout", v.layoutPath).
			Wrap(err)
	}
	name := filepath.Clean(v.layoutPath)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name ||
				!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			l, err := scene.LoadLayout(v.layoutPath)
			if err != nil {
				logs.Warn(errors.New("reloading layout failed").
					WithTag("layout", v.layoutPath).
					Wrap(err))
				continue
			}

			// Only the latest layout matters.
			select {
			case <-v.reloads:
			default:
			}
			v.reloads <- l

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logs.Warn(errors.New("layout watcher error").Wrap(err))
		}
	}
}

// RunHeadless culls at a fixed rate until ctx is done or frames frames were
// culled. A zero frames runs until ctx is done.
func (v *Viewer) RunHeadless(ctx context.Context, frameDuration time.Duration, frames int, summaryInterval time.Duration) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var (
		count       int
		lastSummary = time.Now()
		last        = time.Now()
	)

	for frames == 0 || count < frames {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f := v.Frame(now.Sub(last))
			last = now
			count++

			if now.Sub(lastSummary) >= summaryInterval {
				lastSummary = now
				logFrame(count, f)
			}
		}
	}
}

func logFrame(count int, f renderer.Frame) {
	drawn := 0
	degraded := 0
	for _, l := range f.Lists {
		drawn += len(l.Nodes)
		if l.Degraded {
			degraded++
		}
	}

	logs.WithTag("frames", count).
		WithTag("generation", f.Generation).
		WithTag("views", len(f.Lists)).
		WithTag("drawn", drawn).
		WithTag("degraded_views", degraded).
		WithTag("cull_duration", f.Duration).
		Info("culling summary")
}
