package viewer

import (
	"context"
	"net/http"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"

	"render-octree/octree"
)

type octreeDump struct {
	RunID    string          `json:"run_id"`
	Layout   string          `json:"layout"`
	Snapshot octree.Snapshot `json:"snapshot"`
}

// NewAdminHandler serves the metrics, the health check, the version and a
// JSON dump of the current scene tree.
func NewAdminHandler(v *Viewer, version string) http.Handler {
	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", handleHealthCheck)
	admin.HandleFunc("/version", handleVersion(version))
	admin.HandleFunc("/debug/octree", v.handleOctree)
	return metrics.HTTPHandler(&admin, metricsPathFormatter)
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(version))
	}
}

// handleOctree writes the topology and visibility words of the current
// scene tree.
func (v *Viewer) handleOctree(w http.ResponseWriter, r *http.Request) {
	s := v.scene.Load()

	s.RLock()
	dump := octreeDump{
		RunID:    v.runID,
		Layout:   v.layoutPath,
		Snapshot: s.Tree().Snapshot(),
	}
	s.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	if r.URL.Query().Has("indent") {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(dump); err != nil {
		logs.Warn(errors.New("writing octree snapshot failed").
			WithTag("path", r.URL.Path).
			Wrap(err))
	}
}

// metricsPathFormatter returns empty string on HTTP 301, 400, 404 or 405
// statusCode.
func metricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}
	return path
}

func ListenAndServe(ctx context.Context, servers ...*http.Server) {
	go func() {
		<-ctx.Done()

		for _, s := range servers {
			if err := s.Shutdown(context.Background()); err != nil {
				logs.Warn(errors.Newf("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")

			default:
				logs.Warn(errors.Newf("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}(s)
	}

	wg.Wait()
}
