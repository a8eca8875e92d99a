package renderer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	viewLabel = "view"
)

var (
	frameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "culler_frame_latency",
		Help:    "The time to compute the draw lists of every view.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	drawnObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "culler_drawn_objects",
		Help: "The number of objects in the last draw list of a view.",
	}, []string{viewLabel})

	culledObjects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "culler_culled_objects_total",
		Help: "The number of objects left out of draw lists.",
	}, []string{viewLabel})

	degradedPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "culler_degraded_passes_total",
		Help: "The number of visibility passes that failed and drew every object.",
	}, []string{viewLabel})
)

func instrumentFrame(start time.Time) {
	frameLatency.Observe(time.Since(start).Seconds())
}

func instrumentDrawList(view string, drawn, culled int) {
	drawnObjects.
		With(prometheus.Labels{viewLabel: view}).
		Set(float64(drawn))

	culledObjects.
		With(prometheus.Labels{viewLabel: view}).
		Add(float64(culled))
}

func instrumentDegradedPass(view string) {
	degradedPasses.
		With(prometheus.Labels{viewLabel: view}).
		Inc()
}
