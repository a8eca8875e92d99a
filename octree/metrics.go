package octree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	treeLabel = "tree"
)

var (
	octreeNodeCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "octree_node_count",
		Help: "The number of live octree nodes.",
	}, []string{treeLabel})

	octreeObjectCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "octree_object_count",
		Help: "The number of objects stored in the octree.",
	}, []string{treeLabel})

	octreeDivides = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octree_divides_total",
		Help: "The number of nodes divided into octants.",
	}, []string{treeLabel})

	octreeUndivides = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octree_undivides_total",
		Help: "The number of nodes whose octants were released.",
	}, []string{treeLabel})

	octreeOutOfBounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octree_out_of_bounds_total",
		Help: "The number of objects stored at the root because the root bounds do not contain them.",
	}, []string{treeLabel})

	octreeNodesVisited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octree_visibility_nodes_visited_total",
		Help: "The number of nodes visited by visibility passes.",
	}, []string{treeLabel})
)

// treeMetrics holds the collectors of one tree, resolved once for its label.
type treeMetrics struct {
	nodes        prometheus.Gauge
	objects      prometheus.Gauge
	divides      prometheus.Counter
	undivides    prometheus.Counter
	outOfBounds  prometheus.Counter
	nodesVisited prometheus.Counter
}

func newTreeMetrics(name string) treeMetrics {
	labels := prometheus.Labels{treeLabel: name}
	m := treeMetrics{
		nodes:        octreeNodeCount.With(labels),
		objects:      octreeObjectCount.With(labels),
		divides:      octreeDivides.With(labels),
		undivides:    octreeUndivides.With(labels),
		outOfBounds:  octreeOutOfBounds.With(labels),
		nodesVisited: octreeNodesVisited.With(labels),
	}

	// A tree created with the name of a previous one starts from zero.
	m.nodes.Set(0)
	m.objects.Set(0)
	return m
}
