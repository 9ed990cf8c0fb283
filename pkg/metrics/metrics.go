package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promauto registers everything on the default registry; the server exposes
// it on /metrics.

var (
	// RouteRequestsTotal counts route queries by outcome: "ok" or one of the
	// routing error codes (no-path, no-door, blocked, not-initialized).
	RouteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floornav_route_requests_total",
			Help: "Total number of route queries processed",
		},
		[]string{"status"},
	)

	// RouteDuration measures end-to-end query latency, cache hits included.
	RouteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "floornav_route_duration_seconds",
			Help:    "Duration of route queries in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
	)

	// GraphNodes tracks the node count of the built routing graph.
	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floornav_graph_nodes",
			Help: "Number of nodes in the routing graph",
		},
	)

	// GraphEdges tracks the directed edge count of the built routing graph.
	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floornav_graph_edges",
			Help: "Number of directed edges in the routing graph",
		},
	)

	// EdgeCacheLookups counts visibility edge cache outcomes on
	// initialization: "hit", "miss", or "error".
	EdgeCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floornav_edge_cache_lookups_total",
			Help: "Visibility edge cache lookups by result",
		},
		[]string{"result"},
	)

	// PathCacheHits counts LRU path cache outcomes on the query path.
	PathCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floornav_path_cache_total",
			Help: "Path cache lookups by result",
		},
		[]string{"result"},
	)

	// HttpRequestsTotal counts HTTP requests by method, path, and status.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floornav_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures server response time.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floornav_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)
