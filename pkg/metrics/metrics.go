package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route template and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_graph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures API latency by route template
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpi_graph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "route"},
	)

	// EdgeMutations counts successful store mutations by operation
	EdgeMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_graph_edge_mutations_total",
			Help: "Successful edge mutations",
		},
		[]string{"operation"}, // insert, update, remove, reload
	)

	// RejectedMutations counts mutations refused by validation
	RejectedMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_graph_rejected_mutations_total",
			Help: "Edge mutations rejected by validation",
		},
		[]string{"operation", "reason"}, // reason: self_loop, cycle, not_found
	)

	// EdgesStored tracks the current store size
	EdgesStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kpi_graph_edges",
			Help: "Number of stored KPI edges",
		},
		[]string{"state"}, // active, inactive
	)

	// InfluenceRecords observes how many records an influence query produced
	InfluenceRecords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kpi_graph_influence_records",
			Help:    "Records returned per influence computation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)
