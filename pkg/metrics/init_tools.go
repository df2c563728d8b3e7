package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initToolMetrics() {
	r.ToolCallsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "attackgraph_tool_calls_total",
			Help: "Total number of tool calls by outcome (ok or the error kind)",
		},
		[]string{"tool", "outcome"},
	)

	r.ToolCallDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attackgraph_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"tool"},
	)

	r.TraversalNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attackgraph_traversal_nodes",
			Help:    "Number of nodes returned per relationship traversal",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	r.ToolCallsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "attackgraph_tool_calls_in_flight",
			Help: "Current number of tool calls being processed",
		},
	)
}
