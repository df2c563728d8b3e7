package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the service exports. Go runtime and process
// collectors are registered alongside.
type Registry struct {
	// Tool Metrics
	ToolCallsTotal    *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	TraversalNodes    prometheus.Histogram
	ToolCallsInFlight prometheus.Gauge

	// Load Metrics
	LoadsTotal           *prometheus.CounterVec
	LoadDuration         prometheus.Histogram
	LastLoadTimestamp    prometheus.Gauge
	SnapshotEntities     *prometheus.GaugeVec
	SnapshotRelations    prometheus.Gauge
	DroppedRelationships prometheus.Gauge
	SnapshotWarnings     prometheus.Gauge

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry  *prometheus.Registry
	startTime time.Time
}

// NewRegistry creates a new metrics registry with all metrics initialized.
// Each call owns a fresh prometheus.Registry, so tests can build as many as
// they need.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry:  reg,
		startTime: time.Now(),
	}

	r.initToolMetrics()
	r.initLoadMetrics()
	r.initHTTPMetrics()
	r.initProcessMetrics()

	return r
}

// Gatherer exposes the underlying registry to scrapers and tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
