package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load statuses
const (
	LoadSuccess = "success"
	LoadFailure = "failure"
)

// RecordToolCall records one tool invocation. outcome is "ok" or an error kind.
func (r *Registry) RecordToolCall(tool, outcome string, duration time.Duration) {
	r.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	r.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordTraversal records the size of one relationship traversal result
func (r *Registry) RecordTraversal(nodes int) {
	r.TraversalNodes.Observe(float64(nodes))
}

// RecordLoad records a finished load attempt
func (r *Registry) RecordLoad(status string, duration time.Duration) {
	r.LoadsTotal.WithLabelValues(status).Inc()
	r.LoadDuration.Observe(duration.Seconds())
	if status == LoadSuccess {
		r.LastLoadTimestamp.Set(float64(time.Now().Unix()))
	}
}

// SnapshotSizes are the gauges published for the current snapshot
type SnapshotSizes struct {
	Techniques    int
	Tactics       int
	Groups        int
	Mitigations   int
	Relationships int
	Dropped       int
	Warnings      int
}

// UpdateSnapshot publishes the sizes of a newly installed snapshot
func (r *Registry) UpdateSnapshot(s SnapshotSizes) {
	r.SnapshotEntities.WithLabelValues("technique").Set(float64(s.Techniques))
	r.SnapshotEntities.WithLabelValues("tactic").Set(float64(s.Tactics))
	r.SnapshotEntities.WithLabelValues("group").Set(float64(s.Groups))
	r.SnapshotEntities.WithLabelValues("mitigation").Set(float64(s.Mitigations))
	r.SnapshotRelations.Set(float64(s.Relationships))
	r.DroppedRelationships.Set(float64(s.Dropped))
	r.SnapshotWarnings.Set(float64(s.Warnings))
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry:          r.registry,
		EnableOpenMetrics: true,
	})
}
