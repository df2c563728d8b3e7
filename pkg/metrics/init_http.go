package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Paths are bounded by the HTTP middleware to the mounted routes plus "other"
func (r *Registry) initHTTPMetrics() {
	f := promauto.With(r.registry)

	r.HTTPRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "attackgraph_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "path", "status"})

	// streamed tool sessions hold a request open, hence the long tail
	r.HTTPRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attackgraph_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"path"})
}
