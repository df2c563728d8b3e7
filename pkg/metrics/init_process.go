package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initProcessMetrics() {
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	promauto.With(r.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "attackgraph_uptime_seconds",
		Help: "Seconds since the process started serving",
	}, func() float64 {
		return time.Since(r.startTime).Seconds()
	})
}
