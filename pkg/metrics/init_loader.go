package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLoadMetrics() {
	r.LoadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "attackgraph_loads_total",
			Help: "Total number of knowledge-base loads by status",
		},
		[]string{"status"},
	)

	r.LoadDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attackgraph_load_duration_seconds",
			Help:    "Time to fetch, parse and index a bundle",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	r.LastLoadTimestamp = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "attackgraph_last_load_timestamp_seconds",
			Help: "Unix time of the last successful load",
		},
	)

	r.SnapshotEntities = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attackgraph_snapshot_entities",
			Help: "Entities in the published snapshot by kind",
		},
		[]string{"kind"},
	)

	r.SnapshotRelations = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "attackgraph_snapshot_relationships",
			Help: "Relationships indexed in the published snapshot",
		},
	)

	r.DroppedRelationships = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "attackgraph_dropped_relationships",
			Help: "Relationships dropped from the published snapshot for dangling references",
		},
	)

	r.SnapshotWarnings = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "attackgraph_snapshot_warnings",
			Help: "Partial-data warnings recorded while building the published snapshot",
		},
	)
}
