package health

import (
	"fmt"
	"runtime"

	"github.com/dd0wney/cluso-attackgraph/pkg/loader"
)

// LoaderCheck reports whether a snapshot is being served. A failed reload
// that left the previous snapshot in place is degraded, not unhealthy.
func LoaderCheck(status func() loader.Status) CheckFunc {
	return func() Check {
		st := status()
		check := Check{
			Name: "knowledge_base",
			Details: map[string]any{
				"state":    string(st.State),
				"source":   st.Source,
				"loads":    st.Loads,
				"failures": st.Failures,
			},
		}
		if st.SnapshotID != "" {
			check.Details["snapshot_id"] = st.SnapshotID
		}
		if st.LoadedAt != nil {
			check.Details["loaded_at"] = *st.LoadedAt
		}

		switch {
		case st.SnapshotID == "" && st.State == loader.StateLoading:
			check.Status = StatusUnhealthy
			check.Message = "Initial load in progress"
		case st.SnapshotID == "":
			check.Status = StatusUnhealthy
			check.Message = "Not loaded"
			if st.LastError != "" {
				check.Message = "Load failed: " + st.LastError
			}
		case st.LastError != "":
			check.Status = StatusDegraded
			check.Message = "Serving previous snapshot after failed reload: " + st.LastError
		default:
			check.Status = StatusHealthy
			check.Message = "Snapshot ready"
		}
		return check
	}
}

// DataQualityCheck degrades when more than maxDropRatio of the bundle's
// relationships were dropped as dangling.
func DataQualityCheck(counts func() (kept, dropped int), maxDropRatio float64) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "data_quality",
			Details: make(map[string]any),
		}

		kept, dropped := counts()
		total := kept + dropped
		ratio := 0.0
		if total > 0 {
			ratio = float64(dropped) / float64(total)
		}

		check.Details["relationships"] = kept
		check.Details["dropped_relationships"] = dropped
		check.Details["drop_ratio"] = ratio

		if ratio > maxDropRatio {
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("%.1f%% of relationships dropped", ratio*100)
		} else {
			check.Status = StatusHealthy
			check.Message = "Relationships resolved"
		}
		return check
	}
}

// RuntimeMemory reads heap usage from the Go runtime
func RuntimeMemory() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc, m.Sys
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := 0.0
		if sys > 0 {
			usagePercent = float64(alloc) / float64(sys) * 100
		}

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
