package health

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler returns an HTTP handler for the health check endpoint.
// Degraded still answers 200.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, hc.Check(), StatusDegraded)
	}
}

// ReadinessHandler returns an HTTP handler for readiness checks. Readiness is
// binary: anything but healthy answers 503.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, hc.CheckReadiness(), StatusHealthy)
	}
}

// LivenessHandler returns an HTTP handler for liveness checks
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, hc.CheckLiveness(), StatusHealthy)
	}
}

// writeResponse answers 200 when the status is healthy or equal to the
// tolerated status, 503 otherwise
func writeResponse(w http.ResponseWriter, response Response, tolerated Status) {
	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusHealthy || response.Status == tolerated {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}
