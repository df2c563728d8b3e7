// Package middleware provides the HTTP middleware for the attackgraph tool
// server.
//
// Each middleware has the form func(http.Handler) http.Handler, so they
// compose with Chain:
//
//	handler := middleware.Chain(mux,
//		middleware.PanicRecovery(logger),
//		middleware.RequestID(),
//		middleware.AccessLog(logger),
//		middleware.Metrics(registry, "/mcp", "/healthz"),
//		middleware.SecurityHeaders(),
//	)
//
// The first middleware listed is the outermost.
package middleware

import (
	"encoding/json"
	"net/http"
)

// Middleware wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain applies mws to h so that mws[0] runs first
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// writeError answers with a JSON body of the form {"error": message}
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
