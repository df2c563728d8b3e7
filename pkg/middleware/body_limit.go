package middleware

import (
	"fmt"
	"net/http"
)

// BodySizeLimit rejects request bodies larger than maxBytes. A declared
// Content-Length is checked up front; chunked bodies are capped while read.
// maxBytes <= 0 disables the limit.
func BodySizeLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large: limit is %d bytes", maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
