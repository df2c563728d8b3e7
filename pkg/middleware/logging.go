package middleware

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
)

// AccessLog logs one line per request with its status and latency. 5xx
// responses are logged at error level.
func AccessLog(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", sw.statusCode),
				logging.Int("bytes", sw.bytesWritten),
				logging.Latency(time.Since(start)),
			}
			if id := GetRequestID(r); id != "" {
				fields = append(fields, logging.RequestID(id))
			}
			if sw.statusCode >= http.StatusInternalServerError {
				logger.Error("http request", fields...)
			} else {
				logger.Debug("http request", fields...)
			}
		})
	}
}
