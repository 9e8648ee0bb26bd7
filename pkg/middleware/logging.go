package middleware

import (
	"net/http"
	"time"

	"github.com/verve-web/verve/pkg/common"
	"go.uber.org/zap"
)

// Logging is a middleware that logs HTTP requests with method, path, status
// code, and duration. Normal requests log at Debug to avoid log spam; client
// errors and slow requests log at Warn, server errors at Error. If
// enableTraceID is true, the trace ID is included when present.
func Logging(logger *zap.Logger, enableTraceID bool) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", duration),
			}
			if enableTraceID {
				if traceID := GetTraceID(r); traceID != "" {
					fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
				}
			}

			switch {
			case rw.statusCode >= 500:
				logger.Error("Server error", fields...)
			case rw.statusCode >= 400:
				logger.Warn("Client error", fields...)
			case duration > 1*time.Second:
				logger.Warn("Slow request", fields...)
			default:
				logger.Debug("Request", fields...)
			}
		})
	}
}
