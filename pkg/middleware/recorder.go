package middleware

import (
	"net/http"
)

// statusRecorder wraps http.ResponseWriter to capture the status code and
// whether the response has started. Boundary layers use it to decide whether
// an error handler may still write a response.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if !rw.wrote {
		rw.statusCode = statusCode
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
