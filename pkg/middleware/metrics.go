package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/verve-web/verve/pkg/common"
)

// MetricsConfig defines the configuration for Prometheus metrics.
type MetricsConfig struct {
	// Registry receives the collectors. Defaults to the process-wide
	// prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace for metric names.
	Namespace string

	// Subsystem for metric names.
	Subsystem string

	EnableLatency    bool // Collect request latency histograms
	EnableThroughput bool // Collect response byte counters
	EnableQPS        bool // Collect request counters
	EnableErrors     bool // Collect error counters
}

// Metrics creates a middleware that records Prometheus metrics for each
// request, labeled by method, path, and status code.
func Metrics(config *MetricsConfig) common.Middleware {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"method", "path", "status"}

	var latency *prometheus.HistogramVec
	if config.EnableLatency {
		latency = registerHistogramVec(reg, prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, labels)
	}
	var throughput *prometheus.CounterVec
	if config.EnableThroughput {
		throughput = registerCounterVec(reg, prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "response_bytes_total",
			Help:      "Total bytes written in HTTP responses.",
		}, labels)
	}
	var requests *prometheus.CounterVec
	if config.EnableQPS {
		requests = registerCounterVec(reg, prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "requests_total",
			Help:      "Total HTTP requests served.",
		}, labels)
	}
	var errorsVec *prometheus.CounterVec
	if config.EnableErrors {
		errorsVec = registerCounterVec(reg, prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "request_errors_total",
			Help:      "Total HTTP requests answered with a 4xx or 5xx status.",
		}, labels)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			status := strconv.Itoa(rw.statusCode)
			if latency != nil {
				latency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
			}
			if throughput != nil {
				throughput.WithLabelValues(r.Method, r.URL.Path, status).Add(float64(rw.bytesWritten))
			}
			if requests != nil {
				requests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			}
			if errorsVec != nil && rw.statusCode >= 400 {
				errorsVec.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			}
		})
	}
}

// MetricsHandler returns an HTTP handler exposing the gathered metrics.
// A nil gatherer exposes the process-wide default.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// registerCounterVec registers the vector, reusing an existing collector when
// the application stack is rebuilt with the same registry.
func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return vec
}

func registerHistogramVec(reg prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
		panic(err)
	}
	return vec
}

// metricsRecorder captures status code and bytes written for metrics.
type metricsRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *metricsRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *metricsRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *metricsRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
