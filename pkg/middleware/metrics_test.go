package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsCountsRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	handler := Metrics(&MetricsConfig{
		Registry:     registry,
		Namespace:    "verve",
		EnableQPS:    true,
		EnableErrors: true,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/broken", nil))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := map[string]bool{}
	for _, family := range families {
		found[family.GetName()] = true
	}
	if !found["verve_requests_total"] {
		t.Errorf("Expected the request counter, got %v", found)
	}
	if !found["verve_request_errors_total"] {
		t.Errorf("Expected the error counter, got %v", found)
	}
}

func TestMetricsRegistrationIsRebuildSafe(t *testing.T) {
	registry := prometheus.NewRegistry()
	config := &MetricsConfig{Registry: registry, EnableQPS: true, EnableLatency: true}

	// Building twice with the same registry must reuse the collectors
	// instead of panicking on duplicate registration.
	Metrics(config)
	Metrics(config)
}

func TestMetricsHandlerServesExposition(t *testing.T) {
	registry := prometheus.NewRegistry()
	handler := Metrics(&MetricsConfig{Registry: registry, EnableQPS: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from the exposition endpoint, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("Expected exposition output")
	}
}
