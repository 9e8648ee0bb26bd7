package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTraceMiddlewareAssignsUniqueIDs(t *testing.T) {
	var ids []string
	handler := TraceMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, GetTraceID(r))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(ids) != 2 || ids[0] == "" || ids[1] == "" {
		t.Fatalf("Expected two trace IDs, got %v", ids)
	}
	if ids[0] == ids[1] {
		t.Error("Expected distinct trace IDs per request")
	}
}

func TestGetTraceIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetTraceID(req); got != "" {
		t.Errorf("Expected an empty trace ID, got %q", got)
	}
}
