package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/feed/discovery", "/feed/discovery"},
		{"/feed/home", "/feed/home"},
		{"/posts", "/posts"},
		{"/posts/abc-123", "/posts/{id}"},
		{"/posts/abc-123/like", "/posts/{id}/like"},
		{"/users/u-9", "/users/{id}"},
		{"/users/u-9/follow", "/users/{id}/follow"},
		{"/users/u-9/posts", "/users/{id}/posts"},
		{"/auth/login", "/auth/login"},
		{"/unknown/route", "/unknown/route"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetrics_RecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/posts/abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	count := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/posts/{id}", "200"))
	if count != 1 {
		t.Errorf("http_requests_total = %f, want 1", count)
	}
}

func TestHTTPMetrics_SkipsHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	count := testutil.CollectAndCount(metrics.httpRequestsTotal)
	if count != 0 {
		t.Errorf("expected no series for health endpoints, got %d", count)
	}
}
