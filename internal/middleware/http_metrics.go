// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /posts/123 to /posts/{id}.
func normalizePath(path string) string {
	staticRoutes := map[string]bool{
		"/":               true,
		"/posts":          true,
		"/feed/discovery": true,
		"/feed/home":      true,
		"/auth/login":     true,
		"/auth/refresh":   true,
		"/me":             true,
		"/health":         true,
		"/ready":          true,
		"/metrics":        true,
	}

	if staticRoutes[path] {
		return path
	}

	// /posts/{id} and /posts/{id}/like
	if strings.HasPrefix(path, "/posts/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "like" {
			return "/posts/{id}/like"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/posts/{id}"
		}
	}

	// /users/{id}, /users/{id}/follow, /users/{id}/posts
	if strings.HasPrefix(path, "/users/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && (parts[3] == "follow" || parts[3] == "posts") {
			return "/users/{id}/" + parts[3]
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/users/{id}"
		}
	}

	// Fallback: return as-is for unknown patterns so new routes still
	// produce metrics.
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap exposes the wrapped writer so outer middleware, such as the access
// logger, still receives handler-derived context through this wrapper.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, response size, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid
// drowning out the interesting series.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				mrw.size,
			)
		})
	}
}
