// metrics.go — Prometheus HTTP метрики Drive Module.
// Регистрирует метрики: dm_http_requests_total, dm_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Drive Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Drive Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// pathRoutes — шаблоны путей с переменными сегментами.
// "*" в шаблоне совпадает с любым одним сегментом.
var pathRoutes = []string{
	"/api/v1/folders/*",
	"/api/v1/files/*",
	"/api/v1/files/*/favorite",
	"/api/v1/files/*/trash",
	"/api/v1/files/*/restore",
	"/api/v1/files/*/content",
	"/api/v1/shares/*",
	"/api/v1/public/shares/*",
	"/api/v1/public/shares/*/files/*/content",
}

// normalizePath заменяет идентификаторы и токены в пути на {id}
// для предотвращения взрывного роста кардинальности метрик.
// /api/v1/files/a1b2c3d4-.../trash → /api/v1/files/{id}/trash
func normalizePath(path string) string {
	// Статические пути совпадают сами с собой, включая /api/v1/files/favorites
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/folders", "/api/v1/folders/contents",
		"/api/v1/files", "/api/v1/files/favorites",
		"/api/v1/trash", "/api/v1/search",
		"/api/v1/storage/stats", "/api/v1/storage/audit", "/api/v1/shares":
		return path
	}

	segments := strings.Split(path, "/")
	for _, route := range pathRoutes {
		pattern := strings.Split(route, "/")
		if len(pattern) != len(segments) {
			continue
		}
		matched := true
		for i, p := range pattern {
			if p != "*" && p != segments[i] {
				matched = false
				break
			}
		}
		if matched {
			return strings.ReplaceAll(route, "*", "{id}")
		}
	}
	return "other"
}
