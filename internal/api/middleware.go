package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/metrics"
)

// withOriginVerify rejects requests lacking the x-origin-verify header when
// an origin secret is configured. A fronting CDN injects the header, so
// direct API Gateway calls are refused.
func (s *Server) withOriginVerify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.originSecret == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("x-origin-verify") != s.originSecret {
			log.Warn().Str("path", r.URL.Path).Msg("Blocked request: missing or invalid x-origin-verify header")
			httpError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// withMetrics emits RequestLatencyMs and RequestCount per request with an
// Endpoint dimension.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		metrics.New(s.namespace).To(s.metricsOut).
			Dimension("Endpoint", normalizeEndpoint(r.URL.Path)).
			Metric("RequestLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
			Count("RequestCount").
			Property("method", r.Method).
			Property("statusCode", sr.statusCode).
			Flush()
	})
}

// normalizeEndpoint maps request paths to low-cardinality endpoint names.
func normalizeEndpoint(path string) string {
	switch {
	case path == "/api/health", path == "/api/publish", path == "/api/webhook":
		return path
	case strings.HasPrefix(path, runsPrefix) && strings.HasSuffix(path, "/records"):
		return "/api/runs/{id}/records"
	default:
		return "other"
	}
}
