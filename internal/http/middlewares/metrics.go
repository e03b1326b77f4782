package middlewares

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellotasks/internal/metrics"
)

// WithMetrics instrumenta requests HTTP con métricas Prometheus (contadores, latencia, inflight).
// El label path es el patrón de chi ("/v1/tasks/{id}") para acotar cardinalidad.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inflightPath := metrics.NormalizePath(r.URL.Path)
			m.InflightInc(r.Method, inflightPath)
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				m.InflightDec(r.Method, inflightPath)
				m.ObserveHTTP(r.Method, routeLabel(r), rec.code(), time.Since(start))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return metrics.NormalizePath(r.URL.Path)
}
