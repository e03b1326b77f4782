package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// registerHealthRoutes registra probes y /metrics. Públicos, sin auth.
func registerHealthRoutes(r chi.Router, d Deps) {
	c := d.Controllers.Health

	r.Get("/healthz", c.Health.Healthz)
	r.Get("/readyz", c.Health.Readyz)

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
}
