package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/hellotasks/internal/http/middlewares"
)

// registerTaskRoutes registra /v1/tasks. Todo lo que cuelga de acá pasa por RequireAuth:
// sin identidad verificada no corre ningún handler.
func registerTaskRoutes(r chi.Router, d Deps) {
	c := d.Controllers.Tasks

	r.Route("/v1/tasks", func(r chi.Router) {
		r.Use(mw.Protected(d.Verifier, d.Metrics))

		r.Get("/", c.Tasks.List)
		r.Post("/", c.Tasks.Create)

		if c.Attachments.Enabled() {
			r.With(mw.WithRouteRateLimit(mw.RouteRateLimitConfig{
				Limiter:  d.RouteLimiter,
				Limit:    d.UploadLimit,
				Window:   d.UploadWindow,
				KeyFunc:  mw.SubjectRateKey,
				Scope:    "upload_url",
				Observer: d.Metrics,
			})).Post("/attachments/upload-url", c.Attachments.UploadURL)
		}

		r.Get("/{id}", c.Tasks.Get)
		r.Patch("/{id}", c.Tasks.Update)
		r.Put("/{id}", c.Tasks.Update)
		r.Delete("/{id}", c.Tasks.Delete)
	})
}
