// Package router arma el árbol de rutas chi y la cadena global de middlewares.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellotasks/internal/http/controllers"
	httperrors "github.com/dropDatabas3/hellotasks/internal/http/errors"
	mw "github.com/dropDatabas3/hellotasks/internal/http/middlewares"
	"github.com/dropDatabas3/hellotasks/internal/metrics"
	"github.com/dropDatabas3/hellotasks/internal/rate"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	Controllers *controllers.Controllers

	// Auth
	Verifier mw.TokenVerifier

	// Observabilidad (nil = sin /metrics)
	Metrics *metrics.Metrics

	// Rate limiting global (nil = deshabilitado)
	Limiter rate.Limiter
	RateKey mw.RateKeyFunc

	// Límite propio de upload-url, por subject (nil o UploadLimit 0 = sin límite extra)
	RouteLimiter rate.MultiLimiter
	UploadLimit  int
	UploadWindow time.Duration

	CORSOrigins []string
}

// publicPaths no consumen rate limit (probes de orquestador y scraping).
var publicPaths = []string{"/healthz", "/readyz", "/metrics"}

// New registra todas las rutas y devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Orden: recover es el más externo para capturar panics de todo lo demás.
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORSOrigins),
		mw.WithLogging(),
		mw.WithMetrics(d.Metrics),
		mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:   d.Limiter,
			KeyFunc:   d.RateKey,
			Whitelist: publicPaths,
			Observer:  d.Metrics,
		}),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	registerHealthRoutes(r, d)
	registerTaskRoutes(r, d)

	return r
}
