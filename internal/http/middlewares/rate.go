package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/hellotasks/internal/http/errors"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
	"github.com/dropDatabas3/hellotasks/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// RateLimitObserver recibe cada 429 (métricas).
type RateLimitObserver interface {
	ObserveRateLimited(scope string)
}

// remoteIP devuelve la IP del peer TCP.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// IPRateKey genera una clave basada en IP. Con trustProxy usa el primer
// X-Forwarded-For (solo si hay un proxy confiable delante que lo sobrescribe).
func IPRateKey(trustProxy bool) RateKeyFunc {
	return func(r *http.Request) string {
		if trustProxy {
			if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
				first, _, _ := strings.Cut(xf, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return "ip:" + ip
				}
			}
		}
		return "ip:" + remoteIP(r)
	}
}

// SubjectRateKey usa el subject verificado; cae a IP si la ruta no tiene identidad.
func SubjectRateKey(r *http.Request) string {
	if sub := GetSubject(r.Context()); sub != "" {
		return "sub:" + sub + "|" + r.URL.Path
	}
	return "ip:" + remoteIP(r) + "|" + r.URL.Path
}

// RateLimitConfig configura el rate limiting global.
type RateLimitConfig struct {
	Limiter   rate.Limiter
	KeyFunc   RateKeyFunc
	Whitelist []string // Paths que se excluyen del rate limiting (ej: /healthz)
	Observer  RateLimitObserver
}

// WithRateLimit crea un middleware de rate limiting global.
// Si el limiter falla (ej: Redis caído) el request pasa: fail-open.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPRateKey(false)
	}
	whitelistSet := make(map[string]struct{}, len(cfg.Whitelist))
	for _, p := range cfg.Whitelist {
		whitelistSet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := whitelistSet[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if enforce(w, r, res, err, "global", cfg.Observer) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RouteRateLimitConfig aplica un límite propio a un grupo de rutas.
type RouteRateLimitConfig struct {
	Limiter  rate.MultiLimiter
	Limit    int
	Window   time.Duration
	KeyFunc  RateKeyFunc
	Scope    string
	Observer RateLimitObserver
}

// WithRouteRateLimit limita por ruta. Va después de RequireAuth para poder usar el subject.
func WithRouteRateLimit(cfg RouteRateLimitConfig) Middleware {
	if cfg.Limiter == nil || cfg.Limit <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = SubjectRateKey
	}
	if cfg.Scope == "" {
		cfg.Scope = "route"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.AllowWithLimits(r.Context(), cfg.KeyFunc(r), cfg.Limit, cfg.Window)
			if enforce(w, r, res, err, cfg.Scope, cfg.Observer) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// enforce escribe headers / 429. Devuelve true si el request debe continuar.
func enforce(w http.ResponseWriter, r *http.Request, res rate.Result, err error, scope string, obs RateLimitObserver) bool {
	if err != nil {
		logger.From(r.Context()).Warn("rate limiter unavailable, allowing request",
			logger.Component("rate"), logger.String("scope", scope), logger.Err(err))
		return true
	}

	h := w.Header()
	if res.Limit > 0 {
		h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	}
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	if res.WindowTTL > 0 {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.WindowTTL).Unix(), 10))
	}

	if res.Allowed {
		return true
	}
	if res.RetryAfter > 0 {
		secs := int(res.RetryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		h.Set("Retry-After", strconv.Itoa(secs))
	}
	if obs != nil {
		obs.ObserveRateLimited(scope)
	}
	errors.WriteError(w, errors.ErrRateLimitExceeded)
	return false
}
