package middlewares

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/hellotasks/internal/http/errors"
	jwtx "github.com/dropDatabas3/hellotasks/internal/jwt"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARES
// =================================================================================

// TokenVerifier valida el valor crudo del header Authorization.
type TokenVerifier interface {
	Verify(ctx context.Context, authorization string) (*jwtx.Identity, error)
}

// AuthRejectionObserver recibe el motivo de cada rechazo (métricas).
type AuthRejectionObserver interface {
	ObserveAuthRejection(reason string)
}

// RequireAuth es el gate de las rutas protegidas. Ningún handler corre si falla.
//
//   - sin bearer token           -> 401 + WWW-Authenticate
//   - token malformado, kid desconocido, firma/claims inválidos -> 403 genérico
//
// El motivo concreto solo va al log del operador y a la métrica auth_rejections_total.
func RequireAuth(v TokenVerifier, obs AuthRejectionObserver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				reason := jwtx.Reason(err)
				if obs != nil {
					obs.ObserveAuthRejection(reason)
				}
				logger.From(r.Context()).Warn("request rejected by auth gate",
					logger.Layer("middleware"),
					logger.Op("RequireAuth"),
					logger.Reason(reason),
					logger.Err(err),
				)

				if stderrors.Is(err, jwtx.ErrMissingToken) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
					errors.WriteError(w, errors.ErrUnauthorized)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, errors.ErrForbidden)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.Subject(id.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
