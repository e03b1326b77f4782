package middlewares

import (
	"context"

	jwtx "github.com/dropDatabas3/hellotasks/internal/jwt"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxIdentityKey guarda la identidad verificada del bearer token
	ctxIdentityKey ctxKey = "identity"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// =================================================================================
// CONTEXT SETTERS
// =================================================================================

// WithIdentity inyecta la identidad verificada en el contexto.
// Solo RequireAuth debería llamarlo fuera de tests.
func WithIdentity(ctx context.Context, id *jwtx.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// =================================================================================
// CONTEXT GETTERS
// =================================================================================

// GetIdentity obtiene la identidad verificada.
// Retorna nil si la ruta no pasó por RequireAuth.
func GetIdentity(ctx context.Context) *jwtx.Identity {
	if v := ctx.Value(ctxIdentityKey); v != nil {
		if id, ok := v.(*jwtx.Identity); ok {
			return id
		}
	}
	return nil
}

// GetSubject obtiene el sub verificado. Cadena vacía si no hay identidad.
func GetSubject(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.Subject
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
