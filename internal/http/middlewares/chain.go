package middlewares

import "net/http"

// Middleware decora un http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain compone mws en un solo Middleware. El primero de la lista es el más externo:
// Chain(A, B, C)(h) ejecuta A -> B -> C -> h. Los nil se ignoran.
func Chain(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				h = mws[i](h)
			}
		}
		return h
	}
}

// Protected es la cadena de toda ruta con datos de usuario: identidad verificada
// y respuesta no cacheable.
func Protected(v TokenVerifier, obs AuthRejectionObserver) Middleware {
	return Chain(RequireAuth(v, obs), WithNoStore())
}
