package jwt

import "errors"

// Clasificación de rechazos del gate de autenticación.
// Los detalles (qué check falló) viajan envueltos con %w y solo se loguean;
// al cliente se le responde con 401/403 genéricos.
var (
	// ErrMissingToken: no hay "Authorization: Bearer <token>".
	ErrMissingToken = errors.New("missing bearer token")

	// ErrMalformedToken: el token no es un JWS compacto decodificable o no declara kid.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnknownKey: el kid declarado no está en el cache de claves.
	ErrUnknownKey = errors.New("unknown signing key")

	// ErrInvalidToken: firma, algoritmo o claims (exp, nbf, iss, aud) inválidos.
	ErrInvalidToken = errors.New("invalid token")
)

// Reason devuelve una etiqueta estable para logs y métricas.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrUnknownKey):
		return "unknown_key"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}
