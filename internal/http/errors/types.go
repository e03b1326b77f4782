package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError es el error que un handler devuelve al cliente.
// Err queda solo para logs: WriteError nunca lo serializa.
type AppError struct {
	Code       string
	Message    string
	Detail     string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail devuelve una copia con Detail; el catálogo no se muta.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause devuelve una copia que envuelve err.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// FromError busca un *AppError en la cadena de err; si no hay, es un 500 genérico
// que conserva err como causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

func define(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Request mal formado.
var (
	ErrInvalidJSON          = define(http.StatusBadRequest, "INVALID_JSON", "El cuerpo de la solicitud no es un JSON válido.")
	ErrUnsupportedMediaType = define(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type debe ser application/json.")
	ErrValidation           = define(http.StatusBadRequest, "VALIDATION_FAILED", "Uno o más campos son inválidos.")
	ErrInvalidParameter     = define(http.StatusBadRequest, "INVALID_PARAMETER", "Un parámetro de query es inválido.")
	ErrBodyTooLarge         = define(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "El cuerpo de la solicitud es demasiado grande.")
)

// Gate de autenticación. El mensaje nunca dice qué verificación falló.
var (
	ErrUnauthorized = define(http.StatusUnauthorized, "UNAUTHORIZED", "Se requiere un bearer token.")
	ErrForbidden    = define(http.StatusForbidden, "FORBIDDEN", "El token no es válido para esta API.")
)

// Recursos y rutas. Una tarea ajena también es NOT_FOUND.
var (
	ErrNotFound         = define(http.StatusNotFound, "NOT_FOUND", "La tarea no existe.")
	ErrRouteNotFound    = define(http.StatusNotFound, "ROUTE_NOT_FOUND", "La ruta solicitada no existe.")
	ErrMethodNotAllowed = define(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método HTTP no permitido para esta ruta.")
	ErrConflict         = define(http.StatusConflict, "CONFLICT", "La operación entra en conflicto con el estado actual.")
)

var (
	ErrRateLimitExceeded   = define(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Demasiadas solicitudes. Intente más tarde.")
	ErrInternalServerError = define(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Ocurrió un error interno.")
)
