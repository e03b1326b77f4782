package tasks

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
	httperrors "github.com/dropDatabas3/hellotasks/internal/http/errors"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

// mapError traduce errores de dominio a AppError. Lo no reconocido es 500 genérico.
func mapError(err error) *httperrors.AppError {
	switch {
	case repository.IsNotFound(err):
		return httperrors.ErrNotFound
	case repository.IsInvalidInput(err):
		detail := strings.TrimPrefix(err.Error(), repository.ErrInvalidInput.Error()+": ")
		return httperrors.ErrValidation.WithDetail(detail)
	case repository.IsConflict(err):
		return httperrors.ErrConflict
	default:
		return httperrors.ErrInternalServerError.WithCause(err)
	}
}

// writeServiceError loguea con detalle solo los 5xx; los 4xx ya quedan en el log de acceso.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	appErr := mapError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
	}
	httperrors.WriteError(w, appErr)
}
