package tasks

import (
	"net/http"

	dto "github.com/dropDatabas3/hellotasks/internal/http/dto/tasks"
	httperrors "github.com/dropDatabas3/hellotasks/internal/http/errors"
	"github.com/dropDatabas3/hellotasks/internal/http/helpers"
	mw "github.com/dropDatabas3/hellotasks/internal/http/middlewares"
	svc "github.com/dropDatabas3/hellotasks/internal/http/services/tasks"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

// AttachmentsController maneja /v1/tasks/attachments/*
type AttachmentsController struct {
	service svc.AttachmentService
}

// NewAttachmentsController crea el controller. service nil = feature apagada (404).
func NewAttachmentsController(service svc.AttachmentService) *AttachmentsController {
	return &AttachmentsController{service: service}
}

// Enabled reporta si hay storage configurado.
func (c *AttachmentsController) Enabled() bool { return c != nil && c.service != nil }

// UploadURL maneja POST /v1/tasks/attachments/upload-url
func (c *AttachmentsController) UploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("AttachmentsController.UploadURL"),
	)

	if !c.Enabled() {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
		return
	}

	var req dto.UploadURLRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.ValidateStruct(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	res, err := c.service.IssueUploadURL(ctx, mw.GetSubject(ctx), req.FileName, req.ContentType)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, http.StatusOK, res)
}
