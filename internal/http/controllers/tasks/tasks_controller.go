// Package tasks contiene controllers para /v1/tasks.
package tasks

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
	dto "github.com/dropDatabas3/hellotasks/internal/http/dto/tasks"
	httperrors "github.com/dropDatabas3/hellotasks/internal/http/errors"
	"github.com/dropDatabas3/hellotasks/internal/http/helpers"
	mw "github.com/dropDatabas3/hellotasks/internal/http/middlewares"
	svc "github.com/dropDatabas3/hellotasks/internal/http/services/tasks"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

// TasksController maneja las rutas /v1/tasks
type TasksController struct {
	service svc.TaskService
}

// NewTasksController crea un nuevo controller de tareas.
func NewTasksController(service svc.TaskService) *TasksController {
	return &TasksController{service: service}
}

// List maneja GET /v1/tasks
func (c *TasksController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("TasksController.List"),
	)

	limit, err := helpers.QueryInt(r, "limit", svc.DefaultListLimit, 1, svc.MaxListLimit)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	offset, err := helpers.QueryInt(r, "offset", 0, 0, 1<<20)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	completed, err := helpers.QueryBool(r, "completed")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	items, err := c.service.List(ctx, mw.GetSubject(ctx), repository.ListTasksFilter{
		Completed: completed,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	resp := dto.ListTasksResponse{
		Items:  make([]dto.TaskResponse, 0, len(items)),
		Limit:  limit,
		Offset: offset,
	}
	for _, t := range items {
		resp.Items = append(resp.Items, toTaskResponse(t))
	}
	resp.Count = len(resp.Items)

	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Create maneja POST /v1/tasks
func (c *TasksController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("TasksController.Create"),
	)

	var req dto.CreateTaskRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.ValidateStruct(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	task, err := c.service.Create(ctx, mw.GetSubject(ctx), req)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	w.Header().Set("Location", "/v1/tasks/"+task.ID)
	helpers.WriteJSON(w, http.StatusCreated, toTaskResponse(*task))
}

// Get maneja GET /v1/tasks/{id}
func (c *TasksController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("TasksController.Get"),
		logger.TaskID(id),
	)

	task, err := c.service.Get(ctx, mw.GetSubject(ctx), id)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toTaskResponse(*task))
}

// Update maneja PATCH/PUT /v1/tasks/{id}. Ambos son parciales.
func (c *TasksController) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("TasksController.Update"),
		logger.TaskID(id),
	)

	var req dto.PatchTaskRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := helpers.ValidateStruct(req); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	task, err := c.service.Update(ctx, mw.GetSubject(ctx), id, req)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toTaskResponse(*task))
}

// Delete maneja DELETE /v1/tasks/{id}
func (c *TasksController) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("TasksController.Delete"),
		logger.TaskID(id),
	)

	if err := c.service.Delete(ctx, mw.GetSubject(ctx), id); err != nil {
		writeServiceError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toTaskResponse(t repository.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		DueDate:       t.DueDate,
		Priority:      string(t.Priority),
		Completed:     t.Completed,
		AttachmentURL: t.AttachmentURL,
		CreatedAt:     t.CreatedAt.UTC(),
		UpdatedAt:     t.UpdatedAt.UTC(),
	}
}
