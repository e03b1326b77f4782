package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
	dto "github.com/dropDatabas3/hellotasks/internal/http/dto/tasks"
	"github.com/dropDatabas3/hellotasks/internal/http/helpers"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000

	DefaultListLimit = 50
	MaxListLimit     = 100
)

// errNoSubject: el controller llamó sin pasar por RequireAuth. Es un bug, no un 4xx.
var errNoSubject = errors.New("tasks: empty subject")

// TaskService define las operaciones sobre tareas del subject autenticado.
// Toda operación filtra por subject: nunca se ve ni se toca una tarea ajena.
type TaskService interface {
	List(ctx context.Context, subject string, f repository.ListTasksFilter) ([]repository.Task, error)
	Get(ctx context.Context, subject, id string) (*repository.Task, error)
	Create(ctx context.Context, subject string, req dto.CreateTaskRequest) (*repository.Task, error)
	Update(ctx context.Context, subject, id string, req dto.PatchTaskRequest) (*repository.Task, error)
	Delete(ctx context.Context, subject, id string) error
}

type taskService struct {
	repo repository.TaskRepository
}

// NewTaskService crea un nuevo service de tareas.
func NewTaskService(repo repository.TaskRepository) TaskService {
	return &taskService{repo: repo}
}

const componentTasks = "tasks"

func (s *taskService) List(ctx context.Context, subject string, f repository.ListTasksFilter) ([]repository.Task, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentTasks),
		logger.Op("List"),
	)
	if subject == "" {
		return nil, errNoSubject
	}

	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, err := s.repo.List(ctx, subject, f)
	if err != nil {
		log.Error("failed to list tasks", logger.Err(err))
		return nil, err
	}

	log.Debug("tasks listed", logger.Count(len(items)))
	return items, nil
}

func (s *taskService) Get(ctx context.Context, subject, id string) (*repository.Task, error) {
	if subject == "" {
		return nil, errNoSubject
	}
	return s.repo.Get(ctx, subject, id)
}

func (s *taskService) Create(ctx context.Context, subject string, req dto.CreateTaskRequest) (*repository.Task, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentTasks),
		logger.Op("Create"),
	)
	if subject == "" {
		return nil, errNoSubject
	}

	in := repository.CreateTaskInput{
		Description: strings.TrimSpace(req.Description),
		Priority:    repository.PriorityMedium,
		Completed:   req.Completed,
	}

	title, err := normalizeTitle(req.Title)
	if err != nil {
		return nil, err
	}
	in.Title = title

	if utf8.RuneCountInString(in.Description) > MaxDescriptionLen {
		return nil, invalidf("description must be at most %d characters", MaxDescriptionLen)
	}
	if p := strings.TrimSpace(req.Priority); p != "" {
		if in.Priority, err = parsePriority(p); err != nil {
			return nil, err
		}
	}
	if d := strings.TrimSpace(req.DueDate); d != "" {
		due, err := ParseDueDate(d)
		if err != nil {
			return nil, err
		}
		in.DueDate = &due
	}
	if in.AttachmentURL, err = normalizeAttachmentURL(req.AttachmentURL); err != nil {
		return nil, err
	}

	task, err := s.repo.Create(ctx, subject, in)
	if err != nil {
		log.Error("failed to create task", logger.Err(err))
		return nil, err
	}

	log.Info("task created", logger.TaskID(task.ID))
	return task, nil
}

func (s *taskService) Update(ctx context.Context, subject, id string, req dto.PatchTaskRequest) (*repository.Task, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentTasks),
		logger.Op("Update"),
		logger.TaskID(id),
	)
	if subject == "" {
		return nil, errNoSubject
	}

	patch, err := buildPatch(req)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.repo.Get(ctx, subject, id)
	}

	task, err := s.repo.Update(ctx, subject, id, patch)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("failed to update task", logger.Err(err))
		}
		return nil, err
	}

	log.Info("task updated")
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, subject, id string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentTasks),
		logger.Op("Delete"),
		logger.TaskID(id),
	)
	if subject == "" {
		return errNoSubject
	}

	if err := s.repo.Delete(ctx, subject, id); err != nil {
		if !repository.IsNotFound(err) {
			log.Error("failed to delete task", logger.Err(err))
		}
		return err
	}

	log.Info("task deleted")
	return nil
}

func buildPatch(req dto.PatchTaskRequest) (repository.TaskPatch, error) {
	var p repository.TaskPatch

	if req.Title != nil {
		title, err := normalizeTitle(*req.Title)
		if err != nil {
			return p, err
		}
		p.Title = &title
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if utf8.RuneCountInString(d) > MaxDescriptionLen {
			return p, invalidf("description must be at most %d characters", MaxDescriptionLen)
		}
		p.Description = &d
	}
	if req.Priority != nil {
		prio, err := parsePriority(*req.Priority)
		if err != nil {
			return p, err
		}
		p.Priority = &prio
	}
	if req.DueDate.Set {
		raw := strings.TrimSpace(req.DueDate.Value)
		if req.DueDate.Null || raw == "" {
			p.ClearDueDate = true
		} else {
			due, err := ParseDueDate(raw)
			if err != nil {
				return p, err
			}
			p.DueDate = &due
		}
	}
	if req.Completed != nil {
		c := *req.Completed
		p.Completed = &c
	}
	if req.AttachmentURL != nil {
		u, err := normalizeAttachmentURL(*req.AttachmentURL)
		if err != nil {
			return p, err
		}
		p.AttachmentURL = &u
	}
	return p, nil
}

// ParseDueDate acepta RFC3339 o YYYY-MM-DD (medianoche UTC).
func ParseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, invalidf("due_date must be RFC3339 or YYYY-MM-DD")
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", invalidf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return "", invalidf("title must be at most %d characters", MaxTitleLen)
	}
	return title, nil
}

func parsePriority(raw string) (repository.Priority, error) {
	p := repository.Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", invalidf("priority must be one of low, medium, high")
	}
	return p, nil
}

// normalizeAttachmentURL: "" es válido (sin adjunto / limpiar).
func normalizeAttachmentURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", nil
	}
	if err := helpers.Validator().Var(u, "http_url,max=2048"); err != nil {
		return "", invalidf("attachment_url must be a valid http(s) URL")
	}
	return u, nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", repository.ErrInvalidInput, fmt.Sprintf(format, args...))
}
