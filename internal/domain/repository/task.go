package repository

import (
	"context"
	"time"
)

// Priority de una tarea.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reporta si p es una prioridad conocida.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task es una tarea de un único dueño (OwnerSubject).
type Task struct {
	ID            string
	OwnerSubject  string
	Title         string
	Description   string
	DueDate       *time.Time
	Priority      Priority
	Completed     bool
	AttachmentURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateTaskInput son los campos de alta. El dueño lo decide el caller, nunca el body.
type CreateTaskInput struct {
	Title         string
	Description   string
	DueDate       *time.Time
	Priority      Priority
	Completed     bool
	AttachmentURL string
}

// TaskPatch es una actualización parcial: nil = no tocar.
type TaskPatch struct {
	Title         *string
	Description   *string
	DueDate       *time.Time
	ClearDueDate  bool
	Priority      *Priority
	Completed     *bool
	AttachmentURL *string
}

// Empty reporta si el patch no cambia nada.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.Priority == nil && p.Completed == nil && p.AttachmentURL == nil
}

// ListTasksFilter filtra y pagina el listado.
type ListTasksFilter struct {
	Completed *bool
	Limit     int
	Offset    int
}

// TaskRepository define operaciones sobre tareas. Todas filtran por owner.
type TaskRepository interface {
	// List lista las tareas del owner ordenadas por created_at DESC, id.
	List(ctx context.Context, owner string, f ListTasksFilter) ([]Task, error)

	// Get obtiene una tarea del owner.
	// Retorna ErrNotFound si no existe o es de otro owner.
	Get(ctx context.Context, owner, id string) (*Task, error)

	// Create inserta una tarea para owner.
	Create(ctx context.Context, owner string, in CreateTaskInput) (*Task, error)

	// Update aplica el patch y devuelve la tarea resultante.
	// Retorna ErrNotFound si no existe o es de otro owner.
	Update(ctx context.Context, owner, id string, p TaskPatch) (*Task, error)

	// Delete elimina la tarea. Retorna ErrNotFound si no existe o es de otro owner.
	Delete(ctx context.Context, owner, id string) error
}
