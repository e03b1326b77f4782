// Package memory implementa TaskRepository en memoria (desarrollo y tests).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
)

// TaskStore guarda tareas en un mapa protegido por RWMutex.
// Devuelve siempre copias: los callers no comparten memoria con el store.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]repository.Task
	now   func() time.Time
}

var _ repository.TaskRepository = (*TaskStore)(nil)

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]repository.Task), now: time.Now}
}

func (s *TaskStore) List(ctx context.Context, owner string, f repository.ListTasksFilter) ([]repository.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]repository.Task, 0)
	for _, t := range s.tasks {
		if t.OwnerSubject != owner {
			continue
		}
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		out = append(out, clone(t))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []repository.Task{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *TaskStore) Get(ctx context.Context, owner, id string) (*repository.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok || t.OwnerSubject != owner {
		return nil, repository.ErrNotFound
	}
	c := clone(t)
	return &c, nil
}

func (s *TaskStore) Create(ctx context.Context, owner string, in repository.CreateTaskInput) (*repository.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	t := repository.Task{
		ID:            uuid.NewString(),
		OwnerSubject:  owner,
		Title:         in.Title,
		Description:   in.Description,
		DueDate:       copyTime(in.DueDate),
		Priority:      in.Priority,
		Completed:     in.Completed,
		AttachmentURL: in.AttachmentURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	c := clone(t)
	return &c, nil
}

func (s *TaskStore) Update(ctx context.Context, owner, id string, p repository.TaskPatch) (*repository.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerSubject != owner {
		return nil, repository.ErrNotFound
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		t.DueDate = copyTime(p.DueDate)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.AttachmentURL != nil {
		t.AttachmentURL = *p.AttachmentURL
	}
	t.UpdatedAt = s.now().UTC()
	s.tasks[id] = t

	c := clone(t)
	return &c, nil
}

func (s *TaskStore) Delete(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.OwnerSubject != owner {
		return repository.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// Ping siempre responde OK; permite usar el store en /readyz.
func (s *TaskStore) Ping(context.Context) error { return nil }

func clone(t repository.Task) repository.Task {
	t.DueDate = copyTime(t.DueDate)
	return t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
