// Package tasks contiene DTOs para /v1/tasks.
package tasks

import (
	"bytes"
	"encoding/json"
	"time"
)

// CreateTaskRequest es el body de POST /v1/tasks.
type CreateTaskRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=2000"`
	DueDate       string `json:"due_date,omitempty"` // RFC3339 o YYYY-MM-DD
	Priority      string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Completed     bool   `json:"completed"`
	AttachmentURL string `json:"attachment_url,omitempty" validate:"omitempty,http_url,max=2048"`
}

// PatchTaskRequest es el body de PATCH/PUT /v1/tasks/{id}. Campos ausentes no se tocan.
type PatchTaskRequest struct {
	Title         *string        `json:"title" validate:"omitempty,max=200"`
	Description   *string        `json:"description" validate:"omitempty,max=2000"`
	DueDate       OptionalString `json:"due_date"` // null o "" limpia la fecha
	Priority      *string        `json:"priority" validate:"omitempty,oneof=low medium high"`
	Completed     *bool          `json:"completed"`
	AttachmentURL *string        `json:"attachment_url" validate:"omitempty,max=2048"`
}

// OptionalString distingue campo ausente, null explícito y valor.
type OptionalString struct {
	Set   bool
	Null  bool
	Value string
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		o.Value = ""
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// TaskResponse es la representación pública de una tarea.
// El owner no se expone: siempre es el subject del token.
type TaskResponse struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	DueDate       *time.Time `json:"due_date"`
	Priority      string     `json:"priority"`
	Completed     bool       `json:"completed"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ListTasksResponse es la respuesta de GET /v1/tasks.
type ListTasksResponse struct {
	Items  []TaskResponse `json:"items"`
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
