// Package tasks contiene los services de tareas y adjuntos.
package tasks

import (
	"time"

	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
	"github.com/dropDatabas3/hellotasks/internal/storage"
)

// Deps contiene las dependencias del dominio tasks.
type Deps struct {
	Repo repository.TaskRepository

	// Adjuntos: Presigner nil = feature deshabilitada.
	Presigner           storage.Presigner
	UploadURLTTL        time.Duration
	AllowedContentTypes []string
}

// Services agrupa todos los services del dominio tasks.
type Services struct {
	Tasks       TaskService
	Attachments AttachmentService // nil si no hay storage configurado
}

// NewServices crea el agregador de services tasks.
func NewServices(d Deps) Services {
	s := Services{Tasks: NewTaskService(d.Repo)}
	if d.Presigner != nil {
		s.Attachments = NewAttachmentService(d.Presigner, AttachmentConfig{
			TTL:                 d.UploadURLTTL,
			AllowedContentTypes: d.AllowedContentTypes,
		})
	}
	return s
}
