package tasks

import svc "github.com/dropDatabas3/hellotasks/internal/http/services/tasks"

// Controllers agrupa todos los controllers del dominio tasks.
type Controllers struct {
	Tasks       *TasksController
	Attachments *AttachmentsController
}

// NewControllers crea el agregador de controllers tasks.
func NewControllers(s svc.Services) *Controllers {
	return &Controllers{
		Tasks:       NewTasksController(s.Tasks),
		Attachments: NewAttachmentsController(s.Attachments),
	}
}
