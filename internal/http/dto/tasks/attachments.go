package tasks

import "time"

// UploadURLRequest es el body de POST /v1/tasks/attachments/upload-url.
type UploadURLRequest struct {
	FileName    string `json:"file_name" validate:"required,max=1024"`
	ContentType string `json:"content_type" validate:"required,max=255"`
}

// UploadURLResponse: el cliente hace PUT a UploadURL con el mismo Content-Type
// y luego guarda FileURL en attachment_url de la tarea.
type UploadURLResponse struct {
	UploadURL string    `json:"upload_url"`
	FileURL   string    `json:"file_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}
