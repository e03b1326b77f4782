package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	dto "github.com/dropDatabas3/hellotasks/internal/http/dto/tasks"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
	"github.com/dropDatabas3/hellotasks/internal/storage"
)

const (
	DefaultUploadURLTTL = 5 * time.Minute
	MaxUploadURLTTL     = 15 * time.Minute
)

// AttachmentService emite URLs pre-firmadas de subida.
// No toca tareas: el cliente sube el archivo y luego guarda file_url en la tarea.
type AttachmentService interface {
	IssueUploadURL(ctx context.Context, subject, fileName, contentType string) (*dto.UploadURLResponse, error)
}

// AttachmentConfig configura la emisión de URLs.
type AttachmentConfig struct {
	TTL                 time.Duration // default 5m, tope 15m
	AllowedContentTypes []string      // vacío = cualquier media type válido
}

type attachmentService struct {
	presigner storage.Presigner
	cfg       AttachmentConfig
	now       func() time.Time
	newID     func() uuid.UUID
}

// NewAttachmentService crea el service de adjuntos.
func NewAttachmentService(p storage.Presigner, cfg AttachmentConfig) AttachmentService {
	switch {
	case cfg.TTL <= 0:
		cfg.TTL = DefaultUploadURLTTL
	case cfg.TTL > MaxUploadURLTTL:
		cfg.TTL = MaxUploadURLTTL
	}
	return &attachmentService{presigner: p, cfg: cfg, now: time.Now, newID: uuid.New}
}

const componentAttachments = "tasks.attachments"

func (s *attachmentService) IssueUploadURL(ctx context.Context, subject, fileName, contentType string) (*dto.UploadURLResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component(componentAttachments),
		logger.Op("IssueUploadURL"),
	)
	if subject == "" {
		return nil, errNoSubject
	}

	ct, err := storage.NormalizeContentType(contentType, s.cfg.AllowedContentTypes)
	if err != nil {
		return nil, invalidf("content_type: %v", err)
	}

	key, err := storage.ObjectKey(subject, fileName, s.newID())
	if err != nil {
		if errors.Is(err, storage.ErrEmptyFileName) {
			return nil, invalidf("file_name must contain at least one usable character")
		}
		return nil, err
	}

	issuedAt := s.now()
	uploadURL, err := s.presigner.PresignPut(ctx, key, ct, s.cfg.TTL)
	if err != nil {
		log.Error("failed to presign upload", logger.String("key", key), logger.Err(err))
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	log.Info("upload url issued", logger.String("key", key), logger.String("content_type", ct))
	return &dto.UploadURLResponse{
		UploadURL: uploadURL,
		FileURL:   s.presigner.ObjectURL(key),
		Key:       key,
		ExpiresAt: issuedAt.Add(s.cfg.TTL).UTC(),
	}, nil
}
