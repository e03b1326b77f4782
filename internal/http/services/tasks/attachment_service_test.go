package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellotasks/internal/domain/repository"
)

type fakePresigner struct {
	key, contentType string
	ttl              time.Duration
	err              error
}

func (f *fakePresigner) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	f.key, f.contentType, f.ttl = key, contentType, ttl
	if f.err != nil {
		return "", f.err
	}
	return "https://bucket.example.com/" + key + "?X-Amz-Signature=abc", nil
}

func (f *fakePresigner) ObjectURL(key string) string {
	return "https://bucket.example.com/" + key
}

func newAttachmentSvc(p *fakePresigner, cfg AttachmentConfig) *attachmentService {
	s := NewAttachmentService(p, cfg).(*attachmentService)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }
	s.newID = func() uuid.UUID { return uuid.MustParse("11111111-2222-3333-4444-555555555555") }
	return s
}

func TestIssueUploadURL(t *testing.T) {
	p := &fakePresigner{}
	svc := newAttachmentSvc(p, AttachmentConfig{})

	res, err := svc.IssueUploadURL(context.Background(), "alice", "../../etc/report 2026.pdf", "Application/PDF; charset=binary")
	require.NoError(t, err)

	wantKey := "users/alice/11111111-2222-3333-4444-555555555555-report_2026.pdf"
	assert.Equal(t, wantKey, res.Key)
	assert.Equal(t, wantKey, p.key)
	assert.Equal(t, "application/pdf", p.contentType)
	assert.Equal(t, DefaultUploadURLTTL, p.ttl)
	assert.Equal(t, "https://bucket.example.com/"+wantKey, res.FileURL)
	assert.True(t, strings.HasPrefix(res.UploadURL, res.FileURL))
	assert.Equal(t, time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC), res.ExpiresAt)
}

func TestIssueUploadURL_TTLCapped(t *testing.T) {
	p := &fakePresigner{}
	svc := newAttachmentSvc(p, AttachmentConfig{TTL: time.Hour})
	_, err := svc.IssueUploadURL(context.Background(), "alice", "a.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, MaxUploadURLTTL, p.ttl)
}

func TestIssueUploadURL_Rejections(t *testing.T) {
	svc := newAttachmentSvc(&fakePresigner{}, AttachmentConfig{AllowedContentTypes: []string{"image/png"}})
	ctx := context.Background()

	_, err := svc.IssueUploadURL(ctx, "alice", "a.png", "text/plain")
	assert.True(t, repository.IsInvalidInput(err))

	_, err = svc.IssueUploadURL(ctx, "alice", "a.png", "not a media type")
	assert.True(t, repository.IsInvalidInput(err))

	_, err = svc.IssueUploadURL(ctx, "alice", "..", "image/png")
	assert.True(t, repository.IsInvalidInput(err))

	_, err = svc.IssueUploadURL(ctx, "", "a.png", "image/png")
	require.Error(t, err)
	assert.False(t, repository.IsInvalidInput(err))
}

func TestIssueUploadURL_PresignFailure(t *testing.T) {
	svc := newAttachmentSvc(&fakePresigner{err: errors.New("no creds")}, AttachmentConfig{})
	_, err := svc.IssueUploadURL(context.Background(), "alice", "a.png", "image/png")
	require.Error(t, err)
	assert.False(t, repository.IsInvalidInput(err))
}
