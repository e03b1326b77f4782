package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrValidation.WithDetail("title: required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	assert.Equal(t, "title: required", body["detail"])
}

func TestWriteError_GenericErrorDoesNotLeakCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, stderrors.New("pq: password authentication failed for user tasks"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestFromError_UnwrapsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("controller: %w", ErrNotFound)
	assert.Equal(t, ErrNotFound, FromError(wrapped))
}

func TestWithDetailDoesNotMutateCatalog(t *testing.T) {
	_ = ErrForbidden.WithDetail("x").WithCause(stderrors.New("y"))
	assert.Empty(t, ErrForbidden.Detail)
	assert.Nil(t, ErrForbidden.Err)
}
