package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, http.StatusBadRequest, "test_error", "Test message")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Empty(t, resp.Details)
	assert.Zero(t, resp.RetryAfter)
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Invalid request", "email: required")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Equal(t, "email: required", resp.Details)
}

func TestWriteLocked_WithRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteLocked(w, "try again later", 90*time.Second+time.Millisecond)

	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "91", w.Header().Get("Retry-After"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "account_locked", resp.Error)
	assert.Equal(t, int64(91), resp.RetryAfter)
}

func TestWriteLocked_Indefinite(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteLocked(w, "This account has been locked.", 0)

	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(w http.ResponseWriter) { pkghttp.WriteBadRequest(w, "m") }, http.StatusBadRequest, "bad_request"},
		{"unauthorized", func(w http.ResponseWriter) { pkghttp.WriteUnauthorized(w, "m") }, http.StatusUnauthorized, "unauthorized"},
		{"not found", func(w http.ResponseWriter) { pkghttp.WriteNotFound(w, "m") }, http.StatusNotFound, "not_found"},
		{"unavailable", func(w http.ResponseWriter) { pkghttp.WriteServiceUnavailable(w, "m") }, http.StatusServiceUnavailable, "service_unavailable"},
		{"internal", func(w http.ResponseWriter) { pkghttp.WriteInternalError(w, "m") }, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			var resp pkghttp.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}
