package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/lockguard/internal/handlers"
	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLockoutHandler(guard handlers.LockoutGuardInterface) *handlers.LockoutHandler {
	return handlers.NewLockoutHandler(guard, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func adminRequest(t *testing.T, method, url, accountID string, body interface{}) *http.Request {
	req := handlers.NewTestRequest(t, method, url, body)
	req = handlers.WithAdminContext(req, "admin-1")
	return handlers.WithURLParam(req, "id", accountID)
}

func TestLockoutHandler_GetStatus(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	guard := &handlers.MockLockoutGuard{
		PolicyValue: models.LockoutPolicy{Threshold: 5},
		StatusFunc: func(ctx context.Context, account string) (*models.SecurityState, error) {
			assert.Equal(t, "user-1", account)
			return &models.SecurityState{
				Locked:        true,
				LockExpiresAt: &expires,
				FailedAttempts: []models.FailedAttempt{
					{Time: expires.Add(-2 * time.Hour), SourceAddress: "10.0.0.1"},
				},
			}, nil
		},
	}

	w := httptest.NewRecorder()
	newLockoutHandler(guard).GetStatus(w, adminRequest(t, "GET", "/admin/accounts/user-1/lockout", "user-1", nil))

	var resp handlers.LockoutStatusResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Locked)
	assert.Equal(t, models.LockStateLockedTimed, resp.State)
	require.NotNil(t, resp.LockExpiresAt)
	assert.True(t, expires.Equal(*resp.LockExpiresAt))
	assert.Equal(t, 1, resp.FailedAttempts)
	assert.Equal(t, 5, resp.Threshold)
	assert.InDelta(t, 3600, resp.RetryAfter, 2)
}

func TestLockoutHandler_GetStatus_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown account", models.ErrAccountNotFound, 404, "not_found"},
		{"store down", models.ErrStoreUnavailable, 503, "service_unavailable"},
		{"unexpected", errors.New("boom"), 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := &handlers.MockLockoutGuard{
				StatusFunc: func(ctx context.Context, account string) (*models.SecurityState, error) {
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			newLockoutHandler(guard).GetStatus(w, adminRequest(t, "GET", "/admin/accounts/x/lockout", "x", nil))
			handlers.AssertErrorResponse(t, w, tt.status, tt.code)
		})
	}
}

func TestLockoutHandler_Lock(t *testing.T) {
	future := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		check      func(t *testing.T, expiresAt *time.Time)
	}{
		{
			name:       "indefinite",
			body:       nil,
			wantStatus: http.StatusNoContent,
			check: func(t *testing.T, expiresAt *time.Time) {
				assert.Nil(t, expiresAt)
			},
		},
		{
			name:       "absolute expiry",
			body:       handlers.LockRequest{ExpiresAt: &future},
			wantStatus: http.StatusNoContent,
			check: func(t *testing.T, expiresAt *time.Time) {
				require.NotNil(t, expiresAt)
				assert.True(t, future.Equal(*expiresAt))
			},
		},
		{
			name:       "relative duration",
			body:       map[string]any{"duration": map[string]any{"value": 2, "unit": "Hours"}},
			wantStatus: http.StatusNoContent,
			check: func(t *testing.T, expiresAt *time.Time) {
				require.NotNil(t, expiresAt)
				assert.WithinDuration(t, time.Now().Add(2*time.Hour), *expiresAt, 5*time.Second)
			},
		},
		{
			name:       "past expiry",
			body:       handlers.LockRequest{ExpiresAt: ptrTime(time.Now().Add(-time.Minute))},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero duration",
			body:       map[string]any{"duration": map[string]any{"value": 0, "unit": "hour"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown unit",
			body:       map[string]any{"duration": map[string]any{"value": 1, "unit": "week"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "both fields",
			body: map[string]any{
				"expires_at": future,
				"duration":   map[string]any{"value": 1, "unit": "hour"},
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			var got *time.Time
			guard := &handlers.MockLockoutGuard{
				LockFunc: func(ctx context.Context, account string, expiresAt *time.Time) error {
					called = true
					assert.Equal(t, "user-1", account)
					got = expiresAt
					return nil
				},
			}

			w := httptest.NewRecorder()
			newLockoutHandler(guard).Lock(w, adminRequest(t, "POST", "/admin/accounts/user-1/lock", "user-1", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusNoContent, called)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestLockoutHandler_Lock_UnknownAccount(t *testing.T) {
	guard := &handlers.MockLockoutGuard{
		LockFunc: func(ctx context.Context, account string, expiresAt *time.Time) error {
			return models.ErrAccountNotFound
		},
	}

	w := httptest.NewRecorder()
	newLockoutHandler(guard).Lock(w, adminRequest(t, "POST", "/admin/accounts/ghost/lock", "ghost", nil))

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestLockoutHandler_UnlockAndReset(t *testing.T) {
	var unlocked, reset string
	guard := &handlers.MockLockoutGuard{
		UnlockFunc: func(ctx context.Context, account string) error {
			unlocked = account
			return nil
		},
		ResetFailedAttemptsFunc: func(ctx context.Context, account string) error {
			reset = account
			return nil
		},
	}
	h := newLockoutHandler(guard)

	w := httptest.NewRecorder()
	h.Unlock(w, adminRequest(t, "POST", "/admin/accounts/user-1/unlock", "user-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user-1", unlocked)

	w = httptest.NewRecorder()
	h.ResetFailedAttempts(w, adminRequest(t, "DELETE", "/admin/accounts/user-2/failed-attempts", "user-2", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user-2", reset)
}

func TestLockoutHandler_Unlock_StoreUnavailable(t *testing.T) {
	guard := &handlers.MockLockoutGuard{
		UnlockFunc: func(ctx context.Context, account string) error {
			return models.ErrStoreUnavailable
		},
	}

	w := httptest.NewRecorder()
	newLockoutHandler(guard).Unlock(w, adminRequest(t, "POST", "/admin/accounts/user-1/unlock", "user-1", nil))

	handlers.AssertErrorResponse(t, w, 503, "service_unavailable")
}

type stubPinger struct{ err error }

func (p stubPinger) HealthCheck(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		db     handlers.Pinger
		status int
	}{
		{"memory store", nil, 200},
		{"database up", stubPinger{}, 200},
		{"database down", stubPinger{err: errors.New("down")}, 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.NewHealthHandler(tt.db).Health(w, httptest.NewRequest("GET", "/health", nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
