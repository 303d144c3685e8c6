package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/lockguard/internal/auth"
	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/BradenHooton/lockguard/internal/services"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAdminContext adds admin claims to the request context
func WithAdminContext(req *http.Request, userID string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Role:   "admin",
		Type:   "access",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                         func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
	CheckPasswordResetEligibilityFunc func(ctx context.Context, email string) (bool, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
}

func (m *MockAuthService) CheckPasswordResetEligibility(ctx context.Context, email string) (bool, error) {
	if m.CheckPasswordResetEligibilityFunc == nil {
		return true, nil
	}
	return m.CheckPasswordResetEligibilityFunc(ctx, email)
}

// MockLockoutGuard implements LockoutGuardInterface for testing
type MockLockoutGuard struct {
	StatusFunc              func(ctx context.Context, account string) (*models.SecurityState, error)
	LockFunc                func(ctx context.Context, account string, expiresAt *time.Time) error
	UnlockFunc              func(ctx context.Context, account string) error
	ResetFailedAttemptsFunc func(ctx context.Context, account string) error
	PolicyValue             models.LockoutPolicy
}

func (m *MockLockoutGuard) Status(ctx context.Context, account string) (*models.SecurityState, error) {
	if m.StatusFunc == nil {
		return &models.SecurityState{FailedAttempts: []models.FailedAttempt{}}, nil
	}
	return m.StatusFunc(ctx, account)
}

func (m *MockLockoutGuard) Lock(ctx context.Context, account string, expiresAt *time.Time) error {
	if m.LockFunc == nil {
		return nil
	}
	return m.LockFunc(ctx, account, expiresAt)
}

func (m *MockLockoutGuard) Unlock(ctx context.Context, account string) error {
	if m.UnlockFunc == nil {
		return nil
	}
	return m.UnlockFunc(ctx, account)
}

func (m *MockLockoutGuard) ResetFailedAttempts(ctx context.Context, account string) error {
	if m.ResetFailedAttemptsFunc == nil {
		return nil
	}
	return m.ResetFailedAttemptsFunc(ctx, account)
}

func (m *MockLockoutGuard) Policy() models.LockoutPolicy {
	return m.PolicyValue
}

// MockLockoutHistory implements LockoutHistoryServiceInterface for testing
type MockLockoutHistory struct {
	ListFunc func(ctx context.Context, account string, limit, offset int) (*services.LockoutHistoryPage, error)
}

func (m *MockLockoutHistory) List(ctx context.Context, account string, limit, offset int) (*services.LockoutHistoryPage, error) {
	if m.ListFunc == nil {
		return &services.LockoutHistoryPage{AccountID: account, Limit: limit, Offset: offset}, nil
	}
	return m.ListFunc(ctx, account, limit, offset)
}
