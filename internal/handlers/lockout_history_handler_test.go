package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/lockguard/internal/handlers"
	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/BradenHooton/lockguard/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistoryHandler(history handlers.LockoutHistoryServiceInterface) *handlers.LockoutHistoryHandler {
	return handlers.NewLockoutHistoryHandler(history, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestLockoutHistoryHandler_GetEvents(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := occurred.Add(15 * time.Minute)

	history := &handlers.MockLockoutHistory{
		ListFunc: func(ctx context.Context, account string, limit, offset int) (*services.LockoutHistoryPage, error) {
			assert.Equal(t, "user@example.com", account)
			assert.Equal(t, 10, limit)
			assert.Equal(t, 20, offset)
			return &services.LockoutHistoryPage{
				AccountID: "user-1",
				Events: []*models.LockoutEvent{{
					ID:            "evt-1",
					Type:          models.LockoutEventAccountLocked,
					Trigger:       models.TriggerThreshold,
					AccountID:     "user-1",
					SourceAddress: "10.0.0.1",
					Attempts:      5,
					ExpiresAt:     &expires,
					OccurredAt:    occurred,
				}},
				Total:  21,
				Limit:  limit,
				Offset: offset,
			}, nil
		},
	}

	w := httptest.NewRecorder()
	req := adminRequest(t, "GET", "/admin/accounts/user@example.com/lockout/events?limit=10&offset=20", "user@example.com", nil)
	newHistoryHandler(history).GetEvents(w, req)

	var resp handlers.LockoutHistoryResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "21", w.Header().Get("X-Total-Count"))
	assert.Equal(t, "user-1", resp.AccountID)
	assert.Equal(t, int64(21), resp.Total)
	require.Len(t, resp.Events, 1)

	event := resp.Events[0]
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, "lockout.account.locked", event.Type)
	assert.Equal(t, "threshold", event.Trigger)
	assert.Equal(t, 5, event.Attempts)
	require.NotNil(t, event.ExpiresAt)
	assert.True(t, expires.Equal(*event.ExpiresAt))
}

func TestLockoutHistoryHandler_GetEvents_MalformedPagingUsesDefaults(t *testing.T) {
	history := &handlers.MockLockoutHistory{
		ListFunc: func(ctx context.Context, account string, limit, offset int) (*services.LockoutHistoryPage, error) {
			assert.Equal(t, services.DefaultHistoryLimit, limit)
			assert.Equal(t, 0, offset)
			return &services.LockoutHistoryPage{AccountID: account, Events: []*models.LockoutEvent{}, Limit: limit}, nil
		},
	}

	w := httptest.NewRecorder()
	req := adminRequest(t, "GET", "/admin/accounts/user-1/lockout/events?limit=abc&offset=-4", "user-1", nil)
	newHistoryHandler(history).GetEvents(w, req)

	var resp handlers.LockoutHistoryResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotNil(t, resp.Events)
	assert.Empty(t, resp.Events)
}

func TestLockoutHistoryHandler_GetEvents_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown account", models.ErrAccountNotFound, 404, "not_found"},
		{"store down", errors.Join(models.ErrStoreUnavailable, errors.New("timeout")), 503, "service_unavailable"},
		{"unexpected", errors.New("boom"), 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &handlers.MockLockoutHistory{
				ListFunc: func(ctx context.Context, account string, limit, offset int) (*services.LockoutHistoryPage, error) {
					return nil, tt.err
				},
			}

			w := httptest.NewRecorder()
			newHistoryHandler(history).GetEvents(w, adminRequest(t, "GET", "/admin/accounts/x/lockout/events", "x", nil))

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}
