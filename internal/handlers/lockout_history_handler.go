package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/BradenHooton/lockguard/internal/services"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	"github.com/go-chi/chi/v5"
)

// LockoutHistoryServiceInterface lists an account's stored lockout events
type LockoutHistoryServiceInterface interface {
	List(ctx context.Context, account string, limit, offset int) (*services.LockoutHistoryPage, error)
}

// LockoutHistoryHandler serves the lockout event history to admins
type LockoutHistoryHandler struct {
	history LockoutHistoryServiceInterface
	logger  *slog.Logger
}

// NewLockoutHistoryHandler creates a new LockoutHistoryHandler
func NewLockoutHistoryHandler(history LockoutHistoryServiceInterface, logger *slog.Logger) *LockoutHistoryHandler {
	return &LockoutHistoryHandler{history: history, logger: logger}
}

// LockoutEventResponse is one lockout event in an HTTP response
type LockoutEventResponse struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Trigger       string     `json:"trigger,omitempty"`
	SourceAddress string     `json:"source_address,omitempty"`
	Attempts      int        `json:"attempts,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// LockoutHistoryResponse is a page of lockout events
type LockoutHistoryResponse struct {
	AccountID string                  `json:"account_id"`
	Events    []*LockoutEventResponse `json:"events"`
	Total     int64                   `json:"total"`
	Limit     int                     `json:"limit"`
	Offset    int                     `json:"offset"`
}

// GetEvents handles GET /admin/accounts/{id}/lockout/events
func (h *LockoutHistoryHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", services.DefaultHistoryLimit)
	offset := queryInt(r, "offset", 0)

	page, err := h.history.List(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		case errors.Is(err, models.ErrStoreUnavailable):
			h.logger.Error("lockout history unavailable", slog.Any("error", err))
			pkghttp.WriteServiceUnavailable(w, "Lockout history unavailable")
		default:
			h.logger.Error("failed to list lockout history", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	events := make([]*LockoutEventResponse, len(page.Events))
	for i, event := range page.Events {
		events[i] = lockoutEventToResponse(event)
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(page.Total, 10))
	pkghttp.WriteJSON(w, http.StatusOK, LockoutHistoryResponse{
		AccountID: page.AccountID,
		Events:    events,
		Total:     page.Total,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
}

func lockoutEventToResponse(event *models.LockoutEvent) *LockoutEventResponse {
	return &LockoutEventResponse{
		ID:            event.ID,
		Type:          string(event.Type),
		Trigger:       string(event.Trigger),
		SourceAddress: event.SourceAddress,
		Attempts:      event.Attempts,
		ExpiresAt:     event.ExpiresAt,
		Reason:        string(event.Reason),
		OccurredAt:    event.OccurredAt,
	}
}

// queryInt reads a non-negative integer query parameter. Missing or malformed
// values yield def.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
