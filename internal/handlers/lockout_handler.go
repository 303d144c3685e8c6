package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/lockguard/internal/auth"
	"github.com/BradenHooton/lockguard/internal/models"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	pkglogger "github.com/BradenHooton/lockguard/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// LockoutGuardInterface is the administrative surface of the lockout guard
type LockoutGuardInterface interface {
	Status(ctx context.Context, account string) (*models.SecurityState, error)
	Lock(ctx context.Context, account string, expiresAt *time.Time) error
	Unlock(ctx context.Context, account string) error
	ResetFailedAttempts(ctx context.Context, account string) error
	Policy() models.LockoutPolicy
}

// LockoutHandler serves the admin lockout endpoints
type LockoutHandler struct {
	guard  LockoutGuardInterface
	logger *slog.Logger
	now    func() time.Time
}

// NewLockoutHandler creates a new LockoutHandler
func NewLockoutHandler(guard LockoutGuardInterface, logger *slog.Logger) *LockoutHandler {
	return &LockoutHandler{
		guard:  guard,
		logger: logger,
		now:    time.Now,
	}
}

// LockRequest is the body of a manual lock. Both fields empty locks the
// account until it is explicitly unlocked.
type LockRequest struct {
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
	Duration  *models.DurationSetting `json:"duration,omitempty"`
}

// LockoutStatusResponse describes an account's lockout state
type LockoutStatusResponse struct {
	AccountID      string                 `json:"account_id"`
	Locked         bool                   `json:"locked"`
	State          models.LockState       `json:"state"`
	LockExpiresAt  *time.Time             `json:"lock_expires_at,omitempty"`
	RetryAfter     int64                  `json:"retry_after,omitempty"`
	FailedAttempts int                    `json:"failed_attempts"`
	Attempts       []models.FailedAttempt `json:"attempts"`
	Threshold      int                    `json:"threshold"`
}

// GetStatus handles GET /admin/accounts/{id}/lockout
func (h *LockoutHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	state, err := h.guard.Status(r.Context(), accountID)
	if err != nil {
		h.writeGuardError(w, err)
		return
	}

	resp := LockoutStatusResponse{
		AccountID:      accountID,
		Locked:         state.Locked,
		State:          state.LockState(),
		LockExpiresAt:  state.LockExpiresAt,
		FailedAttempts: len(state.FailedAttempts),
		Attempts:       state.FailedAttempts,
		Threshold:      h.guard.Policy().Threshold,
	}
	if state.Locked && state.LockExpiresAt != nil {
		if remaining := state.LockExpiresAt.Sub(h.now()); remaining > 0 {
			resp.RetryAfter = int64(remaining.Round(time.Second).Seconds())
		}
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Lock handles POST /admin/accounts/{id}/lock
func (h *LockoutHandler) Lock(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	expiresAt, err := h.lockExpiry(req)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.guard.Lock(r.Context(), accountID, expiresAt); err != nil {
		h.writeGuardError(w, err)
		return
	}

	attrs := []any{slog.String("account", pkglogger.MaskIdentifier(accountID)), slog.String("admin_id", adminID(r))}
	if expiresAt != nil {
		attrs = append(attrs, slog.Time("expires_at", *expiresAt))
	}
	h.logger.Info("account locked by administrator", attrs...)

	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST /admin/accounts/{id}/unlock
func (h *LockoutHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	if err := h.guard.Unlock(r.Context(), accountID); err != nil {
		h.writeGuardError(w, err)
		return
	}

	h.logger.Info("account unlocked by administrator",
		slog.String("account", pkglogger.MaskIdentifier(accountID)),
		slog.String("admin_id", adminID(r)))

	w.WriteHeader(http.StatusNoContent)
}

// ResetFailedAttempts handles DELETE /admin/accounts/{id}/failed-attempts
func (h *LockoutHandler) ResetFailedAttempts(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	if err := h.guard.ResetFailedAttempts(r.Context(), accountID); err != nil {
		h.writeGuardError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// lockExpiry turns the request into an absolute expiry. nil means indefinite.
func (h *LockoutHandler) lockExpiry(req LockRequest) (*time.Time, error) {
	switch {
	case req.ExpiresAt != nil && req.Duration != nil:
		return nil, errors.New("specify either expires_at or duration, not both")
	case req.ExpiresAt != nil:
		if !req.ExpiresAt.After(h.now()) {
			return nil, errors.New("expires_at must be in the future")
		}
		t := req.ExpiresAt.UTC()
		return &t, nil
	case req.Duration != nil:
		if err := ValidateRequest(*req.Duration); err != nil {
			return nil, err
		}
		t := h.now().Add(req.Duration.Duration()).UTC()
		return &t, nil
	default:
		return nil, nil
	}
}

func (h *LockoutHandler) writeGuardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrStoreUnavailable):
		h.logger.Error("security state store unavailable", slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Security state store unavailable")
	default:
		h.logger.Error("lockout operation failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func adminID(r *http.Request) string {
	if claims := auth.GetUserFromContext(r); claims != nil {
		return claims.UserID
	}
	return ""
}
