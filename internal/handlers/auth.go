package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BradenHooton/lockguard/internal/models"
	"github.com/BradenHooton/lockguard/internal/services"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
	CheckPasswordResetEligibility(ctx context.Context, email string) (bool, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordResetEligibilityRequest represents the request body for a reset pre-check
type PasswordResetEligibilityRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetEligibilityResponse tells the caller whether a reset may start
type PasswordResetEligibilityResponse struct {
	Allowed bool `json:"allowed"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 423 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	authResp, err := h.service.Login(r.Context(), req.Email, req.Password, ipAddress, userAgent)
	if err != nil {
		var lockErr *models.LockoutError
		switch {
		case errors.As(err, &lockErr):
			pkghttp.WriteLocked(w, lockErr.Decision.RetryMessage(), lockErr.Decision.RetryAfter)
		case errors.Is(err, models.ErrUnauthorized),
			errors.Is(err, models.ErrAccountDisabled),
			errors.Is(err, models.ErrAccountSuspended):
			// Account status is not disclosed to unauthenticated callers
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Login is temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}

// PasswordResetEligibility reports whether a password reset may be started
// for the email. Only an indefinite lock answers false.
// @Summary Password reset eligibility
// @Accept json
// @Param request body PasswordResetEligibilityRequest true "Eligibility request"
// @Produce json
// @Success 200 {object} PasswordResetEligibilityResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 503 {object} pkghttp.ErrorResponse
// @Router /auth/password-reset/eligibility [post]
func (h *AuthHandler) PasswordResetEligibility(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetEligibilityRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		writeValidationError(w, err)
		return
	}

	allowed, err := h.service.CheckPasswordResetEligibility(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "email is required")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Password reset is temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, PasswordResetEligibilityResponse{Allowed: allowed})
}
