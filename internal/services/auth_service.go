package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/lockguard/internal/auth"
	"github.com/BradenHooton/lockguard/internal/models"
	pkgauth "github.com/BradenHooton/lockguard/pkg/auth"
	pkglogger "github.com/BradenHooton/lockguard/pkg/logger"
)

// UserRepository defines the user lookups the login flow needs
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenIssuer issues access tokens for authenticated users
type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string) (string, error)
	AccessTokenExpiry() time.Duration
}

// AuthService runs the host login flow with the lockout guard in front of it
type AuthService struct {
	repo        UserRepository
	guard       *LockoutGuard
	tokens      TokenIssuer
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. timing may be nil.
func NewAuthService(repo UserRepository, guard *LockoutGuard, tokens TokenIssuer, timing *auth.TimingDelay, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		guard:       guard,
		tokens:      tokens,
		timing:      timing,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	User        *UserResponse `json:"user"`
}

// Login authenticates a user. A lockout denial is returned as *models.LockoutError
// regardless of whether the password was right.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*AuthResponse, error) {
	start := time.Now()

	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		s.timing.WaitFrom(ctx, start, false)
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, models.ErrNotFound):
		user = nil
	case err != nil:
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	outcome, stateErr := credentialOutcome(user, password)

	decision, err := s.guard.Authenticate(ctx, email, outcome, ipAddress)
	if err != nil {
		s.logger.Error("lockout guard unavailable during login", slog.Any("error", err))
		return nil, fmt.Errorf("login: %w", err)
	}

	userID := ""
	if user != nil {
		userID = user.ID
	}

	if decision.Denied() {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			FailureReason: "account_locked",
			Metadata:      map[string]string{"lockout_reason": string(decision.Reason)},
		})
		s.timing.WaitFrom(ctx, start, false)
		return nil, &models.LockoutError{Decision: decision}
	}

	switch outcome {
	case models.OutcomeValidCredentials:
	case models.OutcomeInvalidPassword:
		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			FailureReason: "invalid_credentials",
		})
		s.timing.WaitFrom(ctx, start, false)
		return nil, models.ErrUnauthorized
	default:
		reason := "invalid_credentials"
		if stateErr != nil {
			reason = "account_blocked"
			s.logger.Info("login blocked due to account state",
				slog.String("user_id", userID),
				slog.Any("error", stateErr))
		}
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			FailureReason: reason,
		})
		s.timing.WaitFrom(ctx, start, false)
		if stateErr != nil {
			return nil, stateErr
		}
		return nil, models.ErrUnauthorized
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})
	s.timing.WaitFrom(ctx, start, true)

	return &AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.AccessTokenExpiry().Seconds()),
		User:        userModelToResponse(user),
	}, nil
}

// CheckPasswordResetEligibility reports whether a reset may be started for
// the email. Unknown emails are reported as eligible so the answer does not
// reveal which accounts exist.
func (s *AuthService) CheckPasswordResetEligibility(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, models.ErrBadRequest
	}

	allowed, err := s.guard.CanResetPassword(ctx, email)
	if err != nil {
		s.logger.Error("failed to check password reset eligibility", slog.Any("error", err))
		return false, fmt.Errorf("password reset eligibility: %w", err)
	}

	if !allowed {
		s.logger.Info("password reset blocked by indefinite lock",
			slog.String("email", pkglogger.SanitizedEmail(email)))
	}
	return allowed, nil
}

// credentialOutcome maps the host's own checks onto the guard's outcome.
// Only a wrong password for an existing, usable account counts as a failure.
func credentialOutcome(user *models.User, password string) (models.CredentialOutcome, error) {
	if user == nil {
		pkgauth.CompareDummyPassword(password)
		return models.OutcomeOtherError, nil
	}
	if err := validateAccountState(user); err != nil {
		return models.OutcomeOtherError, err
	}
	if user.PasswordHash == "" {
		return models.OutcomeOtherError, nil
	}
	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return models.OutcomeInvalidPassword, nil
	}
	return models.OutcomeValidCredentials, nil
}

// validateAccountState checks if the host account status permits authentication
func validateAccountState(user *models.User) error {
	switch user.Status {
	case models.UserStatusDisabled:
		return models.ErrAccountDisabled
	case models.UserStatusSuspended:
		return models.ErrAccountSuspended
	case models.UserStatusActive:
		return nil
	default:
		return fmt.Errorf("unknown account status: %s", user.Status)
	}
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
