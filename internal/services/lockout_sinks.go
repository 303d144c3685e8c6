package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/lockguard/internal/models"
	pkglogger "github.com/BradenHooton/lockguard/pkg/logger"
)

// NewAuditLockoutSink writes every lockout event to the audit log
func NewAuditLockoutSink(al *pkglogger.AuditLogger) LockoutEventSink {
	return LockoutEventSinkFunc(func(ctx context.Context, event models.LockoutEvent) error {
		al.LogLockoutEvent(ctx, pkglogger.LockoutAudit{
			EventType: string(event.Type),
			Trigger:   string(event.Trigger),
			UserID:    event.AccountID,
			IPAddress: event.SourceAddress,
			Attempts:  event.Attempts,
			ExpiresAt: event.ExpiresAt,
			Reason:    string(event.Reason),
			At:        event.OccurredAt,
		})
		return nil
	})
}

// UserLookup fetches the user a lockout event refers to
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// LockoutNotificationService emails account owners when the failure
// threshold locks their account. Manual locks are not announced.
type LockoutNotificationService struct {
	users  UserLookup
	email  EmailService
	logger *slog.Logger
}

// NewLockoutNotificationService creates a new LockoutNotificationService
func NewLockoutNotificationService(users UserLookup, email EmailService, logger *slog.Logger) *LockoutNotificationService {
	return &LockoutNotificationService{
		users:  users,
		email:  email,
		logger: logger,
	}
}

// Record implements LockoutEventSink.
func (s *LockoutNotificationService) Record(ctx context.Context, event models.LockoutEvent) error {
	if event.Type != models.LockoutEventAccountLocked || event.Trigger != models.TriggerThreshold {
		return nil
	}

	user, err := s.users.GetByID(ctx, event.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("lockout notification skipped: user not found",
				slog.String("user_id", event.AccountID))
			return nil
		}
		return fmt.Errorf("failed to load user for lockout notification: %w", err)
	}
	if user.Email == "" {
		return nil
	}

	if err := s.email.SendLockoutNotification(ctx, user.Email, event.Attempts, event.ExpiresAt); err != nil {
		return err
	}

	s.logger.Info("lockout notification sent", slog.String("user_id", user.ID))
	return nil
}
