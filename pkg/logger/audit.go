package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// LockoutAudit describes a lockout state change for the audit trail
type LockoutAudit struct {
	EventType string
	Trigger   string
	UserID    string
	IPAddress string
	Attempts  int
	ExpiresAt *time.Time
	Reason    string
	At        time.Time
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogLockoutEvent records a lockout state change. Locks and denials are
// logged at warn level, everything else at info.
func (al *AuditLogger) LogLockoutEvent(ctx context.Context, event LockoutAudit) {
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "lockout"),
		slog.String("event_type", event.EventType),
		slog.String("user_id", event.UserID),
		slog.String("timestamp", at.UTC().Format(time.RFC3339)),
	}
	if event.Trigger != "" {
		attrs = append(attrs, slog.String("trigger", event.Trigger))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Attempts > 0 {
		attrs = append(attrs, slog.Int("failed_attempts", event.Attempts))
	}
	if event.ExpiresAt != nil {
		attrs = append(attrs, slog.String("lock_expires_at", event.ExpiresAt.UTC().Format(time.RFC3339)))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	level := slog.LevelInfo
	if event.EventType == "lockout.account.locked" || event.EventType == "lockout.login.denied" {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
