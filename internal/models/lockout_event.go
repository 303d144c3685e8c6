package models

import "time"

// LockoutEventType enumerates the guard's observable state changes.
type LockoutEventType string

const (
	LockoutEventAttemptRecorded LockoutEventType = "lockout.attempt.recorded"
	LockoutEventAccountLocked   LockoutEventType = "lockout.account.locked"
	LockoutEventAccountUnlocked LockoutEventType = "lockout.account.unlocked"
	LockoutEventAttemptsReset   LockoutEventType = "lockout.attempts.reset"
	LockoutEventLoginDenied     LockoutEventType = "lockout.login.denied"
)

// LockoutTrigger records what caused a lockout event
type LockoutTrigger string

const (
	TriggerThreshold   LockoutTrigger = "threshold"
	TriggerManual      LockoutTrigger = "manual"
	TriggerExpired     LockoutTrigger = "expired"
	TriggerWindowReset LockoutTrigger = "window_reset"
)

// LockoutEvent describes one guard state change for audit and notification sinks.
type LockoutEvent struct {
	ID            string // assigned when the event is stored
	Type          LockoutEventType
	Trigger       LockoutTrigger
	AccountID     string
	SourceAddress string
	Attempts      int
	ExpiresAt     *time.Time
	Reason        DenialReason
	OccurredAt    time.Time
}
