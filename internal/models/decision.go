package models

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// CredentialOutcome is the result of the host's own password check
type CredentialOutcome string

const (
	OutcomeValidCredentials CredentialOutcome = "valid_credentials"
	OutcomeInvalidPassword  CredentialOutcome = "invalid_password"
	OutcomeOtherError       CredentialOutcome = "other_error"
)

// DenialReason is the machine-readable reason attached to a denied attempt
type DenialReason string

const (
	ReasonLockedWithExpiry DenialReason = "locked_with_expiry"
	ReasonLockedIndefinite DenialReason = "locked_indefinite"
)

// Decision is the guard verdict for one authentication attempt.
// A decision without a Reason means proceed; Outcome is the host's
// credential outcome passed through unchanged.
type Decision struct {
	Outcome       CredentialOutcome `json:"outcome"`
	Reason        DenialReason      `json:"reason,omitempty"`
	RetryAfter    time.Duration     `json:"retry_after,omitempty"`
	LockExpiresAt *time.Time        `json:"lock_expires_at,omitempty"`
}

// ProceedDecision lets the host continue with its own outcome.
func ProceedDecision(outcome CredentialOutcome) Decision {
	return Decision{Outcome: outcome}
}

// DeniedDecision refuses the attempt. expiresAt is nil for indefinite locks.
func DeniedDecision(outcome CredentialOutcome, now time.Time, expiresAt *time.Time) Decision {
	if expiresAt == nil {
		return Decision{Outcome: outcome, Reason: ReasonLockedIndefinite}
	}
	t := *expiresAt
	return Decision{
		Outcome:       outcome,
		Reason:        ReasonLockedWithExpiry,
		RetryAfter:    t.Sub(now),
		LockExpiresAt: &t,
	}
}

// Proceed reports whether the guard lets the host continue.
func (d Decision) Proceed() bool {
	return d.Reason == ""
}

// Denied reports whether the guard refused the attempt.
func (d Decision) Denied() bool {
	return d.Reason != ""
}

// RetryMessage renders the denial for end users, e.g. "try again in 15 minutes".
func (d Decision) RetryMessage() string {
	switch d.Reason {
	case ReasonLockedIndefinite:
		return "This account has been locked."
	case ReasonLockedWithExpiry:
		base := time.Now()
		wait := strings.TrimSpace(humanize.RelTime(base, base.Add(d.RetryAfter), "", ""))
		return "This account has been locked because of too many failed login attempts. You may try again in " + wait + "."
	default:
		return ""
	}
}
