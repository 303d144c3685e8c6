package models

import "time"

// UnknownSourceAddress is recorded when the host cannot supply a client address.
const UnknownSourceAddress = "unknown"

// LockState is the lockout state machine position of an account.
type LockState string

const (
	LockStateUnlocked         LockState = "unlocked"
	LockStateLockedTimed      LockState = "locked_timed"
	LockStateLockedIndefinite LockState = "locked_indefinite"
)

// FailedAttempt is a single failed login recorded against an account
type FailedAttempt struct {
	Time          time.Time `json:"time"`
	SourceAddress string    `json:"source_address"`
}

// SecurityState is the persisted lockout state of one account.
// The zero value is a valid, unlocked state with no recorded failures.
type SecurityState struct {
	Locked         bool            `json:"locked"`
	LockExpiresAt  *time.Time      `json:"lock_expires_at,omitempty"`
	FailedAttempts []FailedAttempt `json:"failed_attempts"`
}

// Normalize enforces the stored-state invariants: an unlocked account never
// carries an expiry, and the attempt log is never nil.
func (s *SecurityState) Normalize() {
	if !s.Locked {
		s.LockExpiresAt = nil
	}
	if s.FailedAttempts == nil {
		s.FailedAttempts = []FailedAttempt{}
	}
}

// LockState reports the state machine position as stored, without evaluating expiry.
func (s *SecurityState) LockState() LockState {
	switch {
	case !s.Locked:
		return LockStateUnlocked
	case s.LockExpiresAt == nil:
		return LockStateLockedIndefinite
	default:
		return LockStateLockedTimed
	}
}

// FirstAttempt returns the oldest recorded failure, if any.
func (s *SecurityState) FirstAttempt() (FailedAttempt, bool) {
	if len(s.FailedAttempts) == 0 {
		return FailedAttempt{}, false
	}
	return s.FailedAttempts[0], true
}

// AddFailedAttempt appends a failure to the attempt log.
func (s *SecurityState) AddFailedAttempt(at time.Time, sourceAddress string) {
	if sourceAddress == "" {
		sourceAddress = UnknownSourceAddress
	}
	s.FailedAttempts = append(s.FailedAttempts, FailedAttempt{
		Time:          at,
		SourceAddress: sourceAddress,
	})
}

// ResetFailedAttempts clears the attempt log.
func (s *SecurityState) ResetFailedAttempts() {
	s.FailedAttempts = []FailedAttempt{}
}

// Lock marks the account locked. A nil expiresAt makes the lock indefinite.
func (s *SecurityState) Lock(expiresAt *time.Time) {
	s.Locked = true
	if expiresAt == nil {
		s.LockExpiresAt = nil
		return
	}
	t := *expiresAt
	s.LockExpiresAt = &t
}

// Unlock fully resets the state: lock, expiry and attempt log.
func (s *SecurityState) Unlock() {
	s.Locked = false
	s.LockExpiresAt = nil
	s.ResetFailedAttempts()
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *SecurityState) Clone() *SecurityState {
	if s == nil {
		return nil
	}
	clone := &SecurityState{
		Locked:         s.Locked,
		FailedAttempts: make([]FailedAttempt, len(s.FailedAttempts)),
	}
	copy(clone.FailedAttempts, s.FailedAttempts)
	if s.LockExpiresAt != nil {
		t := *s.LockExpiresAt
		clone.LockExpiresAt = &t
	}
	return clone
}
