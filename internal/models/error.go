package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrAccountSuspended = errors.New("account is suspended")
	ErrAccountLocked    = errors.New("account is locked")

	// Lockout guard errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrStoreUnavailable = errors.New("security state store unavailable")
	ErrInvalidPolicy    = errors.New("invalid lockout policy")
)

// LockoutError carries the guard decision that denied an authentication attempt.
// It unwraps to ErrAccountLocked so callers can match it with errors.Is.
type LockoutError struct {
	Decision Decision
}

func (e *LockoutError) Error() string {
	if e.Decision.Reason == ReasonLockedWithExpiry {
		return "account is locked: retry after " + e.Decision.RetryAfter.String()
	}
	return "account is locked"
}

func (e *LockoutError) Unwrap() error {
	return ErrAccountLocked
}
