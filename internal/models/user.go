package models

import (
	"time"
)

// User statuses recognised by the host login flow
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDisabled  = "disabled"
)

// User is the host's account record. The lockout guard only ever sees its ID.
type User struct {
	ID           string
	Email        string
	PasswordHash string // NULL for accounts without a local password
	Name         string
	Role         string // e.g., "user", "admin"
	Status       string // "active", "suspended", "disabled"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
