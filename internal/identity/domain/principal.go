// Package domain holds the identity types shared by the resolver, stores, and handlers.
package domain

import (
	"errors"
	"time"
)

// Role selects which identity store an authentication attempt is resolved against.
type Role string

const (
	RoleStudent    Role = "student"
	RoleSupervisor Role = "supervisor"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
)

// ErrInvalidRole is returned when a role selector does not map to a known identity store.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole maps a role selector to a Role. Unknown selectors return ErrInvalidRole.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleSupervisor, RoleStaff, RoleAdmin:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// Status is the lifecycle state of an account record.
type Status string

const (
	// StatusPending marks an account created with a provisional secret that has
	// not completed first-use verification.
	StatusPending Status = "pending"
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Account is the identity-store record backing a Principal. Each role's store
// owns its own account table; the session subsystem only ever holds the
// Principal projection.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	Status       Status
	Verified     bool
	// Provisional is true while the account still holds the temporary secret
	// it was created with. Login succeeds but only the password-change
	// endpoint is reachable until the secret is replaced.
	Provisional bool
	// ValidFrom/ValidUntil bound the account's validity window; nil means unbounded.
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Principal is the projection of an Account that the session subsystem carries.
type Principal struct {
	ID                 string `json:"id"`
	DisplayName        string `json:"displayName"`
	Role               Role   `json:"role"`
	Email              string `json:"email"`
	Verified           bool   `json:"verified"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

// Principal returns the session-facing projection of the account.
func (a *Account) Principal() *Principal {
	return &Principal{
		ID:                 a.ID,
		DisplayName:        a.DisplayName,
		Role:               a.Role,
		Email:              a.Email,
		Verified:           a.Verified,
		MustChangePassword: a.Provisional,
	}
}

// ExpiredAt reports whether the account's validity window excludes t.
func (a *Account) ExpiredAt(t time.Time) bool {
	if a.ValidFrom != nil && t.Before(*a.ValidFrom) {
		return true
	}
	if a.ValidUntil != nil && !t.Before(*a.ValidUntil) {
		return true
	}
	return false
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	return nil
}
