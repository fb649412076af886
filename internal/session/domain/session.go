// Package domain holds the server-side session record backing refresh-token revocation.
package domain

import (
	"time"

	identitydomain "postgrad-portal/backend/internal/identity/domain"
)

// Session is the server-side record for one issued refresh token. Access
// tokens stay stateless; the session exists so logout can invalidate the
// refresh token before it expires.
type Session struct {
	ID               string
	PrincipalID      string
	Role             identitydomain.Role
	RefreshJti       string // jti of the outstanding refresh token
	RefreshTokenHash string // SHA-256 hash of the refresh token; raw token is never stored
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	LastSeenAt       *time.Time
	IPAddress        string
	CreatedAt        time.Time
}

// Usable reports whether the session can still mint access tokens at t.
func (s *Session) Usable(t time.Time) bool {
	return s.RevokedAt == nil && t.Before(s.ExpiresAt)
}
