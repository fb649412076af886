// Package service implements login, refresh, logout, and the silent who-am-I
// lookup over the identity resolver and the session store.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"postgrad-portal/backend/internal/audit"
	identitydomain "postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/identity/resolver"
	"postgrad-portal/backend/internal/notify"
	"postgrad-portal/backend/internal/security"
	sessiondomain "postgrad-portal/backend/internal/session/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
var (
	// ErrInvalidRefreshToken means the caller is fully logged out, not "retry later".
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByPrincipal(ctx context.Context, principalID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// LoginResult holds the outcome of a successful Login.
type LoginResult struct {
	Principal        *identitydomain.Principal
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService wires the identity resolver, token provider, and session store.
type AuthService struct {
	resolver *resolver.Resolver
	sessions SessionRepo
	tokens   *security.TokenProvider
	audit    audit.AuditLogger
	notify   notify.Sink
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger and sink may be nil; then those side channels are skipped.
func NewAuthService(res *resolver.Resolver, sessions SessionRepo, tokens *security.TokenProvider, auditLogger audit.AuditLogger, sink notify.Sink) *AuthService {
	return &AuthService{
		resolver: res,
		sessions: sessions,
		tokens:   tokens,
		audit:    auditLogger,
		notify:   sink,
	}
}

// Login authenticates against the role-selected identity store, creates a
// session record for the refresh token, and returns both tokens.
func (s *AuthService) Login(ctx context.Context, role identitydomain.Role, email, password, ip string) (*LoginResult, error) {
	principal, err := s.resolver.Authenticate(ctx, role, email, password)
	if err != nil {
		s.logEvent(ctx, "", string(role), "login_failure", "auth", "")
		return nil, err
	}

	sessionID := uuid.New().String()
	refreshToken, jti, refreshExp, err := s.tokens.IssueRefresh(principal.ID, string(role), sessionID)
	if err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(principal.ID, string(role), sessionID, principal.MustChangePassword)
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		ID:               sessionID,
		PrincipalID:      principal.ID,
		Role:             role,
		RefreshJti:       jti,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		ExpiresAt:        refreshExp,
		IPAddress:        ip,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.logEvent(ctx, principal.ID, string(role), "login", "auth", "")
	if principal.Verified && principal.MustChangePassword {
		// First-use verification just flipped; the account became active on this login.
		notify.PublishAsync(s.notify, notify.Notice{
			Event:       notify.EventAccountVerified,
			PrincipalID: principal.ID,
			Role:        string(role),
			Email:       principal.Email,
			OccurredAt:  time.Now().UTC(),
		})
	}

	return &LoginResult{
		Principal:        principal,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// RefreshResult holds the new access token minted by Refresh.
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	PrincipalID     string
	Role            identitydomain.Role
}

// Refresh validates the refresh token against its session record and mints a
// new access token bound to the same subject and role. The refresh token is
// not rotated. Any validation failure returns ErrInvalidRefreshToken and the
// caller must treat the session as terminated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	principalID, role, sessionID, jti, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if sess == nil || !sess.Usable(now) {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		// A validly signed token carrying a stale jti means a copy is in
		// circulation; revoke everything for the principal.
		_ = s.sessions.RevokeAllByPrincipal(ctx, principalID)
		s.logEvent(ctx, principalID, string(role), "refresh_reuse", "auth", "")
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	_ = s.sessions.UpdateLastSeen(ctx, sessionID, now)

	// Re-read the restriction flag so a finished password change clears it on
	// the next refresh instead of sticking for the token lifetime.
	mustChange := false
	if p, err := s.resolver.Lookup(ctx, identitydomain.Role(role), principalID); err == nil {
		mustChange = p.MustChangePassword
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(principalID, string(role), sessionID, mustChange)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, principalID, string(role), "refresh", "auth", "")
	return &RefreshResult{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExp,
		PrincipalID:     principalID,
		Role:            identitydomain.Role(role),
	}, nil
}

// Logout revokes the session identified by the refresh token, or by sessionID
// when the token is absent or invalid. Idempotent: an invalid token, an
// unknown session, or a repeat call all succeed.
func (s *AuthService) Logout(ctx context.Context, refreshToken, sessionID string) error {
	id := sessionID
	if refreshToken != "" {
		if pid, role, sid, _, err := s.tokens.ValidateRefresh(refreshToken); err == nil {
			id = sid
			s.logEvent(ctx, pid, role, "logout", "auth", "")
		}
	}
	if id == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, id)
}

// WhoAmI returns the current principal projection for an authenticated subject.
func (s *AuthService) WhoAmI(ctx context.Context, role identitydomain.Role, principalID string) (*identitydomain.Principal, error) {
	return s.resolver.Lookup(ctx, role, principalID)
}

// ChangePassword replaces the caller's secret after verifying the current one,
// clearing the must-change-password restriction.
func (s *AuthService) ChangePassword(ctx context.Context, role identitydomain.Role, principalID, current, next string) error {
	if err := s.resolver.ChangePassword(ctx, role, principalID, current, next); err != nil {
		return err
	}
	s.logEvent(ctx, principalID, string(role), "password_change", "auth", "")
	p, err := s.resolver.Lookup(ctx, role, principalID)
	if err == nil {
		notify.PublishAsync(s.notify, notify.Notice{
			Event:       notify.EventPasswordChanged,
			PrincipalID: principalID,
			Role:        string(role),
			Email:       p.Email,
			OccurredAt:  time.Now().UTC(),
		})
	}
	return nil
}

func (s *AuthService) logEvent(ctx context.Context, principalID, role, action, resource, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, principalID, role, action, resource, metadata)
	}
}
