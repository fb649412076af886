package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"postgrad-portal/backend/internal/audit"
	auditrepo "postgrad-portal/backend/internal/audit/repository"
	identitydomain "postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/identity/resolver"
	"postgrad-portal/backend/internal/identity/store"
	"postgrad-portal/backend/internal/security"
	sessionrepo "postgrad-portal/backend/internal/session/repository"
)

func newTestService(t *testing.T) (*AuthService, *sessionrepo.MemoryRepository, *store.MemoryStore, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	hasher := security.NewHasher(4)
	students := store.NewMemoryStore(identitydomain.RoleStudent)
	registry := store.NewRegistry(
		students,
		store.NewMemoryStore(identitydomain.RoleSupervisor),
		store.NewMemoryStore(identitydomain.RoleStaff),
		store.NewMemoryStore(identitydomain.RoleAdmin),
	)
	sessions := sessionrepo.NewMemoryRepository()
	svc := NewAuthService(resolver.New(registry, hasher), sessions, tokens, nil, nil)
	return svc, sessions, students, tokens
}

func seedStudent(t *testing.T, students *store.MemoryStore, hasher *security.Hasher, id, email, password string) {
	t.Helper()
	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	students.Put(&identitydomain.Account{
		ID:           id,
		Email:        email,
		DisplayName:  "Test Student",
		PasswordHash: hash,
		Status:       identitydomain.StatusActive,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	})
}

func TestAuthService_LoginCreatesSession(t *testing.T) {
	svc, sessions, students, tokens := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")

	res, err := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.Principal == nil || res.Principal.ID != "s-1" {
		t.Fatalf("unexpected principal: %+v", res.Principal)
	}
	if !res.RefreshExpiresAt.After(res.AccessExpiresAt) {
		t.Fatal("refresh token should outlive access token")
	}

	_, _, sid, jti, err := tokens.ValidateRefresh(res.RefreshToken)
	if err != nil {
		t.Fatalf("validate refresh: %v", err)
	}
	sess, err := sessions.GetByID(context.Background(), sid)
	if err != nil || sess == nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if sess.RefreshJti != jti {
		t.Fatalf("session jti %q != token jti %q", sess.RefreshJti, jti)
	}
	if !security.RefreshTokenHashEqual(res.RefreshToken, sess.RefreshTokenHash) {
		t.Fatal("stored hash does not match issued refresh token")
	}
}

func TestAuthService_LoginFailurePropagates(t *testing.T) {
	svc, _, students, _ := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")

	_, err := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "wrong", "")
	if !errors.Is(err, resolver.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_RefreshMintsNewAccessToken(t *testing.T) {
	svc, _, students, tokens := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")
	res, err := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	ref, err := svc.Refresh(context.Background(), res.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ref.AccessToken == "" {
		t.Fatal("expected a new access token")
	}
	if ref.PrincipalID != "s-1" || ref.Role != identitydomain.RoleStudent {
		t.Fatalf("subject mismatch: %s/%s", ref.PrincipalID, ref.Role)
	}

	pid, role, _, _, err := tokens.ValidateAccess(ref.AccessToken)
	if err != nil {
		t.Fatalf("validate new access token: %v", err)
	}
	if pid != "s-1" || role != string(identitydomain.RoleStudent) {
		t.Fatalf("new access token bound to %s/%s", pid, role)
	}
}

func TestAuthService_RefreshRejectsGarbage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.Refresh(context.Background(), tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("token %q: want ErrInvalidRefreshToken, got %v", tok, err)
		}
	}
}

func TestAuthService_RefreshRejectsRevokedSession(t *testing.T) {
	svc, sessions, students, tokens := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")
	res, _ := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", "")

	_, _, sid, _, _ := tokens.ValidateRefresh(res.RefreshToken)
	if err := sessions.Revoke(context.Background(), sid); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("want ErrInvalidRefreshToken after revocation, got %v", err)
	}
}

func TestAuthService_RefreshReuseRevokesAllSessions(t *testing.T) {
	svc, sessions, students, tokens := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")

	first, _ := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", "")
	second, _ := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", "")

	_, _, sid1, _, _ := tokens.ValidateRefresh(first.RefreshToken)
	_, _, sid2, _, _ := tokens.ValidateRefresh(second.RefreshToken)

	// Swap the stored jti for the first session to simulate a stale copy of
	// the token being replayed after the record moved on.
	sess, _ := sessions.GetByID(context.Background(), sid1)
	sess.RefreshJti = "rotated-away"
	sess.RefreshTokenHash = ""
	if err := sessions.Create(context.Background(), sess); err != nil {
		t.Fatalf("update session: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("want ErrInvalidRefreshToken on reuse, got %v", err)
	}

	// Reuse detection revokes every session for the principal.
	for _, sid := range []string{sid1, sid2} {
		s, _ := sessions.GetByID(context.Background(), sid)
		if s.RevokedAt == nil {
			t.Fatalf("session %s should be revoked after reuse detection", sid)
		}
	}
	if _, err := svc.Refresh(context.Background(), second.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("second session should no longer refresh, got %v", err)
	}
}

func TestAuthService_RefreshUpdatesLastSeen(t *testing.T) {
	svc, sessions, students, tokens := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")
	res, _ := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", "")

	if _, err := svc.Refresh(context.Background(), res.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	_, _, sid, _, _ := tokens.ValidateRefresh(res.RefreshToken)
	sess, _ := sessions.GetByID(context.Background(), sid)
	if sess.LastSeenAt == nil {
		t.Fatal("refresh should record last-seen")
	}
}

func TestAuthService_LogoutIsIdempotent(t *testing.T) {
	svc, sessions, students, tokens := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")
	res, _ := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", "")

	if err := svc.Logout(context.Background(), res.RefreshToken, ""); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, _, sid, _, _ := tokens.ValidateRefresh(res.RefreshToken)
	sess, _ := sessions.GetByID(context.Background(), sid)
	if sess.RevokedAt == nil {
		t.Fatal("logout should revoke the session")
	}

	// Repeats and garbage both succeed.
	if err := svc.Logout(context.Background(), res.RefreshToken, ""); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := svc.Logout(context.Background(), "garbage", ""); err != nil {
		t.Fatalf("logout with invalid token: %v", err)
	}
	if err := svc.Logout(context.Background(), "", ""); err != nil {
		t.Fatalf("logout with nothing: %v", err)
	}
}

func TestAuthService_WhoAmI(t *testing.T) {
	svc, _, students, _ := newTestService(t)
	seedStudent(t, students, security.NewHasher(4), "s-1", "ada@uni.example", "pass-1234")

	p, err := svc.WhoAmI(context.Background(), identitydomain.RoleStudent, "s-1")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if p.Email != "ada@uni.example" {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if _, err := svc.WhoAmI(context.Background(), identitydomain.RoleStudent, "nope"); !errors.Is(err, resolver.ErrInvalidCredentials) {
		t.Fatalf("unknown id: want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc, _, students, _ := newTestService(t)
	hasher := security.NewHasher(4)
	seedStudent(t, students, hasher, "s-1", "ada@uni.example", "pass-1234")

	if err := svc.ChangePassword(context.Background(), identitydomain.RoleStudent, "s-1", "wrong", "next-5678"); !errors.Is(err, resolver.ErrInvalidCredentials) {
		t.Fatalf("wrong current password: want ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), identitydomain.RoleStudent, "s-1", "pass-1234", "next-5678"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "next-5678", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAuthService_LoginWritesAudit(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	hasher := security.NewHasher(4)
	students := store.NewMemoryStore(identitydomain.RoleStudent)
	registry := store.NewRegistry(students)
	auditRepo := auditrepo.NewMemoryRepository()
	svc := NewAuthService(resolver.New(registry, hasher), sessionrepo.NewMemoryRepository(), tokens, audit.NewLogger(auditRepo, nil), nil)
	seedStudent(t, students, hasher, "s-1", "ada@uni.example", "pass-1234")

	if _, err := svc.Login(context.Background(), identitydomain.RoleStudent, "ada@uni.example", "pass-1234", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	entries := auditRepo.All()
	if len(entries) != 1 || entries[0].Action != "login" {
		t.Fatalf("expected one login audit entry, got %+v", entries)
	}
}
