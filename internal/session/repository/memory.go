package repository

import (
	"context"
	"sync"
	"time"

	"postgrad-portal/backend/internal/session/domain"
)

// MemoryRepository is an in-memory session repository. Used in tests and when
// the server runs without a database; inserts are atomic under one mutex.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[string]*domain.Session
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[string]*domain.Session)}
}

// GetByID returns the session for id, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

// Create persists the session.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

// Revoke marks the session as revoked; idempotent.
func (r *MemoryRepository) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok && s.RevokedAt == nil {
		t := time.Now().UTC()
		s.RevokedAt = &t
	}
	return nil
}

// RevokeAllByPrincipal revokes every non-revoked session for the principal.
func (r *MemoryRepository) RevokeAllByPrincipal(ctx context.Context, principalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := time.Now().UTC()
	for _, s := range r.m {
		if s.PrincipalID == principalID && s.RevokedAt == nil {
			s.RevokedAt = &t
		}
	}
	return nil
}

// UpdateLastSeen sets the session's last-seen timestamp.
func (r *MemoryRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

// ListExpiringBefore returns non-revoked sessions expiring before t.
func (r *MemoryRepository) ListExpiringBefore(ctx context.Context, t time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.m {
		if s.RevokedAt == nil && s.ExpiresAt.Before(t) {
			s2 := *s
			out = append(out, &s2)
		}
	}
	return out, nil
}

// DeleteEndedBefore removes sessions revoked or expired before t.
func (r *MemoryRepository) DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.m {
		if (s.RevokedAt != nil && s.RevokedAt.Before(t)) || s.ExpiresAt.Before(t) {
			delete(r.m, id)
			n++
		}
	}
	return n, nil
}
