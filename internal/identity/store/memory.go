package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"postgrad-portal/backend/internal/identity/domain"
)

// MemoryStore is an in-memory Store implementation. Used in tests and when the
// server runs without a database.
type MemoryStore struct {
	mu   sync.Mutex
	role domain.Role
	m    map[string]*domain.Account // keyed by id
}

// NewMemoryStore returns an empty in-memory store for the given role.
func NewMemoryStore(role domain.Role) *MemoryStore {
	return &MemoryStore{role: role, m: make(map[string]*domain.Account)}
}

// Role returns the role whose accounts this store holds.
func (s *MemoryStore) Role() domain.Role { return s.role }

// Put inserts or replaces an account. The account's role is forced to the store's role.
func (s *MemoryStore) Put(a *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a2 := *a
	a2.Role = s.role
	s.m[a2.ID] = &a2
}

// FindByEmail returns the account for email, or nil if not found.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.m {
		if strings.EqualFold(a.Email, email) {
			a2 := *a
			return &a2, nil
		}
	}
	return nil, nil
}

// FindByID returns the account for id, or nil if not found.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.m[id]; ok {
		a2 := *a
		return &a2, nil
	}
	return nil, nil
}

// Activate flips a pending account to active and verified, at most once.
func (s *MemoryStore) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.m[id]; ok && a.Status == domain.StatusPending {
		a.Status = domain.StatusActive
		a.Verified = true
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// UpdatePassword replaces the stored hash and clears the provisional flag.
func (s *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.m[id]; ok {
		a.PasswordHash = passwordHash
		a.Provisional = false
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}
