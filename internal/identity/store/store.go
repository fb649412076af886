// Package store defines the per-role identity stores the resolver dispatches over.
// Students, supervisors, staff, and administrators live in independent tables;
// each store owns exactly one of them.
package store

import (
	"context"

	"postgrad-portal/backend/internal/identity/domain"
)

// Store is the capability one identity store exposes to the resolver.
// FindByEmail and FindByID return (nil, nil) when no record matches; errors are
// reserved for store failures.
type Store interface {
	// Role returns the role whose accounts this store holds.
	Role() domain.Role
	// FindByEmail looks up the single account with the given email.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindByID looks up the account by primary key.
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// Activate flips a pending account to active and verified. The transition
	// applies at most once: an account that is not pending is left untouched.
	Activate(ctx context.Context, id string) error
	// UpdatePassword replaces the stored hash and clears the provisional flag.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Registry maps role selectors to their identity stores. The set of stores is
// closed at construction; lookups for unknown roles fail with ErrInvalidRole.
type Registry struct {
	stores map[domain.Role]Store
}

// NewRegistry builds a Registry from the given stores, keyed by each store's role.
func NewRegistry(stores ...Store) *Registry {
	m := make(map[domain.Role]Store, len(stores))
	for _, s := range stores {
		m[s.Role()] = s
	}
	return &Registry{stores: m}
}

// For returns the store for the given role, or ErrInvalidRole if none is registered.
func (r *Registry) For(role domain.Role) (Store, error) {
	s, ok := r.stores[role]
	if !ok {
		return nil, domain.ErrInvalidRole
	}
	return s, nil
}
