package repository

import (
	"context"
	"sync"

	"postgrad-portal/backend/internal/audit/domain"
)

// MemoryRepository is an in-memory audit repository for tests and DB-less runs.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

// NewMemoryRepository returns an empty in-memory audit repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create appends one audit entry.
func (r *MemoryRepository) Create(ctx context.Context, e *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e2 := *e
	r.entries = append(r.entries, &e2)
	return nil
}

// ListByPrincipal returns entries for the principal, newest last (insertion order).
func (r *MemoryRepository) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for _, e := range r.entries {
		if e.PrincipalID == principalID {
			e2 := *e
			out = append(out, &e2)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// All returns every entry; test helper.
func (r *MemoryRepository) All() []*domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}
