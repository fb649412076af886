package repository

import (
	"context"
	"time"

	"postgrad-portal/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Entries are write-once except
// for revocation and last-seen updates; concurrent insert/lookup must not lose
// updates.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByPrincipal(ctx context.Context, principalID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	// ListExpiringBefore returns non-revoked sessions whose refresh expiry
	// falls before t. Used by the reminder job.
	ListExpiringBefore(ctx context.Context, t time.Time) ([]*domain.Session, error)
	// DeleteEndedBefore removes sessions revoked or expired before t.
	DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error)
}
