package repository

import (
	"context"

	"postgrad-portal/backend/internal/audit/domain"
)

// Repository defines persistence for audit log entries.
type Repository interface {
	Create(ctx context.Context, e *domain.AuditLog) error
	ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*domain.AuditLog, error)
}
