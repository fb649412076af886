package repository

import (
	"context"
	"database/sql"

	"postgrad-portal/backend/internal/audit/domain"
)

// PostgresRepository persists audit entries in the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one audit entry.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, principal_id, role, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.PrincipalID, e.Role, e.Action, e.Resource, e.IP, e.Metadata, e.CreatedAt)
	return err
}

// ListByPrincipal returns the most recent entries for the principal, newest first.
func (r *PostgresRepository) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, principal_id, role, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE principal_id = $1 ORDER BY created_at DESC LIMIT $2`,
		principalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.PrincipalID, &e.Role, &e.Action, &e.Resource, &e.IP, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
