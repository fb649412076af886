package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"postgrad-portal/backend/internal/identity/domain"
)

// roleTables maps each role to its account table. The four tables share one
// column layout but are owned by independent parts of the portal schema.
var roleTables = map[domain.Role]string{
	domain.RoleStudent:    "students",
	domain.RoleSupervisor: "supervisors",
	domain.RoleStaff:      "staff_members",
	domain.RoleAdmin:      "administrators",
}

const accountColumns = "id, email, display_name, password_hash, status, verified, provisional, valid_from, valid_until, created_at, updated_at"

// PostgresStore is a Store backed by one role's account table.
type PostgresStore struct {
	db    *sql.DB
	role  domain.Role
	table string
}

// NewPostgresStore returns a store over the account table for the given role.
func NewPostgresStore(db *sql.DB, role domain.Role) (*PostgresStore, error) {
	table, ok := roleTables[role]
	if !ok {
		return nil, domain.ErrInvalidRole
	}
	return &PostgresStore{db: db, role: role, table: table}, nil
}

// Role returns the role whose accounts this store holds.
func (s *PostgresStore) Role() domain.Role { return s.role }

// FindByEmail returns the account for email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE email = $1", accountColumns, s.table)
	return s.scanOne(s.db.QueryRowContext(ctx, q, email))
}

// FindByID returns the account for id, or nil if not found.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", accountColumns, s.table)
	return s.scanOne(s.db.QueryRowContext(ctx, q, id))
}

// Activate flips a pending account to active and verified. The WHERE clause
// restricts the update to pending rows so the transition applies at most once.
func (s *PostgresStore) Activate(ctx context.Context, id string) error {
	q := fmt.Sprintf(
		"UPDATE %s SET status = $1, verified = TRUE, updated_at = $2 WHERE id = $3 AND status = $4",
		s.table)
	_, err := s.db.ExecContext(ctx, q, domain.StatusActive, time.Now().UTC(), id, domain.StatusPending)
	return err
}

// UpdatePassword replaces the stored hash and clears the provisional flag.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	q := fmt.Sprintf(
		"UPDATE %s SET password_hash = $1, provisional = FALSE, updated_at = $2 WHERE id = $3",
		s.table)
	_, err := s.db.ExecContext(ctx, q, passwordHash, time.Now().UTC(), id)
	return err
}

func (s *PostgresStore) scanOne(row *sql.Row) (*domain.Account, error) {
	var (
		a          domain.Account
		validFrom  sql.NullTime
		validUntil sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Status,
		&a.Verified, &a.Provisional, &validFrom, &validUntil,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Role = s.role
	if validFrom.Valid {
		a.ValidFrom = &validFrom.Time
	}
	if validUntil.Valid {
		a.ValidUntil = &validUntil.Time
	}
	return &a, nil
}
