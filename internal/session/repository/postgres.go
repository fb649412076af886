package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	identitydomain "postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/session/domain"
)

// PostgresRepository persists sessions in the sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = "id, principal_id, role, refresh_jti, refresh_token_hash, expires_at, revoked_at, last_seen_at, ip_address, created_at"

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = $1", id)
	return scanSession(row)
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, principal_id, role, refresh_jti, refresh_token_hash, expires_at, last_seen_at, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.PrincipalID, string(s.Role), s.RefreshJti, s.RefreshTokenHash,
		s.ExpiresAt, timeToNull(s.LastSeenAt), nullString(s.IPAddress), s.CreatedAt)
	return err
}

// Revoke marks the session with the given id as revoked. Already-revoked
// sessions keep their original revocation time so the operation is idempotent.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL",
		time.Now().UTC(), id)
	return err
}

// RevokeAllByPrincipal revokes every non-revoked session for the principal.
func (r *PostgresRepository) RevokeAllByPrincipal(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = $1 WHERE principal_id = $2 AND revoked_at IS NULL",
		time.Now().UTC(), principalID)
	return err
}

// UpdateLastSeen sets the session's last-seen timestamp.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET last_seen_at = $1 WHERE id = $2", at, id)
	return err
}

// ListExpiringBefore returns non-revoked sessions expiring before t.
func (r *PostgresRepository) ListExpiringBefore(ctx context.Context, t time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE revoked_at IS NULL AND expires_at < $1", t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteEndedBefore removes sessions revoked or expired before t. Returns the
// number of rows deleted.
func (r *PostgresRepository) DeleteEndedBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE (revoked_at IS NOT NULL AND revoked_at < $1) OR expires_at < $1", t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	s, err := scanSessionRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSessionRows(row rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		role      string
		revokedAt sql.NullTime
		lastSeen  sql.NullTime
		ip        sql.NullString
	)
	err := row.Scan(&s.ID, &s.PrincipalID, &role, &s.RefreshJti, &s.RefreshTokenHash,
		&s.ExpiresAt, &revokedAt, &lastSeen, &ip, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Role = identitydomain.Role(role)
	if revokedAt.Valid {
		s.RevokedAt = &revokedAt.Time
	}
	if lastSeen.Valid {
		s.LastSeenAt = &lastSeen.Time
	}
	if ip.Valid {
		s.IPAddress = ip.String
	}
	return &s, nil
}

func timeToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
