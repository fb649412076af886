// Package resolver authenticates credentials against the role-selected
// identity store and applies account-state policy.
package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/identity/store"
	"postgrad-portal/backend/internal/security"
)

// Sentinel errors for authentication; the handler maps them to HTTP statuses.
// ErrInvalidCredentials covers both "no such account" and "wrong password" so
// responses cannot be used to enumerate emails.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrAccountExpired     = errors.New("account expired")
	ErrAccountUnverified  = errors.New("account unverified")
)

// Resolver locates the matching account across the role-keyed identity stores
// and verifies the secret.
type Resolver struct {
	stores *store.Registry
	hasher *security.Hasher
	nowF   func() time.Time
}

// New returns a Resolver over the given store registry.
func New(stores *store.Registry, hasher *security.Hasher) *Resolver {
	return &Resolver{stores: stores, hasher: hasher, nowF: func() time.Time { return time.Now().UTC() }}
}

// Authenticate verifies email/password against the store selected by role and
// returns the principal projection.
//
// Account-state policy runs only after the secret is verified: disabled wins
// over expired, expired over unverified. An unverified account whose only
// blocker is first-use verification of a provisional secret is activated
// exactly once and the login succeeds with MustChangePassword set; callers
// must treat that principal as restricted to the password-change endpoint.
func (r *Resolver) Authenticate(ctx context.Context, role domain.Role, email, password string) (*domain.Principal, error) {
	st, err := r.stores.For(role)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	acct, err := st.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		// Burn a bcrypt comparison so a miss costs the same as a mismatch.
		_ = r.hasher.CompareDummy([]byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := r.hasher.Compare(acct.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if acct.Status == domain.StatusDisabled {
		return nil, ErrAccountDisabled
	}
	if acct.ExpiredAt(r.nowF()) {
		return nil, ErrAccountExpired
	}
	if !acct.Verified {
		if acct.Status == domain.StatusPending && acct.Provisional {
			if err := st.Activate(ctx, acct.ID); err != nil {
				return nil, err
			}
			acct.Status = domain.StatusActive
			acct.Verified = true
		} else {
			return nil, ErrAccountUnverified
		}
	}
	return acct.Principal(), nil
}

// Lookup returns the current principal projection for an already-authenticated
// subject, or ErrInvalidCredentials if the account no longer exists or is no
// longer active.
func (r *Resolver) Lookup(ctx context.Context, role domain.Role, id string) (*domain.Principal, error) {
	st, err := r.stores.For(role)
	if err != nil {
		return nil, err
	}
	acct, err := st.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Status != domain.StatusActive {
		return nil, ErrInvalidCredentials
	}
	if acct.ExpiredAt(r.nowF()) {
		return nil, ErrAccountExpired
	}
	return acct.Principal(), nil
}

// ChangePassword verifies the current secret and replaces it, clearing the
// provisional flag. The only path out of the MustChangePassword restriction.
func (r *Resolver) ChangePassword(ctx context.Context, role domain.Role, id, current, next string) error {
	st, err := r.stores.For(role)
	if err != nil {
		return err
	}
	acct, err := st.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrInvalidCredentials
	}
	if err := r.hasher.Compare(acct.PasswordHash, []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := r.hasher.Hash([]byte(next))
	if err != nil {
		return err
	}
	return st.UpdatePassword(ctx, acct.ID, hash)
}
