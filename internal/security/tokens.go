package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTTLOrder is returned when the access TTL is not shorter than the refresh TTL.
	ErrTTLOrder = errors.New("access TTL must be shorter than refresh TTL")
)

// Token type values carried in the typ claim. Each validator rejects the
// other type so a refresh token can never authenticate as an access token.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AccessClaims holds JWT claims for the access token. Subject is the principal ID.
// PasswordChange marks a principal still on a provisional secret; middleware
// restricts such callers to the password-change endpoint.
type AccessClaims struct {
	jwt.RegisteredClaims
	TokenType      string `json:"typ"`
	Role           string `json:"role"`
	SessionID      string `json:"sid"`
	PasswordChange bool   `json:"pwc,omitempty"`
}

// RefreshClaims holds JWT claims for the refresh token (includes jti so the
// server-side session record binds to exactly one outstanding refresh token).
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on every parse. accessTTL
// must be strictly shorter than refreshTTL.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenProvider, error) {
	if accessTTL <= 0 || refreshTTL <= 0 || accessTTL >= refreshTTL {
		return nil, ErrTTLOrder
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT for the given principal, role, and session.
// Returns the token string, its jti, and expiration time. Issuance never
// touches the identity store.
func (p *TokenProvider) IssueAccess(principalID, role, sessionID string, mustChangePassword bool) (token string, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   principalID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType:      tokenTypeAccess,
		Role:           role,
		SessionID:      sessionID,
		PasswordChange: mustChangePassword,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT and returns the token, its jti,
// and expiration time. Caller must store the jti (and the token hash) on the
// session record so logout can invalidate the refresh token early.
func (p *TokenProvider) IssueRefresh(principalID, role, sessionID string) (token, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   principalID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: tokenTypeRefresh,
		Role:      role,
		SessionID: sessionID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func (p *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return p.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return p.publicKey, nil
	}
	return nil, ErrInvalidToken
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud).
// Returns principalID, role, sessionID, jti, or ErrInvalidToken.
func (p *TokenProvider) ValidateRefresh(tokenString string) (principalID, role, sessionID, jti string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, p.keyFunc)
	if err != nil {
		return "", "", "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return "", "", "", "", ErrInvalidToken
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", "", "", "", ErrInvalidToken
	}
	if !p.issuedByUs(claims.Issuer, claims.Audience) {
		return "", "", "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Role, claims.SessionID, claims.ID, nil
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
// Returns principalID, role, sessionID, and the password-change restriction
// flag, or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (principalID, role, sessionID string, mustChangePassword bool, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.keyFunc)
	if err != nil {
		return "", "", "", false, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", "", false, ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess {
		return "", "", "", false, ErrInvalidToken
	}
	if !p.issuedByUs(claims.Issuer, claims.Audience) {
		return "", "", "", false, ErrInvalidToken
	}
	return claims.Subject, claims.Role, claims.SessionID, claims.PasswordChange, nil
}

func (p *TokenProvider) issuedByUs(issuer string, audience jwt.ClaimStrings) bool {
	if issuer != p.issuer {
		return false
	}
	for _, a := range audience {
		if a == p.audience {
			return true
		}
	}
	return false
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
