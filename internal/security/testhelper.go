package security

import "time"

// NewTestTokenProvider returns a TokenProvider signing with a fresh ephemeral
// ECDSA key and the portal's issuer/audience. For unit tests only; every call
// gets its own key, so tokens from one provider never validate on another.
func NewTestTokenProvider() (*TokenProvider, error) {
	signer, pub, err := GenerateEphemeralKey()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(signer, pub, "portal-auth", "portal-api", 15*time.Minute, 24*time.Hour)
}
