package handler

import (
	"net/http"
	"time"
)

// Cookie names shared with the browser client.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// refreshCookiePath scopes the refresh cookie so it only rides on calls to
// the refresh and logout endpoints, never on ordinary API traffic.
const refreshCookiePath = "/refresh"

// CookieWriter stamps auth cookies with environment-appropriate attributes.
// Local development runs without TLS, so Secure is dropped there; everywhere
// else both cookies are Secure and HttpOnly.
type CookieWriter struct {
	Domain string
	// Dev relaxes Secure and uses SameSite=Lax so the portal works on
	// plain-HTTP localhost.
	Dev bool
}

func (c CookieWriter) sameSite() http.SameSite {
	if c.Dev {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

// SetAccess writes the access-token cookie, expiring with the token.
func (c CookieWriter) SetAccess(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   !c.Dev,
		SameSite: c.sameSite(),
	})
}

// SetRefresh writes the refresh-token cookie scoped to the refresh path.
func (c CookieWriter) SetRefresh(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Domain:   c.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   !c.Dev,
		SameSite: c.sameSite(),
	})
}

// Clear expires both auth cookies. MaxAge -1 tells the browser to delete
// immediately; attributes must match the originals or the delete is ignored.
func (c CookieWriter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !c.Dev,
		SameSite: c.sameSite(),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !c.Dev,
		SameSite: c.sameSite(),
	})
}
