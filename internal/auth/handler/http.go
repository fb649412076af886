// Package handler exposes the auth service over HTTP with cookie transport.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	identitydomain "postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/identity/resolver"
	"postgrad-portal/backend/internal/server/httpctx"

	"postgrad-portal/backend/internal/auth/service"
)

// Machine-readable error codes returned in the "error" field.
const (
	codeInvalidRole        = "invalid_role"
	codeInvalidCredentials = "invalid_credentials"
	codeAccountDisabled    = "account_disabled"
	codeAccountExpired     = "account_expired"
	codeAccountUnverified  = "account_unverified"
	codeRefreshInvalid     = "refresh_expired_or_invalid"
	codeUnauthenticated    = "unauthenticated"
	codeInternal           = "internal"
)

// AuthHandler serves login, refresh, logout, me, and password endpoints.
type AuthHandler struct {
	svc     *service.AuthService
	cookies CookieWriter
}

// NewAuthHandler returns an AuthHandler writing cookies via the given writer.
func NewAuthHandler(svc *service.AuthService, cookies CookieWriter) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

// Register mounts the auth routes on mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /login/{role}", h.Login)
	mux.HandleFunc("POST /refresh", h.Refresh)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /me", h.Me)
	mux.HandleFunc("POST /password", h.ChangePassword)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type principalResponse struct {
	Principal *identitydomain.Principal `json:"principal"`
}

// Login authenticates against the store selected by the {role} path segment
// and sets both auth cookies on success.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	role, err := identitydomain.ParseRole(r.PathValue("role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRole)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidCredentials)
		return
	}
	res, err := h.svc.Login(r.Context(), role, req.Email, req.Password, httpctx.GetClientIP(r.Context()))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	h.cookies.SetAccess(w, res.AccessToken, res.AccessExpiresAt)
	h.cookies.SetRefresh(w, res.RefreshToken, res.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, principalResponse{Principal: res.Principal})
}

// Refresh exchanges the refresh cookie for a new access cookie. Any failure is
// 403 with the cookies cleared: the client must treat it as a terminated
// session, not a transient error.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, RefreshCookieName)
	res, err := h.svc.Refresh(r.Context(), token)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidRefreshToken) {
			log.Printf("auth: refresh failed: %v", err)
		}
		h.cookies.Clear(w)
		writeError(w, http.StatusForbidden, codeRefreshInvalid)
		return
	}
	h.cookies.SetAccess(w, res.AccessToken, res.AccessExpiresAt)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Logout revokes the current session and clears both cookies. Always 200, even
// when no valid session exists, so repeated logouts are harmless. The refresh
// cookie is path-scoped to /refresh and normally absent here; revocation runs
// off the session ID the auth middleware pulled from the access token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, RefreshCookieName)
	sessionID, _ := httpctx.GetSessionID(r.Context())
	if err := h.svc.Logout(r.Context(), token, sessionID); err != nil {
		log.Printf("auth: logout revoke failed: %v", err)
	}
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the principal for the authenticated caller. Used by the client's
// silent resume at app start.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principalID, ok := httpctx.GetPrincipalID(r.Context())
	role, ok2 := httpctx.GetRole(r.Context())
	if !ok || !ok2 {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	p, err := h.svc.WhoAmI(r.Context(), role, principalID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, principalResponse{Principal: p})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the caller's password. This is the only mutating
// endpoint available to a principal under the must-change-password restriction.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principalID, ok := httpctx.GetPrincipalID(r.Context())
	role, ok2 := httpctx.GetRole(r.Context())
	if !ok || !ok2 {
		writeError(w, http.StatusUnauthorized, codeUnauthenticated)
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, codeInvalidCredentials)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), role, principalID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeAuthError maps resolver sentinels onto HTTP statuses and error codes.
// All credential and account-state failures are 401 so the login form shows a
// single inline error class; only the code differs.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identitydomain.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, codeInvalidRole)
	case errors.Is(err, resolver.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials)
	case errors.Is(err, resolver.ErrAccountDisabled):
		writeError(w, http.StatusUnauthorized, codeAccountDisabled)
	case errors.Is(err, resolver.ErrAccountExpired):
		writeError(w, http.StatusUnauthorized, codeAccountExpired)
	case errors.Is(err, resolver.ErrAccountUnverified):
		writeError(w, http.StatusUnauthorized, codeAccountUnverified)
	default:
		log.Printf("auth: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, codeInternal)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
