package handlers

import (
	"net/http"

	"github.com/secsim/phishportal/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and sets the session cookie
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.repos.Users.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("failed to look up user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.auditor.RecordRequest(nil, "Failed login attempt", "username: "+req.Username, r.RemoteAddr, r.UserAgent())
		h.writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	session, err := h.repos.Users.CreateSession(user.ID, h.cfg.Auth.SessionTTL)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.Auth.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.auditor.RecordRequest(user, "User logged in", "", r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, user)
}

// Logout destroys the current session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		if err := h.repos.Users.DeleteSession(cookie.Value); err != nil {
			h.logger.Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	if user != nil {
		h.auditor.RecordRequest(user, "User logged out", "", r.RemoteAddr, r.UserAgent())
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, auth.UserFrom(r.Context()))
}
