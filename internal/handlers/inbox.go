package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/models"
)

// Inbox lists the simulation emails delivered to the authenticated
// user's address, newest first.
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	emails, err := h.repos.Emails.ListForRecipientEmail(user.Email)
	if err != nil {
		h.logger.Error("failed to list inbox", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"emails": emails})
}

// InboxMessage returns one stored email and marks it read. Viewers can
// only open messages delivered to their own address.
func (h *Handler) InboxMessage(w http.ResponseWriter, r *http.Request) {
	email, err := h.repos.Emails.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get email", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if email == nil {
		h.writeError(w, http.StatusNotFound, "email not found")
		return
	}

	user := auth.UserFrom(r.Context())
	if user.Role == models.RoleViewer && user.Email != "" {
		addr, err := h.repos.Emails.RecipientAddress(email.ID)
		if err != nil {
			h.logger.Error("failed to resolve email recipient", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !strings.EqualFold(addr, user.Email) {
			h.writeError(w, http.StatusForbidden, "you are not allowed to view this email")
			return
		}
	}

	if !email.IsRead {
		if err := h.repos.Emails.MarkRead(email.ID); err != nil {
			h.logger.Error("failed to mark email read", "error", err)
		} else {
			email.IsRead = true
		}
	}

	h.writeJSON(w, http.StatusOK, email)
}
