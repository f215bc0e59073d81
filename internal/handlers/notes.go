package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/models"
)

type noteRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
	IsDone   bool   `json:"is_done"`
}

func validPriority(p string) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return true
	}
	return false
}

// ListNotes returns the authenticated user's sticky notes
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	notes, err := h.repos.Notes.ListForUser(user.ID)
	if err != nil {
		h.logger.Error("failed to list notes", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// CreateNote adds a sticky note for the authenticated user
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		h.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !validPriority(req.Priority) {
		h.writeError(w, http.StatusBadRequest, "priority must be low, medium or high")
		return
	}

	user := auth.UserFrom(r.Context())
	note := &models.StickyNote{
		UserID:   user.ID,
		Title:    req.Title,
		Body:     req.Body,
		Priority: req.Priority,
	}
	if err := h.repos.Notes.Create(note); err != nil {
		h.logger.Error("failed to create note", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusCreated, note)
}

// UpdateNote edits one of the user's own notes
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		h.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Priority != "" && !validPriority(req.Priority) {
		h.writeError(w, http.StatusBadRequest, "priority must be low, medium or high")
		return
	}

	note.Title = req.Title
	note.Body = req.Body
	if req.Priority != "" {
		note.Priority = req.Priority
	}
	note.IsDone = req.IsDone

	if err := h.repos.Notes.Update(note); err != nil {
		h.logger.Error("failed to update note", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, note)
}

// DeleteNote removes one of the user's own notes
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}
	if err := h.repos.Notes.Delete(note.ID); err != nil {
		h.logger.Error("failed to delete note", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedNote loads the note from the URL and verifies ownership
func (h *Handler) ownedNote(w http.ResponseWriter, r *http.Request) (*models.StickyNote, bool) {
	note, err := h.repos.Notes.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get note", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	user := auth.UserFrom(r.Context())
	if note == nil || note.UserID != user.ID {
		h.writeError(w, http.StatusNotFound, "note not found")
		return nil, false
	}
	return note, true
}
