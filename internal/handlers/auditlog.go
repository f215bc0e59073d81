package handlers

import (
	"net/http"

	"github.com/secsim/phishportal/internal/models"
)

// AuditLog lists security events, newest first. Admin only; enforcement
// happens in the router.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, total, err := h.repos.Audit.List(models.AuditLogFilter{
		UserID: r.URL.Query().Get("user_id"),
		Action: r.URL.Query().Get("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("failed to list audit entries", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total})
}
