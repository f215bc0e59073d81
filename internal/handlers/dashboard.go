package handlers

import (
	"net/http"

	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/models"
)

type dashboardResponse struct {
	Campaigns      []models.CampaignWithStats `json:"campaigns"`
	CampaignCount  int                        `json:"campaign_count"`
	Events         *models.EventCounts        `json:"events"`
	Notes          []models.StickyNote        `json:"notes"`
	RecentActivity []models.AuditLogEntry     `json:"recent_activity,omitempty"`
}

// Dashboard aggregates the landing-page data. Admins additionally see
// recent audit activity.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())

	campaigns, total, err := h.repos.Campaigns.List(models.CampaignFilter{Limit: 10})
	if err != nil {
		h.logger.Error("failed to list campaigns", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	counts, err := h.repos.Events.TotalCounts()
	if err != nil {
		h.logger.Error("failed to aggregate events", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	notes, err := h.repos.Notes.ListForUser(user.ID)
	if err != nil {
		h.logger.Error("failed to list notes", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := dashboardResponse{
		Campaigns:     campaigns,
		CampaignCount: total,
		Events:        counts,
		Notes:         notes,
	}

	if user.Role == models.RoleAdmin {
		activity, _, err := h.repos.Audit.List(models.AuditLogFilter{Limit: 10})
		if err != nil {
			h.logger.Error("failed to list audit entries", "error", err)
		} else {
			resp.RecentActivity = activity
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Health is the liveness endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
