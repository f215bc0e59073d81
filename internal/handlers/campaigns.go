package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/mailer"
	"github.com/secsim/phishportal/internal/models"
)

type campaignRequest struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	TemplateID   string     `json:"template_id"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// ListCampaigns returns campaigns with recipient and event counts
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	campaigns, total, err := h.repos.Campaigns.List(models.CampaignFilter{
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("failed to list campaigns", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"campaigns": campaigns, "total": total})
}

// GetCampaign returns one campaign with its event counts
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.repos.Campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil {
		h.writeError(w, http.StatusNotFound, "campaign not found")
		return
	}

	counts, err := h.repos.Events.CountsForCampaign(c.ID)
	if err != nil {
		h.logger.Error("failed to aggregate events", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"campaign": c, "events": counts})
}

// CreateCampaign creates a new draft campaign
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	tmpl, err := h.repos.Templates.GetByID(req.TemplateID)
	if err != nil {
		h.logger.Error("failed to get template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil {
		h.writeError(w, http.StatusBadRequest, "template not found")
		return
	}

	user := auth.UserFrom(r.Context())
	c := &models.Campaign{
		Name:         req.Name,
		Description:  mailer.StripTags(req.Description),
		TemplateID:   req.TemplateID,
		CreatedBy:    user.ID,
		Status:       models.CampaignDraft,
		ScheduledFor: req.ScheduledFor,
	}
	if req.ScheduledFor != nil {
		c.Status = models.CampaignScheduled
	}

	if err := h.repos.Campaigns.Create(c); err != nil {
		h.logger.Error("failed to create campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.auditor.RecordRequest(user, "Campaign created", c.Name, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusCreated, c)
}

// UpdateCampaign updates a draft or scheduled campaign
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.repos.Campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil {
		h.writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.Status != models.CampaignDraft && c.Status != models.CampaignScheduled {
		h.writeError(w, http.StatusConflict, "only draft or scheduled campaigns can be edited")
		return
	}

	var req campaignRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	c.Name = req.Name
	c.Description = mailer.StripTags(req.Description)
	if req.TemplateID != "" {
		c.TemplateID = req.TemplateID
	}
	c.ScheduledFor = req.ScheduledFor
	if req.ScheduledFor != nil {
		c.Status = models.CampaignScheduled
	} else if c.Status == models.CampaignScheduled {
		c.Status = models.CampaignDraft
	}

	if err := h.repos.Campaigns.Update(c); err != nil {
		h.logger.Error("failed to update campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.auditor.RecordRequest(auth.UserFrom(r.Context()), "Campaign updated", c.Name, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, c)
}

// SendCampaign queues a campaign for immediate delivery
func (h *Handler) SendCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.repos.Campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil {
		h.writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.Status != models.CampaignDraft && c.Status != models.CampaignScheduled {
		h.writeError(w, http.StatusConflict, "campaign already sent or cancelled")
		return
	}

	if err := h.worker.EnqueueCampaign(c); err != nil {
		h.logger.Error("failed to enqueue campaign", "campaign_id", c.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to queue campaign")
		return
	}

	h.auditor.RecordRequest(auth.UserFrom(r.Context()), "Campaign sent", c.Name, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": models.CampaignActive})
}

// CancelCampaign cancels a draft or scheduled campaign
func (h *Handler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.repos.Campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil {
		h.writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if c.Status == models.CampaignCompleted || c.Status == models.CampaignCancelled {
		h.writeError(w, http.StatusConflict, "campaign already finished")
		return
	}

	if err := h.repos.Campaigns.SetStatus(c.ID, models.CampaignCancelled); err != nil {
		h.logger.Error("failed to cancel campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.auditor.RecordRequest(auth.UserFrom(r.Context()), "Campaign cancelled", c.Name, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": models.CampaignCancelled})
}

// DeleteCampaign removes a campaign and its links
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repos.Campaigns.Delete(id); err != nil {
		h.logger.Error("failed to delete campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.auditor.RecordRequest(auth.UserFrom(r.Context()), "Campaign deleted", id, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
