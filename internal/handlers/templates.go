package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/mailer"
	"github.com/secsim/phishportal/internal/models"
)

type templateRequest struct {
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	TemplateType   string `json:"template_type"`
	Scenario       string `json:"scenario"`
	HTMLContent    string `json:"html_content"`
	SenderEmail    string `json:"sender_email"`
	SenderName     string `json:"sender_name"`
	LearningPoints string `json:"learning_points"`
}

func (req *templateRequest) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(req.Subject) == "" {
		return "subject is required"
	}
	switch req.TemplateType {
	case models.TemplateTypeScenario:
		if !models.ValidScenario(req.Scenario) {
			return "unknown scenario: " + req.Scenario
		}
	case models.TemplateTypeCustom:
		if strings.TrimSpace(req.Body) == "" && strings.TrimSpace(req.HTMLContent) == "" {
			return "custom templates need a body"
		}
	default:
		return "template_type must be SCENARIO or CUSTOM"
	}
	return ""
}

// ListTemplates returns templates matching the optional search filter
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	templates, total, err := h.repos.Templates.List(models.TemplateFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"templates": templates, "total": total})
}

// GetTemplate returns one template by ID
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.repos.Templates.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil {
		h.writeError(w, http.StatusNotFound, "template not found")
		return
	}
	h.writeJSON(w, http.StatusOK, tmpl)
}

// CreateTemplate creates a new email template
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	user := auth.UserFrom(r.Context())
	tmpl := &models.EmailTemplate{
		Name:           req.Name,
		Subject:        req.Subject,
		Body:           req.Body,
		TemplateType:   req.TemplateType,
		Scenario:       req.Scenario,
		HTMLContent:    req.HTMLContent,
		SenderEmail:    req.SenderEmail,
		SenderName:     req.SenderName,
		LearningPoints: mailer.StripTags(req.LearningPoints),
		CreatedBy:      user.ID,
	}
	if err := h.repos.Templates.Create(tmpl); err != nil {
		h.logger.Error("failed to create template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.auditor.RecordRequest(user, "Template created", tmpl.Name, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusCreated, tmpl)
}

// UpdateTemplate updates an existing template
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.repos.Templates.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil {
		h.writeError(w, http.StatusNotFound, "template not found")
		return
	}

	var req templateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	tmpl.Name = req.Name
	tmpl.Subject = req.Subject
	tmpl.Body = req.Body
	tmpl.TemplateType = req.TemplateType
	tmpl.Scenario = req.Scenario
	tmpl.HTMLContent = req.HTMLContent
	tmpl.SenderEmail = req.SenderEmail
	tmpl.SenderName = req.SenderName
	tmpl.LearningPoints = mailer.StripTags(req.LearningPoints)

	if err := h.repos.Templates.Update(tmpl); err != nil {
		h.logger.Error("failed to update template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.auditor.RecordRequest(auth.UserFrom(r.Context()), "Template updated", tmpl.Name, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, tmpl)
}

// DeleteTemplate removes a template
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repos.Templates.Delete(id); err != nil {
		h.logger.Error("failed to delete template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.auditor.RecordRequest(auth.UserFrom(r.Context()), "Template deleted", id, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
