// Package handlers implements the portal's JSON API endpoints.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/secsim/phishportal/internal/audit"
	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/importer"
	"github.com/secsim/phishportal/internal/metrics"
	"github.com/secsim/phishportal/internal/repository"
	"github.com/secsim/phishportal/internal/upload"
	"github.com/secsim/phishportal/internal/worker"
)

// Repos bundles every repository the handlers touch
type Repos struct {
	Users      *repository.UserRepository
	Templates  *repository.TemplateRepository
	Campaigns  *repository.CampaignRepository
	Recipients *repository.RecipientRepository
	Events     *repository.EventRepository
	Emails     *repository.EmailRepository
	Notes      *repository.NoteRepository
	Audit      *repository.AuditRepository
}

// Handler carries the dependencies shared by all endpoints
type Handler struct {
	cfg        config.Config
	repos      Repos
	importer   *importer.Importer
	gatekeeper *upload.Gatekeeper
	auditor    *audit.Logger
	worker     *worker.Worker
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(cfg config.Config, repos Repos, imp *importer.Importer, gk *upload.Gatekeeper, auditor *audit.Logger, w *worker.Worker, mx *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		repos:      repos,
		importer:   imp,
		gatekeeper: gk,
		auditor:    auditor,
		worker:     w,
		metrics:    mx,
		logger:     logger.With("component", "api"),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pagination reads limit/offset query params with sane bounds
func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
