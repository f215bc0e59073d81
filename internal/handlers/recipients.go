package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/importer"
	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/upload"
)

// ImportRecipients accepts a CSV upload and runs it through the import
// pipeline. Row-level failures come back in the outcome; only
// document-level problems abort with a 400.
func (h *Handler) ImportRecipients(w http.ResponseWriter, r *http.Request) {
	campaign, err := h.repos.Campaigns.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to get campaign", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if campaign == nil {
		h.writeError(w, http.StatusNotFound, "campaign not found")
		return
	}

	if err := r.ParseMultipartForm(h.gatekeeper.MaxSize()); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.gatekeeper.MaxSize()+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	if err := h.gatekeeper.Check(header.Filename, int64(len(content)), content); err != nil {
		switch {
		case errors.Is(err, upload.ErrTooLarge):
			h.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			h.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	user := auth.UserFrom(r.Context())
	outcome, err := h.importer.Import(r.Context(), bytes.NewReader(content), campaign, user)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ImportRunsTotal.WithLabelValues("failed").Inc()
		}
		switch {
		case errors.Is(err, importer.ErrEncoding),
			errors.Is(err, importer.ErrEmptyFile),
			errors.Is(err, importer.ErrMalformedCSV),
			errors.Is(err, importer.ErrMissingColumns),
			errors.Is(err, importer.ErrNoDataRows),
			errors.Is(err, importer.ErrLimitExceeded):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("import failed", "campaign_id", campaign.ID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "import failed")
		}
		return
	}

	if h.metrics != nil {
		errs := len(outcome.ErrorRows)
		noop := outcome.TotalRows - outcome.LinkedCount - errs
		h.metrics.ObserveImport(outcome.CreatedCount, outcome.LinkedCount-outcome.CreatedCount, noop, errs)
		if errs > h.cfg.Import.AnomalyThreshold {
			h.metrics.ImportAnomaliesTotal.Inc()
		}
	}

	h.auditor.RecordRequest(user, "Recipients imported",
		"campaign: "+campaign.Name, r.RemoteAddr, r.UserAgent())
	h.writeJSON(w, http.StatusOK, outcome)
}

// ListRecipients returns the recipients linked to a campaign
func (h *Handler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	recipients, total, err := h.repos.Recipients.ListByCampaign(models.RecipientFilter{
		CampaignID: chi.URLParam(r, "id"),
		Search:     r.URL.Query().Get("search"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.logger.Error("failed to list recipients", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"recipients": recipients, "total": total})
}

// ExportRecipients streams the campaign's recipients back out as CSV
func (h *Handler) ExportRecipients(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")
	recipients, _, err := h.repos.Recipients.ListByCampaign(models.RecipientFilter{
		CampaignID: campaignID,
		Limit:      10000,
	})
	if err != nil {
		h.logger.Error("failed to list recipients", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="recipients.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"email", "first_name", "last_name", "department"})
	for i := range recipients {
		rec := &recipients[i]
		_ = cw.Write([]string{rec.Email, rec.FirstName, rec.LastName, rec.Department})
	}
	cw.Flush()
}

// RemoveRecipient unlinks a recipient from a campaign. The recipient
// record itself stays.
func (h *Handler) RemoveRecipient(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")
	recipientID := chi.URLParam(r, "recipientID")

	if err := h.repos.Recipients.UnlinkFromCampaign(campaignID, recipientID); err != nil {
		h.logger.Error("failed to unlink recipient", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
