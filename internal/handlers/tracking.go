package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/secsim/phishportal/internal/audit"
	"github.com/secsim/phishportal/internal/models"
)

// 1x1 transparent GIF served by the open pixel
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80,
	0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01,
	0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// recordEvent stores one tracking event for the given tracking ID. The
// IP address is hashed before storage. Unknown tracking IDs are
// swallowed so the endpoints never leak which IDs exist.
func (h *Handler) recordEvent(r *http.Request, trackingID, eventType string) {
	link, err := h.repos.Recipients.GetLinkByTrackingID(trackingID)
	if err != nil {
		h.logger.Error("failed to resolve tracking id", "error", err)
		return
	}
	if link == nil || !link.IsActive {
		return
	}

	ev := &models.Event{
		CampaignRecipientID: link.ID,
		EventType:           eventType,
		UserAgent:           r.UserAgent(),
		IPHash:              audit.HashIP(r.RemoteAddr),
	}
	if err := h.repos.Events.Record(ev); err != nil {
		h.logger.Error("failed to record event", "type", eventType, "error", err)
		return
	}
	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(eventType).Inc()
	}
}

// TrackOpen serves the open pixel and records an OPEN event
func (h *Handler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(r, chi.URLParam(r, "trackingID"), models.EventOpen)

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Write(trackingPixel)
}

// TrackClick records a CLICK event and redirects to the learning page
func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(r, chi.URLParam(r, "trackingID"), models.EventClick)
	http.Redirect(w, r, h.cfg.Tracking.LandingURL, http.StatusFound)
}

// TrackReport records a REPORT event, the desired trainee behavior
func (h *Handler) TrackReport(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(r, chi.URLParam(r, "trackingID"), models.EventReport)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "reported",
		"message": "Well done. Reporting suspicious emails is exactly the right response.",
	})
}
