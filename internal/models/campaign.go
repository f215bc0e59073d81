package models

import "time"

// Campaign lifecycle statuses
const (
	CampaignDraft     = "DRAFT"
	CampaignScheduled = "SCHEDULED"
	CampaignActive    = "ACTIVE"
	CampaignPaused    = "PAUSED"
	CampaignCompleted = "COMPLETED"
	CampaignCancelled = "CANCELLED"
)

// ValidCampaignStatus reports whether s names a known status
func ValidCampaignStatus(s string) bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignActive,
		CampaignPaused, CampaignCompleted, CampaignCancelled:
		return true
	}
	return false
}

// Campaign represents one phishing simulation run
type Campaign struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	TemplateID   string     `json:"template_id"`
	CreatedBy    string     `json:"created_by"`
	Status       string     `json:"status"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CampaignWithStats includes recipient and event counts
type CampaignWithStats struct {
	Campaign
	RecipientCount int `json:"recipient_count"`
	OpenCount      int `json:"open_count"`
	ClickCount     int `json:"click_count"`
	ReportCount    int `json:"report_count"`
}

// CampaignFilter for filtering campaigns
type CampaignFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
}
