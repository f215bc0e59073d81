package models

import "time"

// CampaignEmail is a stored copy of a sent email, backing the inbox view.
type CampaignEmail struct {
	ID                  string    `json:"id"`
	CampaignID          string    `json:"campaign_id"`
	CampaignRecipientID string    `json:"campaign_recipient_id"`
	Subject             string    `json:"subject"`
	BodyText            string    `json:"body_text"`
	BodyHTML            string    `json:"body_html"`
	SentAt              time.Time `json:"sent_at"`
	IsRead              bool      `json:"is_read"`
}
