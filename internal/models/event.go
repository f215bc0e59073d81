package models

import "time"

// Event types recorded against a campaign recipient
const (
	EventOpen   = "OPEN"
	EventClick  = "CLICK"
	EventReport = "REPORT"
)

// Event records a recipient interaction with a phishing email. IP
// addresses are stored as SHA-256 hashes only.
type Event struct {
	ID                  int64     `json:"id"`
	CampaignRecipientID string    `json:"campaign_recipient_id"`
	EventType           string    `json:"event_type"`
	UserAgent           string    `json:"user_agent"`
	IPHash              string    `json:"ip_hash"`
	CreatedAt           time.Time `json:"created_at"`
}

// EventCounts aggregates events per type for dashboards
type EventCounts struct {
	Opens   int `json:"opens"`
	Clicks  int `json:"clicks"`
	Reports int `json:"reports"`
}
