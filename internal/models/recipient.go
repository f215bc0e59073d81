package models

import "time"

// FieldMaxLen caps the free-text recipient fields. Longer values are
// truncated on write, never rejected.
const FieldMaxLen = 100

// Recipient represents a person who can receive simulated phishing emails.
// Emails are stored lowercase; exactly one record exists per address.
type Recipient struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// CampaignRecipient links a recipient to a campaign. The tracking ID is
// embedded in email links to attribute opens, clicks and reports.
type CampaignRecipient struct {
	ID          string    `json:"id"`
	CampaignID  string    `json:"campaign_id"`
	RecipientID string    `json:"recipient_id"`
	TrackingID  string    `json:"tracking_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecipientFilter for filtering recipients within a campaign
type RecipientFilter struct {
	CampaignID string
	Search     string
	Limit      int
	Offset     int
}
