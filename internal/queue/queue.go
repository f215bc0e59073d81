// Package queue is the persistent outbound email queue. Messages survive
// restarts; delivery attempts are bounded and exhausted messages move to
// a dead-letter bucket.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Message statuses
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Message is one queued outgoing email together with the portal records
// it belongs to.
type Message struct {
	ID                  string    `json:"id"`
	CampaignID          string    `json:"campaign_id"`
	CampaignRecipientID string    `json:"campaign_recipient_id"`
	FromEmail           string    `json:"from_email"`
	FromName            string    `json:"from_name"`
	To                  string    `json:"to"`
	Subject             string    `json:"subject"`
	BodyText            string    `json:"body_text"`
	BodyHTML            string    `json:"body_html"`
	Attempts            int       `json:"attempts"`
	LastError           string    `json:"last_error,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh ID and timestamp
func NewMessage() *Message {
	return &Message{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
}

// Stats reports queue depth
type Stats struct {
	Pending    int `json:"pending"`
	DeadLetter int `json:"dead_letter"`
}
