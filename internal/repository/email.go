package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secsim/phishportal/internal/models"
)

type EmailRepository struct {
	db *sql.DB
}

func NewEmailRepository(db *sql.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

// Create stores a copy of a sent campaign email for the inbox view
func (r *EmailRepository) Create(e *models.CampaignEmail) error {
	e.ID = uuid.New().String()
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO campaign_emails (id, campaign_id, campaign_recipient_id, subject, body_text, body_html, sent_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		e.ID, e.CampaignID, e.CampaignRecipientID, e.Subject, e.BodyText, e.BodyHTML, e.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store campaign email: %w", err)
	}
	return nil
}

// GetByID returns one stored email
func (r *EmailRepository) GetByID(id string) (*models.CampaignEmail, error) {
	e := &models.CampaignEmail{}
	var read int
	err := r.db.QueryRow(`
		SELECT id, campaign_id, campaign_recipient_id, subject, body_text, body_html, sent_at, is_read
		FROM campaign_emails WHERE id = ?`, id,
	).Scan(&e.ID, &e.CampaignID, &e.CampaignRecipientID, &e.Subject, &e.BodyText, &e.BodyHTML, &e.SentAt, &read)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.IsRead = read != 0
	return e, nil
}

// ListForRecipientEmail returns emails addressed to one recipient email,
// newest first. Backs the inbox view.
func (r *EmailRepository) ListForRecipientEmail(email string) ([]models.CampaignEmail, error) {
	rows, err := r.db.Query(`
		SELECT ce.id, ce.campaign_id, ce.campaign_recipient_id, ce.subject, ce.body_text, ce.body_html, ce.sent_at, ce.is_read
		FROM campaign_emails ce
		JOIN campaign_recipients cr ON cr.id = ce.campaign_recipient_id
		JOIN recipients r ON r.id = cr.recipient_id
		WHERE r.email = ?
		ORDER BY ce.sent_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []models.CampaignEmail{}
	for rows.Next() {
		var e models.CampaignEmail
		var read int
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.CampaignRecipientID, &e.Subject, &e.BodyText, &e.BodyHTML, &e.SentAt, &read); err != nil {
			return nil, err
		}
		e.IsRead = read != 0
		emails = append(emails, e)
	}
	return emails, nil
}

// RecipientAddress returns the email address a stored message was
// delivered to, or "" when the message is unknown.
func (r *EmailRepository) RecipientAddress(id string) (string, error) {
	var addr string
	err := r.db.QueryRow(`
		SELECT rec.email
		FROM campaign_emails ce
		JOIN campaign_recipients cr ON cr.id = ce.campaign_recipient_id
		JOIN recipients rec ON rec.id = cr.recipient_id
		WHERE ce.id = ?`, id,
	).Scan(&addr)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return addr, nil
}

// MarkRead flags an email as read
func (r *EmailRepository) MarkRead(id string) error {
	_, err := r.db.Exec("UPDATE campaign_emails SET is_read = 1 WHERE id = ?", id)
	return err
}
