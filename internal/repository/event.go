package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/secsim/phishportal/internal/models"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record stores one tracking event. Every hit is recorded; there is no
// per-recipient deduplication.
func (r *EventRepository) Record(e *models.Event) error {
	e.CreatedAt = time.Now()
	res, err := r.db.Exec(`
		INSERT INTO events (campaign_recipient_id, event_type, user_agent, ip_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.CampaignRecipientID, e.EventType, e.UserAgent, e.IPHash, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// CountsForCampaign aggregates events per type for one campaign
func (r *EventRepository) CountsForCampaign(campaignID string) (*models.EventCounts, error) {
	c := &models.EventCounts{}
	err := r.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN e.event_type = 'OPEN' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.event_type = 'CLICK' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN e.event_type = 'REPORT' THEN 1 ELSE 0 END), 0)
		FROM events e
		JOIN campaign_recipients cr ON cr.id = e.campaign_recipient_id
		WHERE cr.campaign_id = ?`, campaignID,
	).Scan(&c.Opens, &c.Clicks, &c.Reports)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// TotalCounts aggregates events per type across all campaigns
func (r *EventRepository) TotalCounts() (*models.EventCounts, error) {
	c := &models.EventCounts{}
	err := r.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN event_type = 'OPEN' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'CLICK' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN event_type = 'REPORT' THEN 1 ELSE 0 END), 0)
		FROM events`,
	).Scan(&c.Opens, &c.Clicks, &c.Reports)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListForCampaign returns events for a campaign, newest first
func (r *EventRepository) ListForCampaign(campaignID string, limit int) ([]models.Event, error) {
	query := `
		SELECT e.id, e.campaign_recipient_id, e.event_type, e.user_agent, e.ip_hash, e.created_at
		FROM events e
		JOIN campaign_recipients cr ON cr.id = e.campaign_recipient_id
		WHERE cr.campaign_id = ?
		ORDER BY e.created_at DESC`
	args := []any{campaignID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.CampaignRecipientID, &e.EventType, &e.UserAgent, &e.IPHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
