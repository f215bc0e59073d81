package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secsim/phishportal/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign in DRAFT status unless one was set
func (r *CampaignRepository) Create(c *models.Campaign) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = models.CampaignDraft
	}

	_, err := r.db.Exec(`
		INSERT INTO campaigns (id, name, description, template_id, created_by, status, scheduled_for, sent_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.TemplateID, nullable(c.CreatedBy), c.Status, c.ScheduledFor, c.SentAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID returns a campaign by ID
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	err := r.db.QueryRow(`
		SELECT id, name, description, template_id, COALESCE(created_by, ''), status, scheduled_for, sent_at, created_at, updated_at
		FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.TemplateID, &c.CreatedBy, &c.Status, &c.ScheduledFor, &c.SentAt, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns campaigns with recipient and event counts
func (r *CampaignRepository) List(filter models.CampaignFilter) ([]models.CampaignWithStats, int, error) {
	countQuery := "SELECT COUNT(*) FROM campaigns WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (name LIKE ? OR description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		countQuery += " AND status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT c.id, c.name, c.description, c.template_id, COALESCE(c.created_by, ''), c.status,
			c.scheduled_for, c.sent_at, c.created_at, c.updated_at,
			COALESCE((SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id = c.id), 0),
			COALESCE((SELECT COUNT(*) FROM events e JOIN campaign_recipients cr ON e.campaign_recipient_id = cr.id
				WHERE cr.campaign_id = c.id AND e.event_type = 'OPEN'), 0),
			COALESCE((SELECT COUNT(*) FROM events e JOIN campaign_recipients cr ON e.campaign_recipient_id = cr.id
				WHERE cr.campaign_id = c.id AND e.event_type = 'CLICK'), 0),
			COALESCE((SELECT COUNT(*) FROM events e JOIN campaign_recipients cr ON e.campaign_recipient_id = cr.id
				WHERE cr.campaign_id = c.id AND e.event_type = 'REPORT'), 0)
		FROM campaigns c
		WHERE 1=1`

	args = []any{}
	if filter.Search != "" {
		query += " AND (c.name LIKE ? OR c.description LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query += " AND c.status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY c.created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []models.CampaignWithStats{}
	for rows.Next() {
		var c models.CampaignWithStats
		err := rows.Scan(
			&c.ID, &c.Name, &c.Description, &c.TemplateID, &c.CreatedBy, &c.Status,
			&c.ScheduledFor, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
			&c.RecipientCount, &c.OpenCount, &c.ClickCount, &c.ReportCount,
		)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, total, nil
}

// Update updates a campaign's editable fields
func (r *CampaignRepository) Update(c *models.Campaign) error {
	c.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE campaigns SET name = ?, description = ?, template_id = ?, status = ?, scheduled_for = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.TemplateID, c.Status, c.ScheduledFor, c.UpdatedAt, c.ID,
	)
	return err
}

// SetStatus transitions a campaign to a new status
func (r *CampaignRepository) SetStatus(id, status string) error {
	_, err := r.db.Exec(
		"UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	return err
}

// MarkSent sets sent_at and moves the campaign to COMPLETED
func (r *CampaignRepository) MarkSent(id string, sentAt time.Time) error {
	_, err := r.db.Exec(
		"UPDATE campaigns SET status = ?, sent_at = ?, updated_at = ? WHERE id = ?",
		models.CampaignCompleted, sentAt, time.Now(), id,
	)
	return err
}

// Delete deletes a campaign and, via cascade, its links and events
func (r *CampaignRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM campaigns WHERE id = ?", id)
	return err
}

// DueScheduled returns SCHEDULED campaigns whose start time has passed
func (r *CampaignRepository) DueScheduled(now time.Time) ([]models.Campaign, error) {
	rows, err := r.db.Query(`
		SELECT id, name, description, template_id, COALESCE(created_by, ''), status, scheduled_for, sent_at, created_at, updated_at
		FROM campaigns
		WHERE status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?`,
		models.CampaignScheduled, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.TemplateID, &c.CreatedBy, &c.Status,
			&c.ScheduledFor, &c.SentAt, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, nil
}
