package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secsim/phishportal/internal/models"
)

type RecipientRepository struct {
	db *sql.DB
}

func NewRecipientRepository(db *sql.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// RecipientDefaults carries the creation-time fields for a new recipient.
// They apply only when the recipient does not exist yet (first-write-wins).
type RecipientDefaults struct {
	FirstName  string
	LastName   string
	Department string
}

// GetOrCreate returns the recipient for email, creating it with defaults
// if absent. Email must already be lowercase-normalized by the caller.
// A concurrent creator losing the insert race observes the winner's row.
func (r *RecipientRepository) GetOrCreate(q Querier, email string, defaults RecipientDefaults) (*models.Recipient, bool, error) {
	id := uuid.New().String()
	res, err := q.Exec(`
		INSERT INTO recipients (id, email, first_name, last_name, department, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		id, email,
		truncate(defaults.FirstName, models.FieldMaxLen),
		truncate(defaults.LastName, models.FieldMaxLen),
		truncate(defaults.Department, models.FieldMaxLen),
		time.Now(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create recipient: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	rec := &models.Recipient{}
	err = q.QueryRow(`
		SELECT id, email, first_name, last_name, department, created_at
		FROM recipients WHERE email = ?`, email,
	).Scan(&rec.ID, &rec.Email, &rec.FirstName, &rec.LastName, &rec.Department, &rec.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load recipient: %w", err)
	}

	return rec, affected > 0, nil
}

// GetOrCreateLink returns the campaign link for the recipient, creating it
// if absent. Re-linking an already linked pair is a no-op.
func (r *RecipientRepository) GetOrCreateLink(q Querier, campaignID, recipientID string) (*models.CampaignRecipient, bool, error) {
	id := uuid.New().String()
	trackingID := uuid.New().String()
	res, err := q.Exec(`
		INSERT INTO campaign_recipients (id, campaign_id, recipient_id, tracking_id, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(campaign_id, recipient_id) DO NOTHING`,
		id, campaignID, recipientID, trackingID, time.Now(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create campaign link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	link := &models.CampaignRecipient{}
	var active int
	err = q.QueryRow(`
		SELECT id, campaign_id, recipient_id, tracking_id, is_active, created_at
		FROM campaign_recipients WHERE campaign_id = ? AND recipient_id = ?`,
		campaignID, recipientID,
	).Scan(&link.ID, &link.CampaignID, &link.RecipientID, &link.TrackingID, &active, &link.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load campaign link: %w", err)
	}
	link.IsActive = active != 0

	return link, affected > 0, nil
}

// GetByEmail returns a recipient by normalized email
func (r *RecipientRepository) GetByEmail(email string) (*models.Recipient, error) {
	rec := &models.Recipient{}
	err := r.db.QueryRow(`
		SELECT id, email, first_name, last_name, department, created_at
		FROM recipients WHERE email = ?`, strings.ToLower(email),
	).Scan(&rec.ID, &rec.Email, &rec.FirstName, &rec.LastName, &rec.Department, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetLinkByTrackingID resolves a tracking ID to its campaign link
func (r *RecipientRepository) GetLinkByTrackingID(trackingID string) (*models.CampaignRecipient, error) {
	link := &models.CampaignRecipient{}
	var active int
	err := r.db.QueryRow(`
		SELECT id, campaign_id, recipient_id, tracking_id, is_active, created_at
		FROM campaign_recipients WHERE tracking_id = ?`, trackingID,
	).Scan(&link.ID, &link.CampaignID, &link.RecipientID, &link.TrackingID, &active, &link.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	link.IsActive = active != 0
	return link, nil
}

// ListByCampaign returns recipients linked to a campaign
func (r *RecipientRepository) ListByCampaign(filter models.RecipientFilter) ([]models.Recipient, int, error) {
	countQuery := `
		SELECT COUNT(*) FROM recipients r
		JOIN campaign_recipients cr ON cr.recipient_id = r.id
		WHERE cr.campaign_id = ?`
	args := []any{filter.CampaignID}

	if filter.Search != "" {
		countQuery += " AND (r.email LIKE ? OR r.first_name LIKE ? OR r.last_name LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT r.id, r.email, r.first_name, r.last_name, r.department, r.created_at
		FROM recipients r
		JOIN campaign_recipients cr ON cr.recipient_id = r.id
		WHERE cr.campaign_id = ?`

	args = []any{filter.CampaignID}
	if filter.Search != "" {
		query += " AND (r.email LIKE ? OR r.first_name LIKE ? OR r.last_name LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s, s)
	}

	query += " ORDER BY r.email"

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

	recipients := []models.Recipient{}
	for rows.Next() {
		var rec models.Recipient
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.FirstName, &rec.LastName, &rec.Department, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		recipients = append(recipients, rec)
	}

	return recipients, total, nil
}

// ActiveLinks returns the active campaign links with their recipients,
// used when sending a campaign.
func (r *RecipientRepository) ActiveLinks(campaignID string) ([]models.CampaignRecipient, map[string]models.Recipient, error) {
	rows, err := r.db.Query(`
		SELECT cr.id, cr.campaign_id, cr.recipient_id, cr.tracking_id, cr.is_active, cr.created_at,
			r.id, r.email, r.first_name, r.last_name, r.department, r.created_at
		FROM campaign_recipients cr
		JOIN recipients r ON r.id = cr.recipient_id
		WHERE cr.campaign_id = ? AND cr.is_active = 1
		ORDER BY r.email`, campaignID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	links := []models.CampaignRecipient{}
	recipients := map[string]models.Recipient{}
	for rows.Next() {
		var link models.CampaignRecipient
		var rec models.Recipient
		var active int
		err := rows.Scan(
			&link.ID, &link.CampaignID, &link.RecipientID, &link.TrackingID, &active, &link.CreatedAt,
			&rec.ID, &rec.Email, &rec.FirstName, &rec.LastName, &rec.Department, &rec.CreatedAt,
		)
		if err != nil {
			return nil, nil, err
		}
		link.IsActive = active != 0
		links = append(links, link)
		recipients[link.RecipientID] = rec
	}

	return links, recipients, nil
}

// UnlinkFromCampaign removes a recipient's link to a campaign. The
// recipient record itself is kept.
func (r *RecipientRepository) UnlinkFromCampaign(campaignID, recipientID string) error {
	_, err := r.db.Exec(
		"DELETE FROM campaign_recipients WHERE campaign_id = ? AND recipient_id = ?",
		campaignID, recipientID,
	)
	return err
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
