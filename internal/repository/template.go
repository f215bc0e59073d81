package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secsim/phishportal/internal/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create creates a new email template
func (r *TemplateRepository) Create(t *models.EmailTemplate) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	if t.TemplateType == "" {
		t.TemplateType = models.TemplateTypeScenario
	}
	if t.Scenario == "" {
		t.Scenario = models.ScenarioITAlert
	}

	_, err := r.db.Exec(`
		INSERT INTO email_templates (id, name, subject, body, template_type, scenario, html_content,
			sender_email, sender_name, learning_points, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Subject, t.Body, t.TemplateType, t.Scenario, t.HTMLContent,
		t.SenderEmail, t.SenderName, t.LearningPoints, nullable(t.CreatedBy), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetByID returns a template by ID
func (r *TemplateRepository) GetByID(id string) (*models.EmailTemplate, error) {
	t := &models.EmailTemplate{}
	err := r.db.QueryRow(`
		SELECT id, name, subject, body, template_type, scenario, html_content,
			sender_email, sender_name, learning_points, COALESCE(created_by, ''), created_at, updated_at
		FROM email_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.TemplateType, &t.Scenario, &t.HTMLContent,
		&t.SenderEmail, &t.SenderName, &t.LearningPoints, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns templates with optional filtering
func (r *TemplateRepository) List(filter models.TemplateFilter) ([]models.EmailTemplate, int, error) {
	countQuery := "SELECT COUNT(*) FROM email_templates WHERE 1=1"
	args := []any{}

	if filter.Search != "" {
		countQuery += " AND (name LIKE ? OR subject LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, subject, body, template_type, scenario, html_content,
			sender_email, sender_name, learning_points, COALESCE(created_by, ''), created_at, updated_at
		FROM email_templates WHERE 1=1`

	args = []any{}
	if filter.Search != "" {
		query += " AND (name LIKE ? OR subject LIKE ?)"
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	query += " ORDER BY created_at DESC"

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

	templates := []models.EmailTemplate{}
	for rows.Next() {
		var t models.EmailTemplate
		err := rows.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.TemplateType, &t.Scenario, &t.HTMLContent,
			&t.SenderEmail, &t.SenderName, &t.LearningPoints, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, t)
	}

	return templates, total, nil
}

// Update updates a template
func (r *TemplateRepository) Update(t *models.EmailTemplate) error {
	t.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE email_templates SET name = ?, subject = ?, body = ?, template_type = ?, scenario = ?,
			html_content = ?, sender_email = ?, sender_name = ?, learning_points = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, t.Subject, t.Body, t.TemplateType, t.Scenario,
		t.HTMLContent, t.SenderEmail, t.SenderName, t.LearningPoints, t.UpdatedAt, t.ID,
	)
	return err
}

// Delete deletes a template. Fails if a campaign still references it.
func (r *TemplateRepository) Delete(id string) error {
	var inUse int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM campaigns WHERE template_id = ?", id).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("template is used by %d campaign(s)", inUse)
	}

	_, err := r.db.Exec("DELETE FROM email_templates WHERE id = ?", id)
	return err
}
