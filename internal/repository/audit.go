package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/secsim/phishportal/internal/models"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Add appends an audit log entry
func (r *AuditRepository) Add(entry *models.AuditLogEntry) error {
	entry.CreatedAt = time.Now()
	var userID any
	if entry.UserID != "" {
		userID = entry.UserID
	}
	res, err := r.db.Exec(`
		INSERT INTO audit_log (user_id, username, action, details, ip_hash, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, entry.Username, entry.Action, entry.Details, entry.IPHash, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

// List returns audit log entries, newest first
func (r *AuditRepository) List(filter models.AuditLogFilter) ([]models.AuditLogEntry, int, error) {
	countQuery := "SELECT COUNT(*) FROM audit_log WHERE 1=1"
	args := []any{}

	if filter.UserID != "" {
		countQuery += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		countQuery += " AND action LIKE ?"
		args = append(args, "%"+filter.Action+"%")
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, COALESCE(user_id, ''), username, action, details, ip_hash, user_agent, created_at
		FROM audit_log WHERE 1=1`

	args = []any{}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		query += " AND action LIKE ?"
		args = append(args, "%"+filter.Action+"%")
	}

	query += " ORDER BY created_at DESC, id DESC"

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

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Action, &e.Details, &e.IPHash, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	return entries, total, nil
}

// DeleteOlderThan prunes audit entries older than the cutoff
func (r *AuditRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM audit_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
