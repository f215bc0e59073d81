package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/secsim/phishportal/internal/models"
)

type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create creates a sticky note for a user
func (r *NoteRepository) Create(n *models.StickyNote) error {
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now()
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}

	_, err := r.db.Exec(`
		INSERT INTO sticky_notes (id, user_id, title, body, priority, is_done, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Title, n.Body, n.Priority, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// ListForUser returns a user's notes: open ones first, then by priority
func (r *NoteRepository) ListForUser(userID string) ([]models.StickyNote, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, title, body, priority, is_done, created_at
		FROM sticky_notes WHERE user_id = ?
		ORDER BY is_done,
			CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
			created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.StickyNote{}
	for rows.Next() {
		var n models.StickyNote
		var done int
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Priority, &done, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.IsDone = done != 0
		notes = append(notes, n)
	}
	return notes, nil
}

// GetByID returns one note
func (r *NoteRepository) GetByID(id string) (*models.StickyNote, error) {
	n := &models.StickyNote{}
	var done int
	err := r.db.QueryRow(`
		SELECT id, user_id, title, body, priority, is_done, created_at
		FROM sticky_notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Priority, &done, &n.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.IsDone = done != 0
	return n, nil
}

// Update updates a note's content and done flag
func (r *NoteRepository) Update(n *models.StickyNote) error {
	done := 0
	if n.IsDone {
		done = 1
	}
	_, err := r.db.Exec(`
		UPDATE sticky_notes SET title = ?, body = ?, priority = ?, is_done = ?
		WHERE id = ?`,
		n.Title, n.Body, n.Priority, done, n.ID,
	)
	return err
}

// Delete deletes a note
func (r *NoteRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM sticky_notes WHERE id = ?", id)
	return err
}
