package models

import "time"

// AuditLogEntry is an append-only security event record
type AuditLogEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPHash    string    `json:"ip_hash"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLogFilter for filtering the audit log
type AuditLogFilter struct {
	UserID string
	Action string
	Limit  int
	Offset int
}
