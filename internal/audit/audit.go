// Package audit provides fire-and-forget security event logging.
// Entries are appended to the audit_log table; client IPs are stored
// only as SHA-256 hashes.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/repository"
)

const maxUserAgentLen = 255

type Logger struct {
	repo   *repository.AuditRepository
	logger *slog.Logger
}

func New(repo *repository.AuditRepository, logger *slog.Logger) *Logger {
	return &Logger{
		repo:   repo,
		logger: logger.With("component", "audit"),
	}
}

// Record appends one audit entry. Failures are logged and swallowed:
// audit is best-effort and must never fail the calling operation.
func (l *Logger) Record(actor *models.User, action, details string) {
	l.RecordRequest(actor, action, details, "", "")
}

// RecordRequest is Record with request attribution (client IP, user agent).
func (l *Logger) RecordRequest(actor *models.User, action, details, clientIP, userAgent string) {
	entry := &models.AuditLogEntry{
		Action:    action,
		Details:   details,
		IPHash:    HashIP(clientIP),
		UserAgent: truncate(userAgent, maxUserAgentLen),
	}
	if actor != nil {
		entry.UserID = actor.ID
		entry.Username = actor.Username
	}

	if err := l.repo.Add(entry); err != nil {
		l.logger.Error("failed to append audit entry", "action", action, "error", err)
	}
}

// HashIP returns the SHA-256 hex digest of an IP address, or "" for an
// empty input. Raw addresses are never persisted.
func HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
