package audit

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/secsim/phishportal/internal/db"
	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/repository"
)

func setupAuditTest(t *testing.T) (*Logger, *repository.AuditRepository) {
	t.Helper()

	database, err := db.NewMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := repository.NewAuditRepository(database.DB)
	logger := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return logger, repo
}

func TestRecordWithoutActor(t *testing.T) {
	logger, repo := setupAuditTest(t)

	logger.Record(nil, "Failed login attempt", "username: ghost")

	entries, total, err := repo.List(models.AuditLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	if entries[0].Action != "Failed login attempt" {
		t.Errorf("Action = %q", entries[0].Action)
	}
	if entries[0].UserID != "" {
		t.Errorf("UserID = %q, want empty for anonymous entry", entries[0].UserID)
	}
}

func TestRecordRequestHashesIP(t *testing.T) {
	logger, repo := setupAuditTest(t)

	logger.RecordRequest(nil, "Permission denied", "GET /api/audit", "203.0.113.7", "curl/8.0")

	entries, _, err := repo.List(models.AuditLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	entry := entries[0]
	if entry.IPHash == "" || strings.Contains(entry.IPHash, "203.0.113.7") {
		t.Errorf("IPHash = %q, raw IP must never be stored", entry.IPHash)
	}
	if entry.IPHash != HashIP("203.0.113.7") {
		t.Errorf("IPHash does not match HashIP output")
	}
	if entry.UserAgent != "curl/8.0" {
		t.Errorf("UserAgent = %q", entry.UserAgent)
	}
}

func TestUserAgentTruncated(t *testing.T) {
	logger, repo := setupAuditTest(t)

	logger.RecordRequest(nil, "Test", "", "", strings.Repeat("a", 600))

	entries, _, err := repo.List(models.AuditLogFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries[0].UserAgent) != maxUserAgentLen {
		t.Errorf("UserAgent length = %d, want %d", len(entries[0].UserAgent), maxUserAgentLen)
	}
}

func TestHashIP(t *testing.T) {
	if HashIP("") != "" {
		t.Error("empty IP should hash to empty string")
	}
	h := HashIP("10.0.0.1")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h != HashIP("10.0.0.1") {
		t.Error("hash is not deterministic")
	}
	if h == HashIP("10.0.0.2") {
		t.Error("distinct IPs hash identically")
	}
}
