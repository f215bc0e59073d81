package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/secsim/phishportal/internal/audit"
	"github.com/secsim/phishportal/internal/auth"
	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/db"
	"github.com/secsim/phishportal/internal/importer"
	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/repository"
	"github.com/secsim/phishportal/internal/upload"
)

type fixture struct {
	db       *db.DB
	handler  *Handler
	router   chi.Router
	campaign *models.Campaign
	user     *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	database, err := db.NewMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repos := Repos{
		Users:      repository.NewUserRepository(database.DB),
		Templates:  repository.NewTemplateRepository(database.DB),
		Campaigns:  repository.NewCampaignRepository(database.DB),
		Recipients: repository.NewRecipientRepository(database.DB),
		Events:     repository.NewEventRepository(database.DB),
		Emails:     repository.NewEmailRepository(database.DB),
		Notes:      repository.NewNoteRepository(database.DB),
		Audit:      repository.NewAuditRepository(database.DB),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditor := audit.New(repos.Audit, logger)
	cfg := *config.Default()

	imp := importer.New(database.DB, repos.Recipients, auditor.Record, importer.DefaultConfig(), logger)
	gk := upload.NewGatekeeper(cfg.Import.MaxFileSize)

	// worker and metrics stay nil: these tests exercise import and
	// tracking, neither of which sends mail
	h := New(cfg, repos, imp, gk, auditor, nil, nil, logger)

	user := &models.User{Username: "inst", Email: "inst@example.com", PasswordHash: "x", Role: models.RoleInstructor}
	if err := repos.Users.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	tmpl := &models.EmailTemplate{Name: "t1", Subject: "s", TemplateType: models.TemplateTypeScenario, Scenario: models.ScenarioITAlert}
	if err := repos.Templates.Create(tmpl); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	campaign := &models.Campaign{Name: "c1", TemplateID: tmpl.ID, CreatedBy: user.ID, Status: models.CampaignDraft}
	if err := repos.Campaigns.Create(campaign); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/api/campaigns", h.CreateCampaign)
	r.Post("/api/campaigns/{id}/recipients/import", h.ImportRecipients)
	r.Get("/api/campaigns/{id}/recipients", h.ListRecipients)
	r.Post("/api/templates", h.CreateTemplate)
	r.Get("/api/inbox", h.Inbox)
	r.Get("/api/inbox/{id}", h.InboxMessage)
	r.Get("/t/{trackingID}/open.gif", h.TrackOpen)
	r.Get("/t/{trackingID}/click", h.TrackClick)
	r.Post("/t/{trackingID}/report", h.TrackReport)

	return &fixture{db: database, handler: h, router: r, campaign: campaign, user: user}
}

func (f *fixture) uploadCSV(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/"+f.campaign.ID+"/recipients/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(auth.WithUser(req.Context(), f.user))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestImportEndpoint(t *testing.T) {
	f := setup(t)

	rec := f.uploadCSV(t, "recipients.csv", "email,first_name\na@x.com,Ann\nb@x.com,Bob\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var outcome importer.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if outcome.CreatedCount != 2 || outcome.LinkedCount != 2 {
		t.Errorf("outcome = %+v", outcome)
	}
	if len(outcome.ErrorRows) != 0 {
		t.Errorf("ErrorRows = %v", outcome.ErrorRows)
	}
}

func TestImportEndpointRowErrors(t *testing.T) {
	f := setup(t)

	rec := f.uploadCSV(t, "recipients.csv", "email,first_name\nbad,X\na@x.com,Ann\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, row errors must not fail the request", rec.Code)
	}

	var outcome importer.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if len(outcome.ErrorRows) != 1 || outcome.ErrorRows[0] != 2 {
		t.Errorf("ErrorRows = %v, want [2]", outcome.ErrorRows)
	}
	if outcome.ErrorDetails[2] != "Invalid email format: bad" {
		t.Errorf("detail = %q", outcome.ErrorDetails[2])
	}
}

func TestImportEndpointRejectsBadUploads(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name     string
		filename string
		content  string
		status   int
	}{
		{"wrong extension", "recipients.txt", "email,x\na@x.com,1\n", http.StatusBadRequest},
		{"missing email column", "recipients.csv", "name,dept\nAnn,IT\n", http.StatusBadRequest},
		{"no data rows", "recipients.csv", "email,first_name\n", http.StatusBadRequest},
		{"not csv", "recipients.csv", "just some text", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.uploadCSV(t, tt.filename, tt.content)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestImportEndpointUnknownCampaign(t *testing.T) {
	f := setup(t)
	f.campaign = &models.Campaign{ID: uuid.New().String()}

	rec := f.uploadCSV(t, "recipients.csv", "email,x\na@x.com,1\n")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTrackingEndpoints(t *testing.T) {
	f := setup(t)

	// link one recipient through the importer
	if rec := f.uploadCSV(t, "r.csv", "email,first_name\na@x.com,Ann\n"); rec.Code != http.StatusOK {
		t.Fatalf("import failed: %s", rec.Body.String())
	}
	links, _, err := f.handler.repos.Recipients.ActiveLinks(f.campaign.ID)
	if err != nil || len(links) != 1 {
		t.Fatalf("ActiveLinks = %v, %v", links, err)
	}
	trackingID := links[0].TrackingID

	t.Run("open pixel", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/t/"+trackingID+"/open.gif", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/gif" {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("click redirects", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/t/"+trackingID+"/click", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc == "" {
			t.Error("no redirect location")
		}
	})

	t.Run("report", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/t/"+trackingID+"/report", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("events recorded with hashed ip", func(t *testing.T) {
		counts, err := f.handler.repos.Events.CountsForCampaign(f.campaign.ID)
		if err != nil {
			t.Fatalf("CountsForCampaign failed: %v", err)
		}
		if counts.Opens != 1 || counts.Clicks != 1 || counts.Reports != 1 {
			t.Errorf("counts = %+v, want 1/1/1", counts)
		}

		var ipHash string
		if err := f.db.QueryRow(`SELECT ip_hash FROM events LIMIT 1`).Scan(&ipHash); err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		if ipHash == "" || len(ipHash) != 64 {
			t.Errorf("ip_hash = %q, want 64-char digest", ipHash)
		}
	})

	t.Run("unknown tracking id is silent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/t/"+uuid.New().String()+"/open.gif", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, unknown IDs must not leak", rec.Code)
		}
	})
}

// requestAs performs a JSON request with the given user in context
func (f *fixture) requestAs(t *testing.T, user *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithUser(req.Context(), user))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// seedInboxMessage stores one delivered email for the given address and
// returns its ID
func (f *fixture) seedInboxMessage(t *testing.T, email, subject string) string {
	t.Helper()
	repos := f.handler.repos

	rcpt, _, err := repos.Recipients.GetOrCreate(f.db.DB, email, repository.RecipientDefaults{})
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	link, _, err := repos.Recipients.GetOrCreateLink(f.db.DB, f.campaign.ID, rcpt.ID)
	if err != nil {
		t.Fatalf("GetOrCreateLink failed: %v", err)
	}
	msg := &models.CampaignEmail{
		CampaignID:          f.campaign.ID,
		CampaignRecipientID: link.ID,
		Subject:             subject,
		BodyText:            "hello",
		BodyHTML:            "<p>hello</p>",
	}
	if err := repos.Emails.Create(msg); err != nil {
		t.Fatalf("failed to store email: %v", err)
	}
	return msg.ID
}

func TestInboxMessageOwnership(t *testing.T) {
	f := setup(t)
	msgID := f.seedInboxMessage(t, "alice@x.com", "quarterly update")

	alice := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "x", Role: models.RoleViewer}
	bob := &models.User{Username: "bob", Email: "bob@x.com", PasswordHash: "x", Role: models.RoleViewer}
	for _, u := range []*models.User{alice, bob} {
		if err := f.handler.repos.Users.Create(u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	t.Run("viewer cannot open another recipient's message", func(t *testing.T) {
		rec := f.requestAs(t, bob, http.MethodGet, "/api/inbox/"+msgID, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		msg, err := f.handler.repos.Emails.GetByID(msgID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if msg.IsRead {
			t.Error("denied request must not mark the message read")
		}
	})

	t.Run("viewer opens own message and marks it read", func(t *testing.T) {
		rec := f.requestAs(t, alice, http.MethodGet, "/api/inbox/"+msgID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		msg, err := f.handler.repos.Emails.GetByID(msgID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if !msg.IsRead {
			t.Error("message not marked read")
		}
	})

	t.Run("staff can open any message", func(t *testing.T) {
		rec := f.requestAs(t, f.user, http.MethodGet, "/api/inbox/"+msgID, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}

func TestInboxListScopedToOwnAddress(t *testing.T) {
	f := setup(t)
	f.seedInboxMessage(t, "alice@x.com", "for alice only")

	alice := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "x", Role: models.RoleViewer}
	bob := &models.User{Username: "bob", Email: "bob@x.com", PasswordHash: "x", Role: models.RoleViewer}
	for _, u := range []*models.User{alice, bob} {
		if err := f.handler.repos.Users.Create(u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	var listing struct {
		Emails []models.CampaignEmail `json:"emails"`
	}

	rec := f.requestAs(t, alice, http.MethodGet, "/api/inbox", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if len(listing.Emails) != 1 {
		t.Errorf("alice sees %d emails, want 1", len(listing.Emails))
	}

	rec = f.requestAs(t, bob, http.MethodGet, "/api/inbox", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if len(listing.Emails) != 0 {
		t.Errorf("bob sees %d emails, want 0", len(listing.Emails))
	}
}

func TestCreateCampaignStripsDescriptionHTML(t *testing.T) {
	f := setup(t)

	rec := f.requestAs(t, f.user, http.MethodPost, "/api/campaigns", map[string]any{
		"name":        "drill",
		"description": "<script>alert(1)</script>stay <b>alert</b>",
		"template_id": f.campaign.TemplateID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var c models.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("failed to decode campaign: %v", err)
	}
	if c.Description != "alert(1)stay alert" {
		t.Errorf("description = %q, want tags stripped", c.Description)
	}

	stored, err := f.handler.repos.Campaigns.GetByID(c.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Description != "alert(1)stay alert" {
		t.Errorf("stored description = %q, want tags stripped", stored.Description)
	}
}

func TestCreateTemplateStripsLearningPointsHTML(t *testing.T) {
	f := setup(t)

	rec := f.requestAs(t, f.user, http.MethodPost, "/api/templates", map[string]any{
		"name":            "awareness",
		"subject":         "s",
		"template_type":   models.TemplateTypeCustom,
		"body":            "hi {{first_name}}",
		"learning_points": "<ul><li>check the sender</li></ul>",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var tmpl models.EmailTemplate
	if err := json.Unmarshal(rec.Body.Bytes(), &tmpl); err != nil {
		t.Fatalf("failed to decode template: %v", err)
	}
	if tmpl.LearningPoints != "check the sender" {
		t.Errorf("learning_points = %q, want tags stripped", tmpl.LearningPoints)
	}
}
