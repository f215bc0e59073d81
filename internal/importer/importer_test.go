package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/secsim/phishportal/internal/db"
	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/repository"
)

type recordedEvent struct {
	action  string
	details string
}

type importFixture struct {
	db       *db.DB
	importer *Importer
	campaign *models.Campaign
	actor    *models.User
	events   *[]recordedEvent
}

func setupImportTest(t *testing.T) *importFixture {
	t.Helper()

	database, err := db.NewMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	// A campaign needs a template; a template needs nothing.
	tmplID := uuid.New().String()
	if _, err := database.Exec(
		`INSERT INTO email_templates (id, name, subject) VALUES (?, ?, ?)`,
		tmplID, "Test Template", "Test Subject",
	); err != nil {
		t.Fatalf("failed to insert template: %v", err)
	}

	campaign := &models.Campaign{
		ID:         uuid.New().String(),
		Name:       "Q3 Awareness",
		TemplateID: tmplID,
	}
	if _, err := database.Exec(
		`INSERT INTO campaigns (id, name, template_id) VALUES (?, ?, ?)`,
		campaign.ID, campaign.Name, campaign.TemplateID,
	); err != nil {
		t.Fatalf("failed to insert campaign: %v", err)
	}

	events := &[]recordedEvent{}
	onEvent := func(actor *models.User, action, details string) {
		*events = append(*events, recordedEvent{action: action, details: details})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewRecipientRepository(database.DB)
	imp := New(database.DB, store, onEvent, DefaultConfig(), logger)

	return &importFixture{
		db:       database,
		importer: imp,
		campaign: campaign,
		actor:    &models.User{ID: uuid.New().String(), Username: "instructor"},
		events:   events,
	}
}

func (f *importFixture) run(t *testing.T, csvText string) (*Outcome, error) {
	t.Helper()
	return f.importer.Import(context.Background(), strings.NewReader(csvText), f.campaign, f.actor)
}

func (f *importFixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func (f *importFixture) recipientCount(t *testing.T) int {
	return f.count(t, `SELECT COUNT(*) FROM recipients`)
}

func (f *importFixture) linkCount(t *testing.T) int {
	return f.count(t, `SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id = ?`, f.campaign.ID)
}

func TestImportValidFile(t *testing.T) {
	f := setupImportTest(t)

	outcome, err := f.run(t, "email,first_name\na@x.com,Ann\nb@x.com,Bob\n")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if outcome.CreatedCount != 2 {
		t.Errorf("CreatedCount = %d, want 2", outcome.CreatedCount)
	}
	if outcome.LinkedCount != 2 {
		t.Errorf("LinkedCount = %d, want 2", outcome.LinkedCount)
	}
	if len(outcome.ErrorRows) != 0 {
		t.Errorf("ErrorRows = %v, want empty", outcome.ErrorRows)
	}
	if got := f.recipientCount(t); got != 2 {
		t.Errorf("stored recipients = %d, want 2", got)
	}
	if got := f.linkCount(t); got != 2 {
		t.Errorf("stored links = %d, want 2", got)
	}
}

func TestImportRowErrors(t *testing.T) {
	f := setupImportTest(t)

	// row 2 empty, row 3 malformed, row 4 ok, row 5 duplicate of row 4
	outcome, err := f.run(t, "email\n\"\"\nnotanemail\na@x.com\na@x.com\n")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	wantRows := []int{2, 3, 5}
	if len(outcome.ErrorRows) != len(wantRows) {
		t.Fatalf("ErrorRows = %v, want %v", outcome.ErrorRows, wantRows)
	}
	for i, want := range wantRows {
		if outcome.ErrorRows[i] != want {
			t.Errorf("ErrorRows[%d] = %d, want %d", i, outcome.ErrorRows[i], want)
		}
	}

	if outcome.ErrorDetails[2] != "Email is required." {
		t.Errorf("row 2 detail = %q", outcome.ErrorDetails[2])
	}
	if outcome.ErrorDetails[3] != "Invalid email format: notanemail" {
		t.Errorf("row 3 detail = %q", outcome.ErrorDetails[3])
	}
	if outcome.ErrorDetails[5] != "Duplicate email in file: a@x.com" {
		t.Errorf("row 5 detail = %q", outcome.ErrorDetails[5])
	}

	if outcome.CreatedCount != 1 || outcome.LinkedCount != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", outcome.CreatedCount, outcome.LinkedCount)
	}
	if outcome.TotalRows != 4 {
		t.Errorf("TotalRows = %d, want 4", outcome.TotalRows)
	}
}

func TestImportMissingEmailColumn(t *testing.T) {
	f := setupImportTest(t)

	_, err := f.run(t, "name,dept\nAnn,IT\n")
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("err = %v, want ErrMissingColumns", err)
	}
	if !strings.Contains(err.Error(), "email") {
		t.Errorf("error %q does not name the missing column", err)
	}
	if got := f.recipientCount(t); got != 0 {
		t.Errorf("stored recipients = %d, want 0", got)
	}
}

func TestImportNoDataRows(t *testing.T) {
	f := setupImportTest(t)

	_, err := f.run(t, "email\n")
	if !errors.Is(err, ErrNoDataRows) {
		t.Fatalf("err = %v, want ErrNoDataRows", err)
	}
}

func TestImportEmptyFile(t *testing.T) {
	f := setupImportTest(t)

	_, err := f.run(t, "")
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("err = %v, want ErrEmptyFile", err)
	}
}

func TestImportNonUTF8(t *testing.T) {
	f := setupImportTest(t)

	_, err := f.importer.Import(context.Background(),
		strings.NewReader("email\n\xff\xfe@x.com\n"), f.campaign, f.actor)
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("err = %v, want ErrEncoding", err)
	}
}

func TestImportIdempotent(t *testing.T) {
	f := setupImportTest(t)
	csvText := "email,first_name\na@x.com,Ann\nb@x.com,Bob\n"

	if _, err := f.run(t, csvText); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	outcome, err := f.run(t, csvText)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if outcome.CreatedCount != 0 {
		t.Errorf("CreatedCount = %d, want 0", outcome.CreatedCount)
	}
	if outcome.LinkedCount != 0 {
		t.Errorf("LinkedCount = %d, want 0", outcome.LinkedCount)
	}
	if len(outcome.ErrorRows) != 0 {
		t.Errorf("ErrorRows = %v, want empty", outcome.ErrorRows)
	}
	if got := f.recipientCount(t); got != 2 {
		t.Errorf("stored recipients = %d, want 2", got)
	}
	if got := f.linkCount(t); got != 2 {
		t.Errorf("stored links = %d, want 2", got)
	}
}

func TestImportExistingRecipientNewCampaign(t *testing.T) {
	f := setupImportTest(t)

	if _, err := f.db.Exec(
		`INSERT INTO recipients (id, email) VALUES (?, ?)`,
		uuid.New().String(), "a@x.com",
	); err != nil {
		t.Fatalf("failed to seed recipient: %v", err)
	}

	outcome, err := f.run(t, "email\na@x.com\n")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if outcome.CreatedCount != 0 {
		t.Errorf("CreatedCount = %d, want 0", outcome.CreatedCount)
	}
	if outcome.LinkedCount != 1 {
		t.Errorf("LinkedCount = %d, want 1", outcome.LinkedCount)
	}
	if got := f.recipientCount(t); got != 1 {
		t.Errorf("stored recipients = %d, want 1", got)
	}
}

func TestImportCaseInsensitiveDuplicate(t *testing.T) {
	f := setupImportTest(t)

	outcome, err := f.run(t, "email\nA@x.com\na@x.com\n")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if outcome.CreatedCount != 1 {
		t.Errorf("CreatedCount = %d, want 1", outcome.CreatedCount)
	}
	if len(outcome.ErrorRows) != 1 || outcome.ErrorRows[0] != 3 {
		t.Fatalf("ErrorRows = %v, want [3]", outcome.ErrorRows)
	}
	if outcome.ErrorDetails[3] != "Duplicate email in file: a@x.com" {
		t.Errorf("row 3 detail = %q", outcome.ErrorDetails[3])
	}

	// stored lowercased
	var email string
	if err := f.db.QueryRow(`SELECT email FROM recipients`).Scan(&email); err != nil {
		t.Fatalf("failed to read recipient: %v", err)
	}
	if email != "a@x.com" {
		t.Errorf("stored email = %q, want %q", email, "a@x.com")
	}
}

func TestImportTruncatesLongFields(t *testing.T) {
	f := setupImportTest(t)

	long := strings.Repeat("x", 150)
	outcome, err := f.run(t, "email,first_name\na@x.com,"+long+"\n")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(outcome.ErrorRows) != 0 {
		t.Fatalf("ErrorRows = %v, want empty", outcome.ErrorRows)
	}

	var firstName string
	if err := f.db.QueryRow(`SELECT first_name FROM recipients`).Scan(&firstName); err != nil {
		t.Fatalf("failed to read recipient: %v", err)
	}
	if len(firstName) != models.FieldMaxLen {
		t.Errorf("stored first_name length = %d, want %d", len(firstName), models.FieldMaxLen)
	}
}

func TestImportErrorRowsStrictlyIncreasing(t *testing.T) {
	f := setupImportTest(t)

	outcome, err := f.run(t, "email\nbad1\nok1@x.com\nbad2\nok2@x.com\nbad3\n")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	for i := 1; i < len(outcome.ErrorRows); i++ {
		if outcome.ErrorRows[i] <= outcome.ErrorRows[i-1] {
			t.Fatalf("ErrorRows not strictly increasing: %v", outcome.ErrorRows)
		}
	}
	if len(outcome.ErrorRows) != 3 {
		t.Errorf("ErrorRows = %v, want 3 entries", outcome.ErrorRows)
	}
}

func TestImportAtomicOnMalformedRow(t *testing.T) {
	f := setupImportTest(t)

	// A bare quote mid-file is a structural failure; nothing before it
	// may persist.
	_, err := f.run(t, "email\na@x.com\nb@x.com\n\"broken\n")
	if !errors.Is(err, ErrMalformedCSV) {
		t.Fatalf("err = %v, want ErrMalformedCSV", err)
	}
	if got := f.recipientCount(t); got != 0 {
		t.Errorf("stored recipients = %d, want 0", got)
	}
	if got := f.linkCount(t); got != 0 {
		t.Errorf("stored links = %d, want 0", got)
	}
}

func TestImportAnomalyThreshold(t *testing.T) {
	buildFile := func(badRows int) string {
		var b strings.Builder
		b.WriteString("email\nok@x.com\n")
		for i := 0; i < badRows; i++ {
			b.WriteString("notanemail\n")
		}
		return b.String()
	}

	t.Run("eleven errors trigger one event", func(t *testing.T) {
		f := setupImportTest(t)
		outcome, err := f.run(t, buildFile(11))
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if len(outcome.ErrorRows) != 11 {
			t.Fatalf("ErrorRows = %d entries, want 11", len(outcome.ErrorRows))
		}

		var anomalies []recordedEvent
		for _, ev := range *f.events {
			if ev.action == EventAnomalousImport {
				anomalies = append(anomalies, ev)
			}
		}
		if len(anomalies) != 1 {
			t.Fatalf("anomaly events = %d, want 1", len(anomalies))
		}
		if !strings.Contains(anomalies[0].details, "11/12 rows") {
			t.Errorf("anomaly details = %q, want error ratio included", anomalies[0].details)
		}
		if !strings.Contains(anomalies[0].details, f.campaign.Name) {
			t.Errorf("anomaly details = %q, want campaign name included", anomalies[0].details)
		}
	})

	t.Run("ten errors trigger none", func(t *testing.T) {
		f := setupImportTest(t)
		if _, err := f.run(t, buildFile(10)); err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		for _, ev := range *f.events {
			if ev.action == EventAnomalousImport {
				t.Fatalf("unexpected anomaly event: %+v", ev)
			}
		}
	})
}

func TestImportRecipientLimit(t *testing.T) {
	f := setupImportTest(t)
	f.importer.cfg.MaxRecipients = 2

	_, err := f.run(t, "email\na@x.com\nb@x.com\nc@x.com\n")
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}

	// document-level failure: the whole batch rolls back
	if got := f.recipientCount(t); got != 0 {
		t.Errorf("stored recipients = %d, want 0", got)
	}

	var limitEvents int
	for _, ev := range *f.events {
		if ev.action == EventLimitExceeded {
			limitEvents++
		}
	}
	if limitEvents != 1 {
		t.Errorf("limit events = %d, want 1", limitEvents)
	}
}

func TestImportInvalidRowsPastLimitStillReported(t *testing.T) {
	f := setupImportTest(t)
	f.importer.cfg.MaxRecipients = 2

	// The trailing invalid row must not trip the cap; it fails validation
	// before the cap check.
	outcome, err := f.run(t, "email\na@x.com\nb@x.com\nnotanemail\n")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if outcome.CreatedCount != 2 {
		t.Errorf("CreatedCount = %d, want 2", outcome.CreatedCount)
	}
	if len(outcome.ErrorRows) != 1 || outcome.ErrorRows[0] != 4 {
		t.Errorf("ErrorRows = %v, want [4]", outcome.ErrorRows)
	}
}

func TestImportActorPrefixInEvents(t *testing.T) {
	f := setupImportTest(t)

	var b strings.Builder
	b.WriteString("email\nok@x.com\n")
	for i := 0; i < 11; i++ {
		b.WriteString("bad\n")
	}
	if _, err := f.run(t, b.String()); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if len(*f.events) == 0 {
		t.Fatal("no events recorded")
	}
	if !strings.HasPrefix((*f.events)[0].details, "User: instructor, ") {
		t.Errorf("event details = %q, want actor prefix", (*f.events)[0].details)
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@x.com", true},
		{"first.last@sub.example.org", true},
		{"user+tag@example.com", true},
		{"notanemail", false},
		{"@x.com", false},
		{"a@", false},
		{"a@nodot", false},
		{"a@.com", false},
		{"a@x.com.", false},
		{"Ann <a@x.com>", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := validEmail(tt.email); got != tt.want {
			t.Errorf("validEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestColumnIndex(t *testing.T) {
	cols := columnIndex([]string{" Email ", "FIRST_NAME", "email"})
	if cols["email"] != 0 {
		t.Errorf("email index = %d, want 0 (first occurrence wins)", cols["email"])
	}
	if cols["first_name"] != 1 {
		t.Errorf("first_name index = %d, want 1", cols["first_name"])
	}
}
