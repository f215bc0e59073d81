// Package importer implements the CSV recipient import pipeline: parse an
// uploaded CSV, validate and normalize each row, deduplicate within the
// file and against storage, and link recipients to a campaign inside a
// single transaction.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/repository"
)

// Document-level failures. They abort the whole import with no writes;
// row-level problems never surface as errors (see Outcome).
var (
	ErrEncoding       = errors.New("csv file must be UTF-8 encoded")
	ErrEmptyFile      = errors.New("csv file appears to be empty or invalid")
	ErrMalformedCSV   = errors.New("invalid csv format")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("csv file contains no data rows")
	ErrLimitExceeded  = errors.New("recipient limit exceeded")
)

// Row failure reasons. Handlers render these verbatim, so changing them
// changes the user-facing contract.
const (
	reasonEmailRequired = "Email is required."
	reasonInvalidEmail  = "Invalid email format: %s"
	reasonDuplicate     = "Duplicate email in file: %s"
	reasonDatabase      = "database error: %v"
)

// Audit event names emitted by the pipeline
const (
	EventAnomalousImport = "Suspicious CSV import - many errors"
	EventLimitExceeded   = "Recipient limit exceeded - CSV upload"
)

// Outcome is the ephemeral result of one import invocation. Every data
// row is accounted for: it contributed to CreatedCount/LinkedCount, was a
// silent already-linked no-op, or appears in ErrorRows.
type Outcome struct {
	CreatedCount int            `json:"created_count"`
	LinkedCount  int            `json:"linked_count"`
	ErrorRows    []int          `json:"error_rows"`
	ErrorDetails map[int]string `json:"error_details"`
	TotalRows    int            `json:"total_rows"`
}

func (o *Outcome) addError(row int, reason string) {
	o.ErrorRows = append(o.ErrorRows, row)
	o.ErrorDetails[row] = reason
}

// RecipientStore is the persistence collaborator: atomic get-or-create
// for recipients and campaign links, runnable inside a transaction.
type RecipientStore interface {
	GetOrCreate(q repository.Querier, email string, defaults repository.RecipientDefaults) (*models.Recipient, bool, error)
	GetOrCreateLink(q repository.Querier, campaignID, recipientID string) (*models.CampaignRecipient, bool, error)
}

// EventFunc receives best-effort security events. It must not panic;
// its failures are the callee's problem, never the import's.
type EventFunc func(actor *models.User, action, details string)

// Config bounds one importer instance
type Config struct {
	// MaxRecipients caps created+linked rows per invocation
	MaxRecipients int
	// AnomalyThreshold is the error-row count above which one anomaly
	// event is emitted after commit
	AnomalyThreshold int
}

func DefaultConfig() Config {
	return Config{
		MaxRecipients:    1000,
		AnomalyThreshold: 10,
	}
}

type Importer struct {
	db      *sql.DB
	store   RecipientStore
	onEvent EventFunc
	cfg     Config
	logger  *slog.Logger
}

// New creates an importer. onEvent may be nil when no audit sink is wired.
func New(db *sql.DB, store RecipientStore, onEvent EventFunc, cfg Config, logger *slog.Logger) *Importer {
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = DefaultConfig().MaxRecipients
	}
	if cfg.AnomalyThreshold <= 0 {
		cfg.AnomalyThreshold = DefaultConfig().AnomalyThreshold
	}
	return &Importer{
		db:      db,
		store:   store,
		onEvent: onEvent,
		cfg:     cfg,
		logger:  logger.With("component", "importer"),
	}
}

// rowResult is the tagged per-row outcome. Validation failures are data,
// not control flow; only document-level problems abort the run.
type rowStatus int

const (
	rowCreated rowStatus = iota // new recipient created and linked
	rowLinked                   // existing recipient, new link
	rowNoop                     // already linked, silent no-op
	rowFailed                   // recorded in ErrorRows
	rowLimit                    // per-invocation recipient cap reached
)

type rowResult struct {
	num    int
	status rowStatus
	reason string
}

// Import runs the whole pipeline for one uploaded file. Rows are numbered
// from 2 (row 1 is the header); ordering in Outcome.ErrorRows matches file
// order. All writes commit together or not at all.
func (im *Importer) Import(ctx context.Context, r io.Reader, campaign *models.Campaign, actor *models.User) (*Outcome, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrEncoding
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1 // rows may have fewer fields than the header
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, ErrEmptyFile
	}

	cols := columnIndex(header)
	if _, ok := cols["email"]; !ok {
		return nil, fmt.Errorf("%w: email", ErrMissingColumns)
	}

	outcome := &Outcome{
		ErrorRows:    []int{},
		ErrorDetails: map[int]string{},
	}

	tx, err := im.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after a successful commit.
	defer tx.Rollback()

	emailsSeen := make(map[string]struct{})
	rowNum := 1 // header

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structurally broken file: abort with no partial effects.
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		rowNum++
		outcome.TotalRows++

		res := im.processRow(tx, campaign, parseRow(record, cols), rowNum, emailsSeen, outcome)
		if res.status == rowLimit {
			im.emit(actor, EventLimitExceeded, fmt.Sprintf(
				"Campaign: %s (ID: %s), Limit: %d, Processed: %d",
				campaign.Name, campaign.ID, im.cfg.MaxRecipients, outcome.CreatedCount+outcome.LinkedCount,
			))
			return nil, fmt.Errorf("%w: maximum %d recipients allowed per upload", ErrLimitExceeded, im.cfg.MaxRecipients)
		}
		switch res.status {
		case rowCreated:
			outcome.CreatedCount++
			outcome.LinkedCount++
		case rowLinked:
			outcome.LinkedCount++
		case rowNoop:
			// already linked: counts toward neither counter nor errors
		case rowFailed:
			outcome.addError(res.num, res.reason)
		}
	}

	if outcome.TotalRows == 0 {
		return nil, ErrNoDataRows
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	if len(outcome.ErrorRows) > im.cfg.AnomalyThreshold {
		im.emit(actor, EventAnomalousImport, fmt.Sprintf(
			"Campaign: %s (ID: %s), Errors: %d/%d rows",
			campaign.Name, campaign.ID, len(outcome.ErrorRows), outcome.TotalRows,
		))
	}

	im.logger.Info("csv import finished",
		"campaign", campaign.ID,
		"created", outcome.CreatedCount,
		"linked", outcome.LinkedCount,
		"errors", len(outcome.ErrorRows),
		"rows", outcome.TotalRows,
	)

	return outcome, nil
}

// row is one parsed data row with named fields; absent optional columns
// yield empty strings.
type row struct {
	email      string
	firstName  string
	lastName   string
	department string
}

func parseRow(record []string, cols map[string]int) row {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	return row{
		email:      field("email"),
		firstName:  field("first_name"),
		lastName:   field("last_name"),
		department: field("department"),
	}
}

// processRow applies the per-row checks in contract order. The first
// failing check short-circuits; persistence errors are downgraded to row
// errors so one bad row never affects its siblings.
func (im *Importer) processRow(tx *sql.Tx, campaign *models.Campaign, rec row, num int, seen map[string]struct{}, outcome *Outcome) rowResult {
	if rec.email == "" {
		return rowResult{num: num, status: rowFailed, reason: reasonEmailRequired}
	}

	if !validEmail(rec.email) {
		return rowResult{num: num, status: rowFailed, reason: fmt.Sprintf(reasonInvalidEmail, rec.email)}
	}

	normalized := strings.ToLower(rec.email)
	if _, dup := seen[normalized]; dup {
		return rowResult{num: num, status: rowFailed, reason: fmt.Sprintf(reasonDuplicate, rec.email)}
	}
	seen[normalized] = struct{}{}

	// The cap is checked only once a row is otherwise acceptable, so a
	// tail of invalid rows past the limit still reports validation errors.
	if outcome.CreatedCount+outcome.LinkedCount >= im.cfg.MaxRecipients {
		return rowResult{num: num, status: rowLimit}
	}

	recipient, created, err := im.store.GetOrCreate(tx, normalized, repository.RecipientDefaults{
		FirstName:  rec.firstName,
		LastName:   rec.lastName,
		Department: rec.department,
	})
	if err != nil {
		return rowResult{num: num, status: rowFailed, reason: fmt.Sprintf(reasonDatabase, err)}
	}

	_, linked, err := im.store.GetOrCreateLink(tx, campaign.ID, recipient.ID)
	if err != nil {
		return rowResult{num: num, status: rowFailed, reason: fmt.Sprintf(reasonDatabase, err)}
	}

	switch {
	case created:
		return rowResult{num: num, status: rowCreated}
	case linked:
		return rowResult{num: num, status: rowLinked}
	default:
		return rowResult{num: num, status: rowNoop}
	}
}

func (im *Importer) emit(actor *models.User, action, details string) {
	if im.onEvent == nil {
		return
	}
	if actor != nil {
		details = fmt.Sprintf("User: %s, %s", actor.Username, details)
	}
	im.onEvent(actor, action, details)
}

// columnIndex maps lowercased, trimmed header names to field positions.
// Unrecognized columns are simply never looked up.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, exists := cols[name]; !exists {
			cols[name] = i
		}
	}
	return cols
}

// validEmail checks address syntax. A bare address is required: display
// names are rejected, and the domain must contain a dot.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	if at < 1 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
