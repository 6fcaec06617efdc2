// Package importer maps arbitrary tabular input into the canonical lead
// schema and drives bulk ingestion.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

// maxErrorMessages caps the per-row error detail kept in a Result so a
// pathological file cannot grow memory without bound.
const maxErrorMessages = 500

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Result aggregates the outcome of one bulk import.
type Result struct {
	TotalRows        int      `json:"total_rows"`
	Imported         int      `json:"imported"`
	SkippedDuplicate int      `json:"skipped_duplicate"`
	Errors           int      `json:"errors"`
	ErrorMessages    []string `json:"error_messages,omitempty"`
}

// recordError counts a row failure, keeping at most maxErrorMessages
// messages with a truncation note.
func (r *Result) recordError(msg string) {
	r.Errors++
	switch {
	case len(r.ErrorMessages) < maxErrorMessages:
		r.ErrorMessages = append(r.ErrorMessages, msg)
	case len(r.ErrorMessages) == maxErrorMessages:
		r.ErrorMessages = append(r.ErrorMessages, fmt.Sprintf("... additional errors truncated after %d messages", maxErrorMessages))
	}
}

// DuplicateChecker reports whether a lead matching the given identity
// fields already exists (name substring case-insensitive, exact phone, or
// exact owner email).
type DuplicateChecker interface {
	MatchesExisting(ctx context.Context, name, phone, email string) (bool, error)
}

// LeadWriter persists imported leads.
type LeadWriter interface {
	CreateLead(ctx context.Context, lead *model.Lead) error
}

// Options configures one import run.
type Options struct {
	// SkipDuplicates skips rows matching an existing lead instead of
	// importing them; skips are counted separately from errors.
	SkipDuplicates bool

	// Tags are attached to every imported lead (e.g. the source list name).
	Tags []string
}

// Importer ingests tabular rows into the lead store.
type Importer struct {
	writer  LeadWriter
	checker DuplicateChecker
}

// New creates an importer. checker may be nil when duplicate suppression
// is never requested.
func New(writer LeadWriter, checker DuplicateChecker) *Importer {
	return &Importer{writer: writer, checker: checker}
}

// Run consumes rows from the channel, mapping and persisting each one.
// The first error on errCh aborts the run; row-level problems are counted
// in the result and never abort.
func (im *Importer) Run(ctx context.Context, header []string, rows <-chan []string, errCh <-chan error, opts Options) (*Result, error) {
	mapping := DetectFormat(header)
	if _, ok := mapping[FieldBusinessName]; !ok {
		return nil, eris.Errorf("import: no business name column recognized in header %v", header)
	}

	log := zap.L().With(zap.Bool("skip_duplicates", opts.SkipDuplicates))
	log.Info("starting import", zap.Int("mapped_columns", len(mapping)))

	res := &Result{}
	rowNum := 1 // header was row 1

	for row := range rows {
		rowNum++
		res.TotalRows++

		lead, err := MapRecord(row, mapping)
		if err != nil {
			res.recordError(fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		lead.Tags = append(lead.Tags, opts.Tags...)

		if opts.SkipDuplicates && im.checker != nil {
			dup, err := im.checker.MatchesExisting(ctx, lead.BusinessName, lead.Phone, lead.OwnerEmail)
			if err != nil {
				return res, eris.Wrap(err, "import: duplicate check")
			}
			if dup {
				res.SkippedDuplicate++
				continue
			}
		}

		if err := im.writer.CreateLead(ctx, lead); err != nil {
			return res, eris.Wrapf(err, "import: insert row %d", rowNum)
		}
		res.Imported++
	}

	if err := <-errCh; err != nil {
		return res, eris.Wrap(err, "import: read rows")
	}

	log.Info("import complete",
		zap.Int("total", res.TotalRows),
		zap.Int("imported", res.Imported),
		zap.Int("skipped_duplicate", res.SkippedDuplicate),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}

// MapRecord applies a column mapping to one row and normalizes the result
// into a lead draft. A row without a business name is an error; every
// other field is optional.
func MapRecord(row []string, mapping Mapping) (*model.Lead, error) {
	name := mapping.value(row, FieldBusinessName)
	if name == "" {
		return nil, eris.New("missing business name")
	}

	now := time.Now().UTC()
	lead := &model.Lead{
		ID:               uuid.New().String(),
		BusinessName:     name,
		Address:          mapping.value(row, FieldAddress),
		City:             mapping.value(row, FieldCity),
		State:            mapping.value(row, FieldState),
		Phone:            FormatPhone(mapping.value(row, FieldPhone)),
		Website:          NormalizeWebsite(mapping.value(row, FieldWebsite)),
		OwnerName:        mapping.value(row, FieldOwnerName),
		EnrichmentStatus: model.EnrichmentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Invalid emails are dropped, not stored.
	if email := strings.ToLower(mapping.value(row, FieldOwnerEmail)); emailRe.MatchString(email) {
		lead.OwnerEmail = email
	}

	lead.UniqueKey = UniqueKey(lead)

	return lead, nil
}

// FormatPhone renders a domestic number as (XXX) XXX-XXXX when it has
// exactly 10 digits, or 11 with a leading 1. Anything else is returned
// unchanged.
func FormatPhone(phone string) string {
	if phone == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return phone
	}
	return fmt.Sprintf("(%s) %s-%s", d[0:3], d[3:6], d[6:10])
}

// NormalizeWebsite prefixes a bare domain with https://.
func NormalizeWebsite(website string) string {
	if website == "" {
		return ""
	}
	if strings.HasPrefix(website, "http://") || strings.HasPrefix(website, "https://") {
		return website
	}
	return "https://" + website
}

// UniqueKey derives a source-independent uniqueness hint by hashing the
// business name with the first available contact field.
func UniqueKey(lead *model.Lead) string {
	contact := lead.Address
	if contact == "" {
		contact = lead.Phone
	}
	if contact == "" {
		contact = lead.Website
	}
	sum := sha256.Sum256([]byte(strings.ToLower(lead.BusinessName) + "|" + strings.ToLower(contact)))
	return hex.EncodeToString(sum[:16])
}
