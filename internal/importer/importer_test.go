package importer

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   Mapping
	}{
		{
			"canonical names",
			[]string{"business_name", "phone", "owner_email"},
			Mapping{FieldBusinessName: 0, FieldPhone: 1, FieldOwnerEmail: 2},
		},
		{
			"case insensitive with whitespace",
			[]string{"  Company Name ", "TELEPHONE", "E-Mail"},
			Mapping{FieldBusinessName: 0, FieldPhone: 1, FieldOwnerEmail: 2},
		},
		{
			"first matching column wins",
			[]string{"company", "business name", "phone"},
			Mapping{FieldBusinessName: 0, FieldPhone: 2},
		},
		{
			"unknown headers ignored",
			[]string{"widget_count", "business", "notes"},
			Mapping{FieldBusinessName: 1},
		},
		{
			"nothing recognized",
			[]string{"foo", "bar"},
			Mapping{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.header))
		})
	}
}

func TestMapRecord(t *testing.T) {
	mapping := DetectFormat([]string{"company", "address", "city", "state", "phone", "website", "owner", "email"})

	lead, err := MapRecord([]string{"Acme HVAC", "123 Main St", "Springfield", "IL", "5551234567", "acme.com", "Jane Doe", "JANE@ACME.COM"}, mapping)
	require.NoError(t, err)

	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "Acme HVAC", lead.BusinessName)
	assert.Equal(t, "(555) 123-4567", lead.Phone)
	assert.Equal(t, "https://acme.com", lead.Website)
	assert.Equal(t, "jane@acme.com", lead.OwnerEmail, "emails are lowercased")
	assert.Equal(t, model.EnrichmentPending, lead.EnrichmentStatus)
	assert.NotEmpty(t, lead.UniqueKey)
	assert.False(t, lead.CreatedAt.IsZero())
}

func TestMapRecord_MissingBusinessName(t *testing.T) {
	mapping := DetectFormat([]string{"company", "phone"})

	_, err := MapRecord([]string{"", "5551234567"}, mapping)
	assert.Error(t, err)
}

func TestMapRecord_InvalidEmailDropped(t *testing.T) {
	mapping := DetectFormat([]string{"company", "email"})

	lead, err := MapRecord([]string{"Acme", "not-an-email"}, mapping)
	require.NoError(t, err)
	assert.Empty(t, lead.OwnerEmail)
}

func TestMapRecord_ShortRow(t *testing.T) {
	mapping := DetectFormat([]string{"company", "phone", "email"})

	lead, err := MapRecord([]string{"Acme"}, mapping)
	require.NoError(t, err)
	assert.Empty(t, lead.Phone)
	assert.Empty(t, lead.OwnerEmail)
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"5551234567", "(555) 123-4567"},
		{"555.123.4567", "(555) 123-4567"},
		{"+1 555 123 4567", "(555) 123-4567"},
		{"15551234567", "(555) 123-4567"},
		{"123", "123"},
		{"+44 20 7946 0958", "+44 20 7946 0958"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPhone(tt.in))
	}
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "https://acme.com", NormalizeWebsite("acme.com"))
	assert.Equal(t, "http://acme.com", NormalizeWebsite("http://acme.com"))
	assert.Equal(t, "https://acme.com", NormalizeWebsite("https://acme.com"))
	assert.Equal(t, "", NormalizeWebsite(""))
}

func TestUniqueKey(t *testing.T) {
	a := &model.Lead{BusinessName: "Acme HVAC", Address: "123 Main St"}
	b := &model.Lead{BusinessName: "ACME HVAC", Address: "123 MAIN ST"}
	c := &model.Lead{BusinessName: "Acme HVAC", Address: "456 Oak Ave"}

	assert.Equal(t, UniqueKey(a), UniqueKey(b), "key is case-insensitive")
	assert.NotEqual(t, UniqueKey(a), UniqueKey(c))

	// Falls back through phone and website when no address exists.
	phoneOnly := &model.Lead{BusinessName: "Acme", Phone: "(555) 123-4567"}
	webOnly := &model.Lead{BusinessName: "Acme", Website: "https://acme.com"}
	assert.NotEqual(t, UniqueKey(phoneOnly), UniqueKey(webOnly))
}

// captureWriter records created leads in order.
type captureWriter struct {
	leads []*model.Lead
	err   error
}

func (w *captureWriter) CreateLead(_ context.Context, lead *model.Lead) error {
	if w.err != nil {
		return w.err
	}
	w.leads = append(w.leads, lead)
	return nil
}

// staticChecker flags the named businesses as existing duplicates.
type staticChecker struct {
	existing map[string]bool
}

func (c *staticChecker) MatchesExisting(_ context.Context, name, _, _ string) (bool, error) {
	return c.existing[name], nil
}

func feedRows(rows ...[]string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, len(rows))
	errCh := make(chan error, 1)
	for _, r := range rows {
		rowCh <- r
	}
	close(rowCh)
	close(errCh)
	return rowCh, errCh
}

func TestRun_ImportsRowsAndCountsErrors(t *testing.T) {
	w := &captureWriter{}
	im := New(w, nil)

	rows, errCh := feedRows(
		[]string{"Acme HVAC", "5551234567"},
		[]string{"", "5559990000"}, // no business name
		[]string{"Bravo Plumbing", ""},
	)

	res, err := im.Run(context.Background(), []string{"company", "phone"}, rows, errCh, Options{Tags: []string{"list-a"}})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRows)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.ErrorMessages, 1)
	assert.Contains(t, res.ErrorMessages[0], "row 3")

	require.Len(t, w.leads, 2)
	assert.Equal(t, []string{"list-a"}, w.leads[0].Tags)
}

func TestRun_UnrecognizedHeaderFails(t *testing.T) {
	im := New(&captureWriter{}, nil)
	rows, errCh := feedRows()

	_, err := im.Run(context.Background(), []string{"foo", "bar"}, rows, errCh, Options{})
	assert.Error(t, err)
}

func TestRun_SkipDuplicates(t *testing.T) {
	w := &captureWriter{}
	im := New(w, &staticChecker{existing: map[string]bool{"Acme HVAC": true}})

	rows, errCh := feedRows(
		[]string{"Acme HVAC"},
		[]string{"Bravo Plumbing"},
	)

	res, err := im.Run(context.Background(), []string{"company"}, rows, errCh, Options{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SkippedDuplicate)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, w.leads, 1)
	assert.Equal(t, "Bravo Plumbing", w.leads[0].BusinessName)
}

func TestRun_WriterErrorAborts(t *testing.T) {
	w := &captureWriter{err: eris.New("disk full")}
	im := New(w, nil)

	rows, errCh := feedRows([]string{"Acme HVAC"}, []string{"Bravo"})

	res, err := im.Run(context.Background(), []string{"company"}, rows, errCh, Options{})
	require.Error(t, err)
	assert.Equal(t, 0, res.Imported)
}

func TestRun_SourceErrorSurfaces(t *testing.T) {
	rowCh := make(chan []string)
	close(rowCh)
	errCh := make(chan error, 1)
	errCh <- eris.New("malformed row")
	close(errCh)

	im := New(&captureWriter{}, nil)
	_, err := im.Run(context.Background(), []string{"company"}, rowCh, errCh, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read rows")
}
