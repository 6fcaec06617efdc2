package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

func TestSelectPrimary_PrefersCompleteness(t *testing.T) {
	sparse := model.Lead{ID: "sparse", BusinessName: "Acme"}
	rich := model.Lead{
		ID:            "rich",
		BusinessName:  "Acme",
		OwnerName:     "Jane Doe",
		OwnerEmail:    "jane@acme.com",
		EmailVerified: true,
		Phone:         "555-111-2222",
		Website:       "https://acme.com",
	}

	assert.Equal(t, "rich", SelectPrimary([]model.Lead{sparse, rich}).ID)
	assert.Equal(t, "rich", SelectPrimary([]model.Lead{rich, sparse}).ID)
}

func TestSelectPrimary_VerifiedEmailBeatsUnverified(t *testing.T) {
	unverified := model.Lead{ID: "u", BusinessName: "Acme", OwnerEmail: "a@acme.com"}
	verified := model.Lead{ID: "v", BusinessName: "Acme", OwnerEmail: "b@acme.com", EmailVerified: true}

	assert.Equal(t, "v", SelectPrimary([]model.Lead{unverified, verified}).ID)
}

func TestSelectPrimary_TieGoesToFirst(t *testing.T) {
	a := model.Lead{ID: "first", BusinessName: "Acme", Phone: "555-111-2222"}
	b := model.Lead{ID: "second", BusinessName: "Acme", Phone: "555-333-4444"}

	assert.Equal(t, "first", SelectPrimary([]model.Lead{a, b}).ID)
}

func TestSelectPrimary_EnrichedStatusCounts(t *testing.T) {
	pending := model.Lead{ID: "p", BusinessName: "Acme", Phone: "555-111-2222"}
	enriched := model.Lead{ID: "e", BusinessName: "Acme", EnrichmentStatus: model.EnrichmentEnriched}

	assert.Equal(t, "e", SelectPrimary([]model.Lead{pending, enriched}).ID)
}

func TestMerge_ScalarsFillFromFirstNonEmpty(t *testing.T) {
	primary := model.Lead{ID: "p", BusinessName: "Acme HVAC", Phone: "555-111-2222"}
	others := []model.Lead{
		{ID: "a", Address: "123 Main St", City: "Springfield"},
		{ID: "b", Address: "456 Oak Ave", State: "IL", OwnerName: "Jane Doe"},
	}

	merged := Merge(primary, others)

	assert.Equal(t, "p", merged.ID)
	assert.Equal(t, "555-111-2222", merged.Phone)
	assert.Equal(t, "123 Main St", merged.Address, "first non-empty wins, not last")
	assert.Equal(t, "Springfield", merged.City)
	assert.Equal(t, "IL", merged.State)
	assert.Equal(t, "Jane Doe", merged.OwnerName)
}

func TestMerge_PrimaryScalarsNeverOverwritten(t *testing.T) {
	primary := model.Lead{ID: "p", BusinessName: "Acme HVAC", Phone: "555-111-2222"}
	others := []model.Lead{{ID: "a", BusinessName: "Acme Heating", Phone: "555-999-0000"}}

	merged := Merge(primary, others)

	assert.Equal(t, "Acme HVAC", merged.BusinessName)
	assert.Equal(t, "555-111-2222", merged.Phone)
}

func TestMerge_CountersSum(t *testing.T) {
	primary := model.Lead{ID: "p", ContactAttempts: 2, EmailsSent: 3, EmailsOpened: 1, SMSSent: 1}
	others := []model.Lead{
		{ID: "a", ContactAttempts: 1, EmailsSent: 2, EmailsOpened: 2},
		{ID: "b", ContactAttempts: 4, SMSSent: 5},
	}

	merged := Merge(primary, others)

	assert.Equal(t, 7, merged.ContactAttempts)
	assert.Equal(t, 5, merged.EmailsSent)
	assert.Equal(t, 3, merged.EmailsOpened)
	assert.Equal(t, 6, merged.SMSSent)
}

func TestMerge_TagsDedupedPreservingFirstOccurrence(t *testing.T) {
	primary := model.Lead{ID: "p", Tags: []string{"hvac", "chicago"}}
	others := []model.Lead{
		{ID: "a", Tags: []string{"chicago", "import-2026"}},
		{ID: "b", Tags: []string{"hvac"}},
	}

	merged := Merge(primary, others)
	assert.Equal(t, []string{"hvac", "chicago", "import-2026"}, merged.Tags)
}

func TestMerge_ScoreQuadrupleAdoptedAsUnit(t *testing.T) {
	primary := model.Lead{ID: "p", Scores: model.LeadScores{Fit: 90, Engagement: 10, ContactQuality: 20, Opportunity: 20, Total: 35}}
	other := model.Lead{ID: "a", Scores: model.LeadScores{Fit: 40, Engagement: 50, ContactQuality: 50, Opportunity: 40, Total: 45}}

	merged := Merge(primary, []model.Lead{other})

	// The whole quadruple moves together; element-wise maximums would
	// produce Fit 90 here.
	assert.Equal(t, other.Scores, merged.Scores)
}

func TestMerge_LowerScoringOtherKeepsPrimaryScores(t *testing.T) {
	primary := model.Lead{ID: "p", Scores: model.LeadScores{Fit: 60, Engagement: 60, ContactQuality: 60, Opportunity: 60, Total: 60}}
	other := model.Lead{ID: "a", Scores: model.LeadScores{Fit: 99, Engagement: 1, ContactQuality: 1, Opportunity: 1, Total: 26}}

	merged := Merge(primary, []model.Lead{other})
	assert.Equal(t, primary.Scores, merged.Scores)
}

func TestMerge_EnrichedStatusPropagates(t *testing.T) {
	primary := model.Lead{ID: "p", EnrichmentStatus: model.EnrichmentPending}
	other := model.Lead{ID: "a", EnrichmentStatus: model.EnrichmentEnriched}

	merged := Merge(primary, []model.Lead{other})
	assert.Equal(t, model.EnrichmentEnriched, merged.EnrichmentStatus)
}

func TestMerge_DoesNotAliasInputSlices(t *testing.T) {
	primaryTags := []string{"hvac"}
	primary := model.Lead{ID: "p", Tags: primaryTags}
	other := model.Lead{ID: "a", Tags: []string{"plumbing"}}

	merged := Merge(primary, []model.Lead{other})
	merged.Tags[0] = "mutated"

	assert.Equal(t, "hvac", primaryTags[0])
}

// mergeStore is an in-memory MergeStore for ApplyMerge tests.
type mergeStore struct {
	leads   map[string]model.Lead
	deleted []string
	updated *model.Lead
}

func (m *mergeStore) GetLeads(_ context.Context, ids []string) ([]model.Lead, error) {
	var out []model.Lead
	for _, id := range ids {
		if l, ok := m.leads[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mergeStore) UpdateLead(_ context.Context, lead *model.Lead) error {
	m.updated = lead
	m.leads[lead.ID] = *lead
	return nil
}

func (m *mergeStore) DeleteLeads(_ context.Context, ids []string) error {
	m.deleted = append(m.deleted, ids...)
	for _, id := range ids {
		delete(m.leads, id)
	}
	return nil
}

func TestApplyMerge_ExplicitPrimary(t *testing.T) {
	st := &mergeStore{leads: map[string]model.Lead{
		"a": {ID: "a", BusinessName: "Acme", ContactAttempts: 1},
		"b": {ID: "b", BusinessName: "Acme HVAC", ContactAttempts: 2},
	}}

	merged, err := ApplyMerge(context.Background(), st, []string{"a", "b"}, "b")
	require.NoError(t, err)

	assert.Equal(t, "b", merged.ID)
	assert.Equal(t, 3, merged.ContactAttempts)
	assert.Equal(t, []string{"a"}, st.deleted)
}

func TestApplyMerge_HeuristicPrimaryWhenUnspecified(t *testing.T) {
	st := &mergeStore{leads: map[string]model.Lead{
		"sparse": {ID: "sparse", BusinessName: "Acme"},
		"rich":   {ID: "rich", BusinessName: "Acme", Phone: "555-111-2222", OwnerName: "Jane"},
	}}

	merged, err := ApplyMerge(context.Background(), st, []string{"sparse", "rich"}, "")
	require.NoError(t, err)
	assert.Equal(t, "rich", merged.ID)
}

func TestApplyMerge_RequiresTwoLeads(t *testing.T) {
	st := &mergeStore{leads: map[string]model.Lead{"a": {ID: "a"}}}

	_, err := ApplyMerge(context.Background(), st, []string{"a"}, "")
	assert.Error(t, err)
}

func TestApplyMerge_UnresolvedLeadFails(t *testing.T) {
	st := &mergeStore{leads: map[string]model.Lead{"a": {ID: "a"}}}

	_, err := ApplyMerge(context.Background(), st, []string{"a", "ghost"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolved 1 of 2")
}

func TestApplyMerge_PrimaryMustBeInCluster(t *testing.T) {
	st := &mergeStore{leads: map[string]model.Lead{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}

	_, err := ApplyMerge(context.Background(), st, []string{"a", "b"}, "outsider")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in cluster")
}
