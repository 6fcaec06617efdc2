package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-engine/internal/model"
)

func TestContactQuality(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name string
		lead model.Lead
		want int
	}{
		{"empty lead", model.Lead{}, 0},
		{"phone only", model.Lead{Phone: "555-123-4567"}, 25},
		{"unverified email", model.Lead{OwnerEmail: "a@b.com"}, 25},
		{"verified email", model.Lead{OwnerEmail: "a@b.com", EmailVerified: true}, 35},
		{"verified flag without email ignored", model.Lead{EmailVerified: true}, 0},
		{"owner name", model.Lead{OwnerName: "Jane"}, 20},
		{"website", model.Lead{Website: "https://acme.com"}, 20},
		{"address", model.Lead{Address: "123 Main St"}, 10},
		{
			"everything clamps to 100",
			model.Lead{
				Phone:         "555-123-4567",
				OwnerEmail:    "a@b.com",
				EmailVerified: true,
				OwnerName:     "Jane",
				Website:       "https://acme.com",
				Address:       "123 Main St",
			},
			100, // raw points are 110
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.contactQuality(&tt.lead))
		})
	}
}

func TestFit(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name string
		lead model.Lead
		want int
	}{
		{"base applies to empty lead", model.Lead{}, 20},
		{"website", model.Lead{Website: "https://acme.com"}, 40},
		{"city alone is not a location", model.Lead{City: "Springfield"}, 20},
		{"state alone is not a location", model.Lead{State: "IL"}, 20},
		{"city and state", model.Lead{City: "Springfield", State: "IL"}, 35},
		{"enriched", model.Lead{EnrichmentStatus: model.EnrichmentEnriched}, 45},
		{"pending gets no enrichment points", model.Lead{EnrichmentStatus: model.EnrichmentPending}, 20},
		{"pain points", model.Lead{PainPoints: "aging fleet"}, 40},
		{
			"all signals",
			model.Lead{
				Website:          "https://acme.com",
				City:             "Springfield",
				State:            "IL",
				EnrichmentStatus: model.EnrichmentEnriched,
				PainPoints:       "aging fleet",
			},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.fit(&tt.lead))
		})
	}
}

func TestEngagement(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name string
		lead model.Lead
		want int
	}{
		{"no outreach", model.Lead{}, 0},
		{"single open", model.Lead{EmailsOpened: 1}, 15},
		{"mixed events", model.Lead{EmailsOpened: 2, ContactAttempts: 3, EmailsSent: 4, SMSSent: 1}, 55},
		{"heavy outreach clamps", model.Lead{EmailsOpened: 20}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.engagement(&tt.lead))
		})
	}
}

func TestOpportunity(t *testing.T) {
	s := New(DefaultWeights())

	tests := []struct {
		name string
		lead model.Lead
		want int
	}{
		{"empty lead", model.Lead{}, 0},
		{"one decision maker", model.Lead{DecisionMakers: []model.DecisionMaker{{Name: "Jane"}}}, 15},
		{"tags scale linearly", model.Lead{Tags: []string{"hvac", "chicago", "priority"}}, 15},
		{"pain points", model.Lead{PainPoints: "aging fleet"}, 10},
		{"enriched", model.Lead{EnrichmentStatus: model.EnrichmentEnriched}, 20},
		{
			"many decision makers clamp",
			model.Lead{DecisionMakers: make([]model.DecisionMaker, 10)},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.opportunity(&tt.lead))
		})
	}
}

func TestTotal_RoundedMean(t *testing.T) {
	assert.Equal(t, 50, Total(model.LeadScores{Fit: 50, Engagement: 50, ContactQuality: 50, Opportunity: 50}))
	// 20+0+0+0 = 20/4 = 5
	assert.Equal(t, 5, Total(model.LeadScores{Fit: 20}))
	// 45+15+35+10 = 105/4 = 26.25 rounds down
	assert.Equal(t, 26, Total(model.LeadScores{Fit: 45, Engagement: 15, ContactQuality: 35, Opportunity: 10}))
	// 45+15+35+15 = 110/4 = 27.5 rounds up
	assert.Equal(t, 28, Total(model.LeadScores{Fit: 45, Engagement: 15, ContactQuality: 35, Opportunity: 15}))
}

func TestScore_ProducesConsistentSet(t *testing.T) {
	s := New(DefaultWeights())
	lead := model.Lead{
		BusinessName:     "Acme HVAC",
		Phone:            "555-123-4567",
		OwnerEmail:       "jane@acme.com",
		EmailVerified:    true,
		Website:          "https://acme.com",
		City:             "Springfield",
		State:            "IL",
		EnrichmentStatus: model.EnrichmentEnriched,
		EmailsOpened:     1,
		ContactAttempts:  2,
	}

	scores := s.Score(&lead)

	assert.Equal(t, 80, scores.ContactQuality) // phone 25 + email 35 + website 20
	assert.Equal(t, 80, scores.Fit)            // base 20 + website 20 + location 15 + enriched 25
	assert.Equal(t, 25, scores.Engagement)     // open 15 + 2 attempts at 5
	assert.Equal(t, 20, scores.Opportunity)    // enriched 20
	assert.Equal(t, Total(scores), scores.Total)
	assert.Equal(t, 51, scores.Total) // 205/4 = 51.25
}

func TestScore_ZeroWeightsZeroEverything(t *testing.T) {
	s := New(Weights{})
	lead := model.Lead{
		BusinessName: "Acme",
		Phone:        "555-123-4567",
		OwnerEmail:   "jane@acme.com",
		EmailsOpened: 50,
	}

	scores := s.Score(&lead)
	assert.Equal(t, model.LeadScores{}, scores)
}
