// Package scorer computes composite lead-quality scores.
package scorer

import (
	"math"

	"github.com/sells-group/lead-engine/internal/model"
)

// Weights holds the tunable constants behind each sub-score. The exact
// point values are business policy; the engineering contract is that the
// four sub-scores are recomputed together, each clamped to [0, 100], and
// the total is always their rounded mean.
type Weights struct {
	// Contact quality
	ContactPhone         int `yaml:"contact_phone" mapstructure:"contact_phone"`
	ContactEmail         int `yaml:"contact_email" mapstructure:"contact_email"`
	ContactEmailVerified int `yaml:"contact_email_verified" mapstructure:"contact_email_verified"`
	ContactOwnerName     int `yaml:"contact_owner_name" mapstructure:"contact_owner_name"`
	ContactWebsite       int `yaml:"contact_website" mapstructure:"contact_website"`
	ContactAddress       int `yaml:"contact_address" mapstructure:"contact_address"`

	// Fit
	FitBase       int `yaml:"fit_base" mapstructure:"fit_base"`
	FitWebsite    int `yaml:"fit_website" mapstructure:"fit_website"`
	FitLocation   int `yaml:"fit_location" mapstructure:"fit_location"`
	FitEnriched   int `yaml:"fit_enriched" mapstructure:"fit_enriched"`
	FitPainPoints int `yaml:"fit_pain_points" mapstructure:"fit_pain_points"`

	// Engagement (per outreach event)
	EngageEmailOpened    int `yaml:"engage_email_opened" mapstructure:"engage_email_opened"`
	EngageContactAttempt int `yaml:"engage_contact_attempt" mapstructure:"engage_contact_attempt"`
	EngageEmailSent      int `yaml:"engage_email_sent" mapstructure:"engage_email_sent"`
	EngageSMSSent        int `yaml:"engage_sms_sent" mapstructure:"engage_sms_sent"`

	// Opportunity
	OppDecisionMaker int `yaml:"opp_decision_maker" mapstructure:"opp_decision_maker"`
	OppPainPoints    int `yaml:"opp_pain_points" mapstructure:"opp_pain_points"`
	OppEnriched      int `yaml:"opp_enriched" mapstructure:"opp_enriched"`
	OppTag           int `yaml:"opp_tag" mapstructure:"opp_tag"`
}

// DefaultWeights returns the production scoring constants.
func DefaultWeights() Weights {
	return Weights{
		ContactPhone:         25,
		ContactEmail:         25,
		ContactEmailVerified: 10,
		ContactOwnerName:     20,
		ContactWebsite:       20,
		ContactAddress:       10,

		FitBase:       20,
		FitWebsite:    20,
		FitLocation:   15,
		FitEnriched:   25,
		FitPainPoints: 20,

		EngageEmailOpened:    15,
		EngageContactAttempt: 5,
		EngageEmailSent:      2,
		EngageSMSSent:        2,

		OppDecisionMaker: 15,
		OppPainPoints:    10,
		OppEnriched:      20,
		OppTag:           5,
	}
}

// Scorer computes lead scores from a weight configuration.
type Scorer struct {
	weights Weights
}

// New creates a scorer with the given weights.
func New(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score computes the full score set for a lead. Sub-scores are always
// produced as a unit so the stored total can never drift from its inputs.
func (s *Scorer) Score(lead *model.Lead) model.LeadScores {
	scores := model.LeadScores{
		Fit:            s.fit(lead),
		Engagement:     s.engagement(lead),
		ContactQuality: s.contactQuality(lead),
		Opportunity:    s.opportunity(lead),
	}
	scores.Total = Total(scores)
	return scores
}

// Total derives the composite score as the rounded mean of the four
// sub-scores.
func Total(s model.LeadScores) int {
	return int(math.Round(float64(s.Fit+s.Engagement+s.ContactQuality+s.Opportunity) / 4))
}

func (s *Scorer) contactQuality(lead *model.Lead) int {
	pts := 0
	if lead.Phone != "" {
		pts += s.weights.ContactPhone
	}
	if lead.OwnerEmail != "" {
		pts += s.weights.ContactEmail
		if lead.EmailVerified {
			pts += s.weights.ContactEmailVerified
		}
	}
	if lead.OwnerName != "" {
		pts += s.weights.ContactOwnerName
	}
	if lead.Website != "" {
		pts += s.weights.ContactWebsite
	}
	if lead.Address != "" {
		pts += s.weights.ContactAddress
	}
	return clamp(pts)
}

func (s *Scorer) fit(lead *model.Lead) int {
	pts := s.weights.FitBase
	if lead.Website != "" {
		pts += s.weights.FitWebsite
	}
	if lead.City != "" && lead.State != "" {
		pts += s.weights.FitLocation
	}
	if lead.EnrichmentStatus == model.EnrichmentEnriched {
		pts += s.weights.FitEnriched
	}
	if lead.PainPoints != "" {
		pts += s.weights.FitPainPoints
	}
	return clamp(pts)
}

func (s *Scorer) engagement(lead *model.Lead) int {
	pts := lead.EmailsOpened*s.weights.EngageEmailOpened +
		lead.ContactAttempts*s.weights.EngageContactAttempt +
		lead.EmailsSent*s.weights.EngageEmailSent +
		lead.SMSSent*s.weights.EngageSMSSent
	return clamp(pts)
}

func (s *Scorer) opportunity(lead *model.Lead) int {
	pts := len(lead.DecisionMakers)*s.weights.OppDecisionMaker +
		len(lead.Tags)*s.weights.OppTag
	if lead.PainPoints != "" {
		pts += s.weights.OppPainPoints
	}
	if lead.EnrichmentStatus == model.EnrichmentEnriched {
		pts += s.weights.OppEnriched
	}
	return clamp(pts)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
