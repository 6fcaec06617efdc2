package model

import "time"

// EnrichmentStatus tracks where a lead sits in the enrichment lifecycle.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// Lead is a business-prospect record. BusinessName is required and never
// empty after normalization; everything else is optional, with the empty
// string meaning "absent" for matching purposes.
type Lead struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Website      string `json:"website,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`
	OwnerEmail   string `json:"owner_email,omitempty"`

	// EmailVerified records whether the owner email passed verification.
	EmailVerified bool `json:"email_verified,omitempty"`

	// UniqueKey is a synthesized key (name + first contact field) used as a
	// uniqueness hint during import.
	UniqueKey string `json:"unique_key,omitempty"`

	EnrichmentStatus  EnrichmentStatus `json:"enrichment_status"`
	EnrichmentSources []string         `json:"enrichment_sources,omitempty"`
	Tags              []string         `json:"tags,omitempty"`
	DecisionMakers    []DecisionMaker  `json:"decision_makers,omitempty"`
	PainPoints        string           `json:"pain_points,omitempty"`

	Scores LeadScores `json:"scores"`

	// Outreach counters are monotonically non-decreasing and merged by
	// summation across duplicate records.
	ContactAttempts int `json:"contact_attempts"`
	EmailsSent      int `json:"emails_sent"`
	EmailsOpened    int `json:"emails_opened"`
	SMSSent         int `json:"sms_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DecisionMaker is a named contact at the business.
type DecisionMaker struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// LeadScores holds the four sub-scores and their derived total. The four
// are always recomputed together; Total is never stored out of sync.
type LeadScores struct {
	Fit            int `json:"fit"`
	Engagement     int `json:"engagement"`
	ContactQuality int `json:"contact_quality"`
	Opportunity    int `json:"opportunity"`
	Total          int `json:"total"`
}

// MatchFields is the projection of a Lead used for similarity comparison.
// Duplicate scans fetch only these columns, never full records.
type MatchFields struct {
	ID           string `json:"id"`
	BusinessName string `json:"business_name"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Website      string `json:"website,omitempty"`
	OwnerEmail   string `json:"owner_email,omitempty"`
}

// Match returns the lead's similarity projection.
func (l *Lead) Match() MatchFields {
	return MatchFields{
		ID:           l.ID,
		BusinessName: l.BusinessName,
		Address:      l.Address,
		Phone:        l.Phone,
		Website:      l.Website,
		OwnerEmail:   l.OwnerEmail,
	}
}

// DuplicateCluster is an ephemeral view over the lead population: a set of
// leads whose pairwise similarity to at least one member met the scan
// threshold. Never persisted; recomputed on every scan.
type DuplicateCluster struct {
	ID               int      `json:"id"`
	LeadIDs          []string `json:"lead_ids"`
	MaxSimilarity    float64  `json:"max_similarity"`
	SuggestedPrimary string   `json:"suggested_primary"`
}
