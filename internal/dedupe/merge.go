package dedupe

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

// SelectPrimary picks the cluster member that should survive a merge using
// a completeness/quality heuristic. Ties go to the earliest member in
// iteration order.
func SelectPrimary(leads []model.Lead) model.Lead {
	best := leads[0]
	bestScore := primaryScore(best)

	for _, l := range leads[1:] {
		if s := primaryScore(l); s > bestScore {
			best = l
			bestScore = s
		}
	}
	return best
}

// primaryScore accumulates completeness points for a lead.
func primaryScore(l model.Lead) float64 {
	var pts float64
	if l.OwnerName != "" {
		pts += 20
	}
	if l.OwnerEmail != "" {
		if l.EmailVerified {
			pts += 30
		} else {
			pts += 15
		}
	}
	if l.Phone != "" {
		pts += 20
	}
	if l.Website != "" {
		pts += 10
	}
	pts += 0.2 * float64(l.Scores.Total)
	if l.EnrichmentStatus == model.EnrichmentEnriched {
		pts += 25
	}
	return pts
}

// Merge folds the other records into the primary and returns the result.
// The policy is total and deterministic, so merges never conflict:
//
//   - scalar fields keep the primary's value; an empty scalar takes the
//     first non-empty value in iteration order of others
//   - decision makers concatenate; tags concatenate and deduplicate,
//     preserving first occurrence
//   - outreach counters sum across all records
//   - if any other record's total score beats the primary's, that record's
//     full score quadruple is adopted as a unit, never mixed element-wise
//
// Merge performs no I/O; use ApplyMerge to persist the result.
func Merge(primary model.Lead, others []model.Lead) model.Lead {
	merged := primary

	// Copy list fields so appends never write into the caller's slices.
	merged.DecisionMakers = append([]model.DecisionMaker(nil), primary.DecisionMakers...)
	merged.Tags = append([]string(nil), primary.Tags...)
	merged.EnrichmentSources = append([]string(nil), primary.EnrichmentSources...)

	for _, o := range others {
		if merged.BusinessName == "" {
			merged.BusinessName = o.BusinessName
		}
		if merged.Address == "" {
			merged.Address = o.Address
		}
		if merged.City == "" {
			merged.City = o.City
		}
		if merged.State == "" {
			merged.State = o.State
		}
		if merged.Phone == "" {
			merged.Phone = o.Phone
		}
		if merged.Website == "" {
			merged.Website = o.Website
		}
		if merged.OwnerName == "" {
			merged.OwnerName = o.OwnerName
		}
		if merged.OwnerEmail == "" {
			merged.OwnerEmail = o.OwnerEmail
			merged.EmailVerified = o.EmailVerified
		}
		if merged.PainPoints == "" {
			merged.PainPoints = o.PainPoints
		}
		if merged.UniqueKey == "" {
			merged.UniqueKey = o.UniqueKey
		}

		merged.DecisionMakers = append(merged.DecisionMakers, o.DecisionMakers...)
		merged.Tags = append(merged.Tags, o.Tags...)
		merged.EnrichmentSources = append(merged.EnrichmentSources, o.EnrichmentSources...)

		merged.ContactAttempts += o.ContactAttempts
		merged.EmailsSent += o.EmailsSent
		merged.EmailsOpened += o.EmailsOpened
		merged.SMSSent += o.SMSSent

		if o.Scores.Total > merged.Scores.Total {
			merged.Scores = o.Scores
		}

		if o.EnrichmentStatus == model.EnrichmentEnriched {
			merged.EnrichmentStatus = model.EnrichmentEnriched
		}
	}

	merged.Tags = dedupStrings(merged.Tags)
	merged.EnrichmentSources = dedupStrings(merged.EnrichmentSources)
	merged.UpdatedAt = time.Now().UTC()

	return merged
}

// dedupStrings removes duplicates preserving first occurrence.
func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// MergeStore is the persistence surface ApplyMerge needs.
type MergeStore interface {
	GetLeads(ctx context.Context, ids []string) ([]model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	DeleteLeads(ctx context.Context, ids []string) error
}

// ApplyMerge merges the given cluster members and persists the result:
// the merged record is written under the primary's ID and the absorbed
// members are deleted. When primaryID is empty the completeness heuristic
// chooses the survivor.
func ApplyMerge(ctx context.Context, store MergeStore, leadIDs []string, primaryID string) (*model.Lead, error) {
	if len(leadIDs) < 2 {
		return nil, eris.New("dedupe: merge requires at least two leads")
	}

	leads, err := store.GetLeads(ctx, leadIDs)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: load leads for merge")
	}
	if len(leads) != len(leadIDs) {
		return nil, eris.Errorf("dedupe: merge resolved %d of %d leads", len(leads), len(leadIDs))
	}

	var primary model.Lead
	var others []model.Lead
	if primaryID != "" {
		found := false
		for _, l := range leads {
			if l.ID == primaryID {
				primary = l
				found = true
			} else {
				others = append(others, l)
			}
		}
		if !found {
			return nil, eris.Errorf("dedupe: primary %s not in cluster", primaryID)
		}
	} else {
		primary = SelectPrimary(leads)
		for _, l := range leads {
			if l.ID != primary.ID {
				others = append(others, l)
			}
		}
	}

	merged := Merge(primary, others)
	if err := store.UpdateLead(ctx, &merged); err != nil {
		return nil, eris.Wrap(err, "dedupe: persist merged lead")
	}

	absorbed := make([]string, 0, len(others))
	for _, o := range others {
		absorbed = append(absorbed, o.ID)
	}
	if err := store.DeleteLeads(ctx, absorbed); err != nil {
		return nil, eris.Wrap(err, "dedupe: delete absorbed leads")
	}

	zap.L().Info("merged duplicate cluster",
		zap.String("primary", merged.ID),
		zap.Int("absorbed", len(absorbed)),
	)
	return &merged, nil
}
