// Package dedupe groups the lead population into duplicate clusters and
// collapses clusters into a single surviving record.
package dedupe

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/similarity"
)

// MatchSource supplies the similarity projection of the current lead
// population in stable iteration order.
type MatchSource interface {
	ListMatchFields(ctx context.Context) ([]model.MatchFields, error)
}

// Detector finds duplicate clusters over a point-in-time snapshot of the
// lead population. It holds no state between scans.
type Detector struct {
	source MatchSource
	engine *similarity.Engine
	leads  LeadReader
}

// LeadReader fetches full leads for primary selection.
type LeadReader interface {
	GetLeads(ctx context.Context, ids []string) ([]model.Lead, error)
}

// NewDetector creates a duplicate detector.
func NewDetector(source MatchSource, leads LeadReader, engine *similarity.Engine) *Detector {
	return &Detector{source: source, engine: engine, leads: leads}
}

// FindDuplicates scans the whole population pairwise and returns clusters
// of leads whose similarity to a cluster seed meets the threshold.
//
// The scan is O(n²) with early exclusion: once a lead joins a cluster it is
// never compared again, so no lead appears in two clusters and comparison
// order follows fetch order, making results deterministic for a fixed
// snapshot. Quadratic cost is acceptable at the intended scale (tens of
// thousands of leads).
func (d *Detector) FindDuplicates(ctx context.Context, threshold float64) ([]model.DuplicateCluster, error) {
	if threshold <= 0 || threshold > 100 {
		return nil, eris.Errorf("dedupe: threshold %.1f out of range (0, 100]", threshold)
	}

	fields, err := d.source.ListMatchFields(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "dedupe: list match fields")
	}

	log := zap.L().With(zap.Float64("threshold", threshold))
	log.Info("scanning for duplicates", zap.Int("leads", len(fields)))

	processed := make(map[string]bool, len(fields))
	var clusters []model.DuplicateCluster

	for i, a := range fields {
		if processed[a.ID] {
			continue
		}

		members := []string{a.ID}
		maxSim := 0.0

		for _, b := range fields[i+1:] {
			if processed[b.ID] {
				continue
			}
			sim := d.engine.Score(a, b)
			if sim >= threshold {
				members = append(members, b.ID)
				processed[b.ID] = true
				if sim > maxSim {
					maxSim = sim
				}
			}
		}

		processed[a.ID] = true

		if len(members) < 2 {
			continue
		}

		primary, err := d.suggestPrimary(ctx, members)
		if err != nil {
			return nil, err
		}

		clusters = append(clusters, model.DuplicateCluster{
			ID:               len(clusters) + 1,
			LeadIDs:          members,
			MaxSimilarity:    maxSim,
			SuggestedPrimary: primary,
		})
	}

	log.Info("duplicate scan complete", zap.Int("clusters", len(clusters)))
	return clusters, nil
}

// suggestPrimary loads the cluster members and applies the completeness
// heuristic to pick a suggested survivor.
func (d *Detector) suggestPrimary(ctx context.Context, ids []string) (string, error) {
	leads, err := d.leads.GetLeads(ctx, ids)
	if err != nil {
		return "", eris.Wrap(err, "dedupe: load cluster members")
	}
	if len(leads) == 0 {
		return ids[0], nil
	}

	// Keep member order so first-max-wins tie-breaking is deterministic.
	byID := make(map[string]model.Lead, len(leads))
	for _, l := range leads {
		byID[l.ID] = l
	}
	ordered := make([]model.Lead, 0, len(leads))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}

	return SelectPrimary(ordered).ID, nil
}
