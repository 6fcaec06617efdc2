// Package enrich defines the per-lead enrichment collaborator consumed by
// the batch orchestrator, plus the default HTTP-backed implementation.
package enrich

import (
	"context"

	"github.com/sells-group/lead-engine/internal/model"
)

// Result is the outcome of enriching a single lead.
type Result struct {
	// Lead is the enriched snapshot to persist, when the pipeline
	// produced one.
	Lead *model.Lead `json:"lead,omitempty"`

	// Sources lists the enrichment sources consulted on this pass.
	Sources []string `json:"sources,omitempty"`

	// Message is a short human-readable summary for the job log.
	Message string `json:"message,omitempty"`
}

// Enricher augments one lead with data from external sources. An error
// return is a per-lead operational failure: the orchestrator records it
// and moves on without retrying.
type Enricher interface {
	Enrich(ctx context.Context, leadID string) (*Result, error)
}

// Func adapts a plain function to the Enricher interface.
type Func func(ctx context.Context, leadID string) (*Result, error)

// Enrich implements Enricher.
func (f Func) Enrich(ctx context.Context, leadID string) (*Result, error) {
	return f(ctx, leadID)
}
