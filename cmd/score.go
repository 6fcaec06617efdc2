package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/store"
)

var (
	scoreStatus string
	scoreLimit  int
	scoreTop    int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute scores for stored leads",
	Long:  "Recomputes fit, engagement, contact quality, and opportunity scores for every matching lead and persists the results. The four sub-scores and the total are always written together.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status: model.EnrichmentStatus(scoreStatus),
			Limit:  scoreLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		sc := scorer.New(cfg.Scoring.ScorerWeights())
		for i := range leads {
			lead := &leads[i]
			lead.Scores = sc.Score(lead)
			lead.UpdatedAt = time.Now().UTC()
			if err := st.UpdateLead(ctx, lead); err != nil {
				return eris.Wrapf(err, "update lead %s", lead.ID)
			}
		}

		zap.L().Info("rescore complete", zap.Int("leads", len(leads)))

		if scoreTop > 0 {
			formatTopLeads(os.Stdout, leads, scoreTop)
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreStatus, "status", "", "only rescore leads with this enrichment status")
	scoreCmd.Flags().IntVar(&scoreLimit, "limit", 10000, "max leads to rescore")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 10, "show the N highest-scoring leads after rescoring (0 to disable)")
	rootCmd.AddCommand(scoreCmd)
}

func formatTopLeads(out io.Writer, leads []model.Lead, n int) {
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].Scores.Total > leads[j].Scores.Total
	})
	if n > len(leads) {
		n = len(leads)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBUSINESS\tFIT\tENGAGE\tCONTACT\tOPP\tTOTAL")
	_, _ = fmt.Fprintln(w, "--\t--------\t---\t------\t-------\t---\t-----")
	for _, l := range leads[:n] {
		name := l.BusinessName
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			shortID(l.ID), name,
			l.Scores.Fit, l.Scores.Engagement, l.Scores.ContactQuality,
			l.Scores.Opportunity, l.Scores.Total,
		)
	}
	_ = w.Flush()
}
