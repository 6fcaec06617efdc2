package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/dedupe"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/similarity"
)

var (
	dedupeThreshold float64
	dedupeMerge     bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Scan the lead population for duplicate clusters",
	Long:  "Compares every lead pair by weighted similarity (name, phone, email, address, website) and groups matches above the threshold into clusters. With --merge, each cluster is collapsed into its most complete record.",
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

		detector := dedupe.NewDetector(st, st, similarity.NewEngine(cfg.Similarity.EngineWeights()))

		clusters, err := detector.FindDuplicates(ctx, dedupeThreshold)
		if err != nil {
			return eris.Wrap(err, "dedupe scan")
		}

		if len(clusters) == 0 {
			fmt.Fprintln(os.Stderr, "No duplicate clusters found.")
			return nil
		}

		formatClusters(os.Stdout, clusters)

		if !dedupeMerge {
			return nil
		}

		for _, cluster := range clusters {
			merged, err := dedupe.ApplyMerge(ctx, st, cluster.LeadIDs, cluster.SuggestedPrimary)
			if err != nil {
				return eris.Wrapf(err, "merge cluster %d", cluster.ID)
			}
			zap.L().Info("cluster merged",
				zap.Int("cluster", cluster.ID),
				zap.String("primary", merged.ID),
				zap.Int("absorbed", len(cluster.LeadIDs)-1),
			)
		}

		fmt.Fprintf(os.Stderr, "Merged %d clusters.\n", len(clusters))
		return nil
	},
}

func init() {
	dedupeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 75, "similarity threshold in (0, 100]")
	dedupeCmd.Flags().BoolVar(&dedupeMerge, "merge", false, "merge each cluster into its suggested primary")
	rootCmd.AddCommand(dedupeCmd)
}

func formatClusters(out io.Writer, clusters []model.DuplicateCluster) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLUSTER\tLEADS\tMAX_SIM\tSUGGESTED_PRIMARY")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-------\t-----------------")
	for _, c := range clusters {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.1f\t%s\n",
			c.ID,
			strings.Join(shortIDs(c.LeadIDs), ","),
			c.MaxSimilarity,
			shortID(c.SuggestedPrimary),
		)
	}
	_ = w.Flush()
}

func shortIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = shortID(id)
	}
	return out
}

// shortID returns the first 8 characters of a UUID for compact display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
