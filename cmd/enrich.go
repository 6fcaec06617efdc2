package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/jobs"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/store"
)

var (
	enrichLeadIDs   []string
	enrichPending   bool
	enrichBatchSize int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run a batch enrichment job",
	Long:  "Submits the given leads (or all pending leads) for enrichment in concurrent chunks. Progress is persisted after every chunk, so a status poll reflects completed chunks.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		enricher, err := initEnricher()
		if err != nil {
			return err
		}

		leadIDs := enrichLeadIDs
		if enrichPending {
			pending, err := st.ListLeads(ctx, store.LeadFilter{
				Status: model.EnrichmentPending,
				Limit:  10000,
			})
			if err != nil {
				return eris.Wrap(err, "list pending leads")
			}
			for _, l := range pending {
				leadIDs = append(leadIDs, l.ID)
			}
		}
		if len(leadIDs) == 0 {
			return eris.New("no leads to enrich (use --leads or --pending)")
		}

		orch := jobs.New(st, enricher, scorer.New(cfg.Scoring.ScorerWeights()), jobs.Options{
			DefaultBatchSize: cfg.Jobs.DefaultBatchSize,
			InterChunkDelay:  cfg.Jobs.InterChunkDelay(),
		})

		jobID, err := orch.Submit(ctx, leadIDs, enrichBatchSize)
		if err != nil {
			return eris.Wrap(err, "submit job")
		}

		fmt.Fprintf(os.Stdout, "%s\n", jobID)

		// The job runs in this process, so the command always waits for a
		// terminal state. Detached submission goes through serve.
		orch.Wait()

		job, err := st.GetJob(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "load job result")
		}

		formatJob(os.Stdout, job)
		if job.Status == model.JobStatusFailed {
			return eris.Errorf("job failed: %s", job.Error)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichLeadIDs, "leads", nil, "lead IDs to enrich")
	enrichCmd.Flags().BoolVar(&enrichPending, "pending", false, "enrich every lead with pending status")
	enrichCmd.Flags().IntVar(&enrichBatchSize, "batch-size", 0, "chunk size (default from config)")
	rootCmd.AddCommand(enrichCmd)
}

// formatJob prints a one-job summary.
func formatJob(out io.Writer, job *model.EnrichmentJob) {
	fmt.Fprintf(out, "Job:        %s\n", job.ID)
	fmt.Fprintf(out, "Status:     %s\n", job.Status)
	fmt.Fprintf(out, "Progress:   %d/%d (%d%%)\n", job.ProcessedLeads, job.TotalLeads, job.PercentComplete())
	fmt.Fprintf(out, "Successful: %d\n", job.SuccessfulLeads)
	fmt.Fprintf(out, "Failed:     %d\n", job.FailedLeads)
	if job.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", job.Error)
	}
	if eta := jobs.EstimateRemaining(job); eta != nil {
		fmt.Fprintf(out, "ETA:        %s\n", *eta)
	}
	if job.StartedAt != nil && job.CompletedAt != nil {
		fmt.Fprintf(out, "Duration:   %s\n", job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond))
	}
}
