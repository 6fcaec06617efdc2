package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-engine/internal/jobs"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect enrichment job history",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrichment jobs",
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

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		list, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		switch output {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(list)
		case "table":
			formatJobsList(os.Stdout, list)
			return nil
		default:
			return eris.Errorf("unknown output format: %s", output)
		}
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job, including recent per-lead logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		logs, err := st.RecentJobLogs(ctx, args[0], 20)
		if err != nil {
			return eris.Wrap(err, "load job logs")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"job":                 job,
			"percent_complete":    job.PercentComplete(),
			"estimated_remaining": jobs.EstimateRemaining(job),
			"recent_logs":         logs,
		})
	},
}

func init() {
	jobsListCmd.Flags().String("status", "", "filter by job status (queued, processing, completed, failed)")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")
	jobsListCmd.Flags().String("output", "table", "output format: table, json, yaml")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}

func formatJobsList(out io.Writer, list []model.EnrichmentJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tOK\tFAIL\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t--\t----\t-------\t--------")

	for _, j := range list {
		dur := ""
		if j.StartedAt != nil {
			end := time.Now().UTC()
			if j.CompletedAt != nil {
				end = *j.CompletedAt
			}
			dur = end.Sub(*j.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d (%d%%)\t%d\t%d\t%s\t%s\n",
			j.ID,
			j.Status,
			j.ProcessedLeads, j.TotalLeads, j.PercentComplete(),
			j.SuccessfulLeads,
			j.FailedLeads,
			j.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}
