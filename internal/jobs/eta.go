package jobs

import (
	"fmt"
	"time"

	"github.com/sells-group/lead-engine/internal/model"
)

// EstimateRemaining returns a human-readable estimate of time left for a
// job, derived from observed per-lead throughput:
//
//	remaining = (total - processed) * (elapsed / processed)
//
// It is only defined while the job is processing and has made progress;
// otherwise it returns nil, never dividing by zero.
func EstimateRemaining(job *model.EnrichmentJob) *string {
	return estimateRemainingAt(job, time.Now().UTC())
}

// estimateRemainingAt is EstimateRemaining with an injectable clock.
func estimateRemainingAt(job *model.EnrichmentJob, now time.Time) *string {
	if job == nil || job.Status != model.JobStatusProcessing {
		return nil
	}
	if job.ProcessedLeads <= 0 || job.StartedAt == nil {
		return nil
	}

	elapsed := now.Sub(*job.StartedAt)
	if elapsed <= 0 {
		return nil
	}

	perLead := elapsed / time.Duration(job.ProcessedLeads)
	remaining := time.Duration(job.TotalLeads-job.ProcessedLeads) * perLead

	s := formatETA(remaining)
	return &s
}

// formatETA renders a duration as "less than 1 minute", "N minute(s)",
// or "Hh Mm".
func formatETA(d time.Duration) string {
	if d < time.Minute {
		return "less than 1 minute"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}
