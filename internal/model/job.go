package model

import "time"

// JobStatus represents the current state of a bulk enrichment job.
// The state machine is queued -> processing -> (completed | failed);
// there is no transition out of a terminal state.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// EnrichmentJob represents one bulk enrichment run over a fixed lead-ID
// list. Counters are owned exclusively by the orchestrator; its chunk
// workers synchronize increments so no update is lost.
type EnrichmentJob struct {
	ID              string     `json:"id"`
	LeadIDs         []string   `json:"lead_ids"`
	BatchSize       int        `json:"batch_size"`
	Status          JobStatus  `json:"status"`
	TotalLeads      int        `json:"total_leads"`
	ProcessedLeads  int        `json:"processed_leads"`
	SuccessfulLeads int        `json:"successful_leads"`
	FailedLeads     int        `json:"failed_leads"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// PercentComplete returns processed/total as a rounded percentage.
func (j *EnrichmentJob) PercentComplete() int {
	if j.TotalLeads == 0 {
		return 0
	}
	return int(float64(j.ProcessedLeads)/float64(j.TotalLeads)*100 + 0.5)
}

// LogOutcome is the per-lead result recorded in the job log.
type LogOutcome string

const (
	LogOutcomeSuccess LogOutcome = "success"
	LogOutcomeFailed  LogOutcome = "failed"
)

// JobLogEntry is one append-only record per lead processed within a job.
// Entries are never updated or deleted by the orchestrator.
type JobLogEntry struct {
	ID        string     `json:"id"`
	JobID     string     `json:"job_id"`
	LeadID    string     `json:"lead_id"`
	Outcome   LogOutcome `json:"outcome"`
	Message   string     `json:"message,omitempty"`
	Score     *int       `json:"score,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
