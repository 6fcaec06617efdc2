// Package store persists leads, enrichment jobs, and job logs behind a
// driver-agnostic interface with Postgres and SQLite backends.
package store

import (
	"context"

	"github.com/sells-group/lead-engine/internal/model"
)

// LeadFilter narrows ListLeads results.
type LeadFilter struct {
	Status   model.EnrichmentStatus
	MinScore int
	Limit    int
	Offset   int
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Status model.JobStatus
	Limit  int
}

// Store defines persistence operations for the lead data model. All
// operations are atomic at the single-record level.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	BulkInsertLeads(ctx context.Context, leads []model.Lead) (int64, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	GetLeads(ctx context.Context, ids []string) ([]model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	DeleteLeads(ctx context.Context, ids []string) error

	// ListMatchFields returns only the columns the similarity engine
	// needs, for the full population, in stable insertion order.
	ListMatchFields(ctx context.Context) ([]model.MatchFields, error)

	// MatchesExisting reports whether any lead matches by name substring
	// (case-insensitive), exact phone, or exact owner email.
	MatchesExisting(ctx context.Context, name, phone, email string) (bool, error)

	// Jobs
	CreateJob(ctx context.Context, job *model.EnrichmentJob) error
	UpdateJob(ctx context.Context, job *model.EnrichmentJob) error
	GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error)

	// Job logs (append-only)
	AppendJobLog(ctx context.Context, entry *model.JobLogEntry) error
	RecentJobLogs(ctx context.Context, jobID string, limit int) ([]model.JobLogEntry, error)
}
