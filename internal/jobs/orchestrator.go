// Package jobs owns the lifecycle of bulk enrichment jobs: chunked
// concurrent fan-out over a lead-ID list with progress tracking, an
// append-only per-lead log, and ETA estimation.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-engine/internal/enrich"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/scorer"
)

// Store is the persistence surface the orchestrator needs. All operations
// are atomic at the single-record level; no multi-record transactions are
// required.
type Store interface {
	CreateJob(ctx context.Context, job *model.EnrichmentJob) error
	UpdateJob(ctx context.Context, job *model.EnrichmentJob) error
	GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error)
	AppendJobLog(ctx context.Context, entry *model.JobLogEntry) error

	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
}

// Options tunes orchestrator behavior.
type Options struct {
	// DefaultBatchSize is used when a submission passes batchSize <= 0.
	DefaultBatchSize int

	// InterChunkDelay is the pause between chunks, respecting upstream
	// rate limits. Default 2s.
	InterChunkDelay time.Duration
}

// Orchestrator runs bulk enrichment jobs. Each job partitions its lead-ID
// list into consecutive chunks of batchSize; leads within a chunk run
// concurrently, chunks run strictly one after another (a full chunk
// barrier), capping peak concurrent enrichment calls at batchSize.
type Orchestrator struct {
	store    Store
	enricher enrich.Enricher
	scorer   *scorer.Scorer
	opts     Options

	mu     sync.Mutex
	active map[string]*activeJob
	wg     sync.WaitGroup
}

// activeJob tracks in-flight state for one running job.
type activeJob struct {
	mu        sync.Mutex
	job       *model.EnrichmentJob
	cancelled bool
}

// New creates an orchestrator.
func New(store Store, enricher enrich.Enricher, sc *scorer.Scorer, opts Options) *Orchestrator {
	if opts.DefaultBatchSize <= 0 {
		opts.DefaultBatchSize = 10
	}
	if opts.InterChunkDelay <= 0 {
		opts.InterChunkDelay = 2 * time.Second
	}
	return &Orchestrator{
		store:    store,
		enricher: enricher,
		scorer:   sc,
		opts:     opts,
		active:   make(map[string]*activeJob),
	}
}

// Submit validates the request, persists the job in queued state, and
// starts asynchronous execution. It returns the job ID immediately so the
// caller can poll; it never blocks on job completion.
func (o *Orchestrator) Submit(ctx context.Context, leadIDs []string, batchSize int) (string, error) {
	if len(leadIDs) == 0 {
		return "", eris.New("jobs: lead ID list is empty")
	}
	if batchSize <= 0 {
		batchSize = o.opts.DefaultBatchSize
	}

	job := &model.EnrichmentJob{
		ID:         newJobID(),
		LeadIDs:    append([]string(nil), leadIDs...),
		BatchSize:  batchSize,
		Status:     model.JobStatusQueued,
		TotalLeads: len(leadIDs),
		CreatedAt:  time.Now().UTC(),
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		return "", eris.Wrap(err, "jobs: create job")
	}

	aj := &activeJob{job: job}
	o.mu.Lock()
	o.active[job.ID] = aj
	o.mu.Unlock()

	// The job must outlive the submitting request.
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, aj)
	}()

	zap.L().Info("job submitted",
		zap.String("job_id", job.ID),
		zap.Int("leads", len(leadIDs)),
		zap.Int("batch_size", batchSize),
	)
	return job.ID, nil
}

// Cancel requests cooperative cancellation of a running job. The flag is
// checked between chunks; in-flight leads of the current chunk complete
// and are counted before the job terminates.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	aj, ok := o.active[jobID]
	o.mu.Unlock()
	if !ok {
		return eris.Errorf("jobs: job %s is not running", jobID)
	}

	aj.mu.Lock()
	aj.cancelled = true
	aj.mu.Unlock()
	return nil
}

// Wait blocks until all running jobs have finished. Used for graceful
// shutdown and in tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run drives one job to a terminal state. Per-lead failures are counted
// and never abort the job; anything escaping the per-lead boundary (a
// repository outage, a panic) fails the job with accumulated counters
// preserved.
func (o *Orchestrator) run(ctx context.Context, aj *activeJob) {
	job := aj.job
	log := zap.L().With(zap.String("job_id", job.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r))
			o.finish(ctx, aj, model.JobStatusFailed, fmt.Sprintf("panic: %v", r))
		}
		o.mu.Lock()
		delete(o.active, job.ID)
		o.mu.Unlock()
	}()

	now := time.Now().UTC()
	aj.mu.Lock()
	job.Status = model.JobStatusProcessing
	job.StartedAt = &now
	aj.mu.Unlock()

	if err := o.flush(ctx, aj); err != nil {
		log.Error("job start failed", zap.Error(err))
		o.finish(ctx, aj, model.JobStatusFailed, err.Error())
		return
	}

	chunks := Chunk(job.LeadIDs, job.BatchSize)
	log.Info("job processing", zap.Int("chunks", len(chunks)))

	for i, chunk := range chunks {
		if aj.isCancelled() {
			log.Info("job cancelled", zap.Int("processed", job.ProcessedLeads))
			o.finish(ctx, aj, model.JobStatusFailed, "cancelled")
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, leadID := range chunk {
			g.Go(func() error {
				return o.processLead(gctx, aj, leadID)
			})
		}
		if err := g.Wait(); err != nil {
			log.Error("job failed", zap.Error(err))
			o.finish(ctx, aj, model.JobStatusFailed, err.Error())
			return
		}

		if err := o.flush(ctx, aj); err != nil {
			log.Error("job progress flush failed", zap.Error(err))
			o.finish(ctx, aj, model.JobStatusFailed, err.Error())
			return
		}

		if i < len(chunks)-1 {
			select {
			case <-time.After(o.opts.InterChunkDelay):
			case <-ctx.Done():
				o.finish(ctx, aj, model.JobStatusFailed, ctx.Err().Error())
				return
			}
		}
	}

	o.finish(ctx, aj, model.JobStatusCompleted, "")
	log.Info("job complete",
		zap.Int("processed", job.ProcessedLeads),
		zap.Int("successful", job.SuccessfulLeads),
		zap.Int("failed", job.FailedLeads),
	)
}

// processLead enriches one lead, appends exactly one log entry, and
// increments exactly one of the success/fail counters plus the processed
// counter. Only repository errors propagate; enrichment failures are
// recorded and absorbed.
func (o *Orchestrator) processLead(ctx context.Context, aj *activeJob, leadID string) error {
	entry := &model.JobLogEntry{
		ID:        uuid.New().String(),
		JobID:     aj.job.ID,
		LeadID:    leadID,
		CreatedAt: time.Now().UTC(),
	}

	result, err := o.enricher.Enrich(ctx, leadID)
	if err != nil {
		entry.Outcome = model.LogOutcomeFailed
		entry.Error = err.Error()
		entry.Message = "enrichment failed"
		o.markLeadFailed(ctx, leadID)
	} else {
		total, persistErr := o.persistResult(ctx, leadID, result)
		if persistErr != nil {
			return persistErr
		}
		entry.Outcome = model.LogOutcomeSuccess
		entry.Message = result.Message
		if entry.Message == "" {
			entry.Message = "enriched"
		}
		entry.Score = &total
	}

	if logErr := o.store.AppendJobLog(ctx, entry); logErr != nil {
		return eris.Wrap(logErr, "jobs: append job log")
	}

	aj.mu.Lock()
	aj.job.ProcessedLeads++
	if entry.Outcome == model.LogOutcomeSuccess {
		aj.job.SuccessfulLeads++
	} else {
		aj.job.FailedLeads++
	}
	aj.mu.Unlock()

	return nil
}

// persistResult stores the enriched snapshot and recomputes its scores,
// returning the new total score.
func (o *Orchestrator) persistResult(ctx context.Context, leadID string, result *enrich.Result) (int, error) {
	lead := result.Lead
	if lead == nil {
		existing, err := o.store.GetLead(ctx, leadID)
		if err != nil {
			return 0, eris.Wrapf(err, "jobs: load lead %s", leadID)
		}
		lead = existing
	}

	lead.EnrichmentStatus = model.EnrichmentEnriched
	lead.EnrichmentSources = appendUnique(lead.EnrichmentSources, result.Sources)
	lead.Scores = o.scorer.Score(lead)
	lead.UpdatedAt = time.Now().UTC()

	if err := o.store.UpdateLead(ctx, lead); err != nil {
		return 0, eris.Wrapf(err, "jobs: update lead %s", leadID)
	}
	return lead.Scores.Total, nil
}

// markLeadFailed flags a lead whose enrichment failed. Best effort: a
// store error here must not escalate a per-lead failure into a job
// failure.
func (o *Orchestrator) markLeadFailed(ctx context.Context, leadID string) {
	lead, err := o.store.GetLead(ctx, leadID)
	if err != nil {
		zap.L().Warn("load failed lead", zap.String("lead_id", leadID), zap.Error(err))
		return
	}
	lead.EnrichmentStatus = model.EnrichmentFailed
	lead.UpdatedAt = time.Now().UTC()
	if err := o.store.UpdateLead(ctx, lead); err != nil {
		zap.L().Warn("update failed lead", zap.String("lead_id", leadID), zap.Error(err))
	}
}

// flush persists the job's current counters and status.
func (o *Orchestrator) flush(ctx context.Context, aj *activeJob) error {
	aj.mu.Lock()
	snapshot := *aj.job
	aj.mu.Unlock()

	if err := o.store.UpdateJob(ctx, &snapshot); err != nil {
		return eris.Wrap(err, "jobs: update job")
	}
	return nil
}

// finish moves the job into a terminal state, preserving whatever
// counters accumulated.
func (o *Orchestrator) finish(ctx context.Context, aj *activeJob, status model.JobStatus, errMsg string) {
	now := time.Now().UTC()

	aj.mu.Lock()
	if aj.job.Status.Terminal() {
		aj.mu.Unlock()
		return
	}
	aj.job.Status = status
	aj.job.Error = errMsg
	aj.job.CompletedAt = &now
	aj.mu.Unlock()

	if err := o.flush(ctx, aj); err != nil {
		zap.L().Error("persist terminal job state",
			zap.String("job_id", aj.job.ID),
			zap.Error(err),
		)
	}
}

func (aj *activeJob) isCancelled() bool {
	aj.mu.Lock()
	defer aj.mu.Unlock()
	return aj.cancelled
}

// Chunk partitions ids into consecutive chunks of size n.
func Chunk(ids []string, n int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += n {
		end := start + n
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// newJobID returns a time-prefixed, collision-resistant job identifier
// that sorts naturally by submission time.
func newJobID() string {
	return fmt.Sprintf("job_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

func appendUnique(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	out := append([]string(nil), existing...)
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
