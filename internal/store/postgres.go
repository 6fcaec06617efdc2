package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/db"
	"github.com/sells-group/lead-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations (the orchestrator hits
// these once per lead).
var preparedStatements = map[string]string{
	"get_lead":            getLeadSQL,
	"update_job_progress": updateJobSQL,
	"append_job_log":      appendJobLogSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                 TEXT PRIMARY KEY,
	business_name      TEXT NOT NULL,
	address            TEXT NOT NULL DEFAULT '',
	city               TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT '',
	phone              TEXT NOT NULL DEFAULT '',
	website            TEXT NOT NULL DEFAULT '',
	owner_name         TEXT NOT NULL DEFAULT '',
	owner_email        TEXT NOT NULL DEFAULT '',
	email_verified     BOOLEAN NOT NULL DEFAULT false,
	unique_key         TEXT NOT NULL DEFAULT '',
	enrichment_status  TEXT NOT NULL DEFAULT 'pending',
	enrichment_sources JSONB NOT NULL DEFAULT '[]',
	tags               JSONB NOT NULL DEFAULT '[]',
	decision_makers    JSONB NOT NULL DEFAULT '[]',
	pain_points        TEXT NOT NULL DEFAULT '',
	score_fit              INTEGER NOT NULL DEFAULT 0,
	score_engagement       INTEGER NOT NULL DEFAULT 0,
	score_contact_quality  INTEGER NOT NULL DEFAULT 0,
	score_opportunity      INTEGER NOT NULL DEFAULT 0,
	score_total            INTEGER NOT NULL DEFAULT 0,
	contact_attempts   INTEGER NOT NULL DEFAULT 0,
	emails_sent        INTEGER NOT NULL DEFAULT 0,
	emails_opened      INTEGER NOT NULL DEFAULT 0,
	sms_sent           INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment_status ON leads(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_unique_key ON leads(unique_key);
CREATE INDEX IF NOT EXISTS idx_leads_score_total ON leads(score_total DESC);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id               TEXT PRIMARY KEY,
	lead_ids         JSONB NOT NULL,
	batch_size       INTEGER NOT NULL,
	status           TEXT NOT NULL DEFAULT 'queued',
	total_leads      INTEGER NOT NULL DEFAULT 0,
	processed_leads  INTEGER NOT NULL DEFAULT 0,
	successful_leads INTEGER NOT NULL DEFAULT 0,
	failed_leads     INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at       TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_enrichment_jobs_status ON enrichment_jobs(status);
CREATE INDEX IF NOT EXISTS idx_enrichment_jobs_created_at ON enrichment_jobs(created_at DESC);

CREATE TABLE IF NOT EXISTS job_logs (
	id         TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES enrichment_jobs(id),
	lead_id    TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	score      INTEGER,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs(job_id, created_at DESC);
`

// Migrate applies the idempotent schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// leadColumns is the canonical column order shared by insert, scan, and
// COPY operations.
var leadColumns = []string{
	"id", "business_name", "address", "city", "state", "phone", "website",
	"owner_name", "owner_email", "email_verified", "unique_key",
	"enrichment_status", "enrichment_sources", "tags", "decision_makers",
	"pain_points", "score_fit", "score_engagement", "score_contact_quality",
	"score_opportunity", "score_total", "contact_attempts", "emails_sent",
	"emails_opened", "sms_sent", "created_at", "updated_at",
}

const leadColumnList = `id, business_name, address, city, state, phone, website,
	owner_name, owner_email, email_verified, unique_key,
	enrichment_status, enrichment_sources, tags, decision_makers,
	pain_points, score_fit, score_engagement, score_contact_quality,
	score_opportunity, score_total, contact_attempts, emails_sent,
	emails_opened, sms_sent, created_at, updated_at`

const insertLeadSQL = `INSERT INTO leads (` + leadColumnList + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`

const getLeadSQL = `SELECT ` + leadColumnList + ` FROM leads WHERE id = $1`

const updateLeadSQL = `UPDATE leads SET
	business_name = $2, address = $3, city = $4, state = $5, phone = $6,
	website = $7, owner_name = $8, owner_email = $9, email_verified = $10,
	unique_key = $11, enrichment_status = $12, enrichment_sources = $13,
	tags = $14, decision_makers = $15, pain_points = $16,
	score_fit = $17, score_engagement = $18, score_contact_quality = $19,
	score_opportunity = $20, score_total = $21, contact_attempts = $22,
	emails_sent = $23, emails_opened = $24, sms_sent = $25, updated_at = $26
	WHERE id = $1`

const updateJobSQL = `UPDATE enrichment_jobs SET
	status = $2, processed_leads = $3, successful_leads = $4,
	failed_leads = $5, error = $6, started_at = $7, completed_at = $8
	WHERE id = $1`

const appendJobLogSQL = `INSERT INTO job_logs
	(id, job_id, lead_id, outcome, message, score, error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// leadArgs flattens a lead into the leadColumns order.
func leadArgs(l *model.Lead) ([]any, error) {
	sources, err := json.Marshal(emptyIfNil(l.EnrichmentSources))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal enrichment sources")
	}
	tags, err := json.Marshal(emptyIfNil(l.Tags))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal tags")
	}
	dms, err := json.Marshal(l.DecisionMakers)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal decision makers")
	}

	return []any{
		l.ID, l.BusinessName, l.Address, l.City, l.State, l.Phone, l.Website,
		l.OwnerName, l.OwnerEmail, l.EmailVerified, l.UniqueKey,
		string(l.EnrichmentStatus), sources, tags, dms,
		l.PainPoints, l.Scores.Fit, l.Scores.Engagement, l.Scores.ContactQuality,
		l.Scores.Opportunity, l.Scores.Total, l.ContactAttempts, l.EmailsSent,
		l.EmailsOpened, l.SMSSent, l.CreatedAt, l.UpdatedAt,
	}, nil
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// CreateLead inserts a single lead.
func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	args, err := leadArgs(lead)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, insertLeadSQL, args...); err != nil {
		return eris.Wrapf(err, "postgres: insert lead %s", lead.ID)
	}
	return nil
}

// BulkInsertLeads loads leads via the COPY protocol.
func (s *PostgresStore) BulkInsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	rows := make([][]any, 0, len(leads))
	for i := range leads {
		args, err := leadArgs(&leads[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, args)
	}
	return db.CopyFrom(ctx, s.pool, "leads", leadColumns, rows)
}

// GetLead fetches one lead by ID.
func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, "get_lead", id)
	lead, err := scanLead(row)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("postgres: lead not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

// GetLeads fetches leads by ID list; missing IDs are silently absent from
// the result.
func (s *PostgresStore) GetLeads(ctx context.Context, ids []string) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

// ListLeads returns leads matching the filter, newest first.
func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumnList + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND enrichment_status = $` + itoa(len(args))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		query += ` AND score_total >= $` + itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

// UpdateLead persists all mutable fields of a lead.
func (s *PostgresStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	args, err := leadArgs(lead)
	if err != nil {
		return err
	}
	// Reorder: id first, then mutable columns, then updated_at (created_at
	// is immutable and skipped).
	updateArgs := append([]any{args[0]}, args[1:25]...)
	updateArgs = append(updateArgs, lead.UpdatedAt)

	tag, err := s.pool.Exec(ctx, updateLeadSQL, updateArgs...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: lead not found: %s", lead.ID)
	}
	return nil
}

// DeleteLeads removes the given leads.
func (s *PostgresStore) DeleteLeads(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = ANY($1)`, ids); err != nil {
		return eris.Wrap(err, "postgres: delete leads")
	}
	return nil
}

// ListMatchFields fetches only the similarity columns for the whole
// population, in stable insertion order.
func (s *PostgresStore) ListMatchFields(ctx context.Context) ([]model.MatchFields, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, business_name, address, phone, website, owner_email
		 FROM leads ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list match fields")
	}
	defer rows.Close()

	var fields []model.MatchFields
	for rows.Next() {
		var f model.MatchFields
		if err := rows.Scan(&f.ID, &f.BusinessName, &f.Address, &f.Phone, &f.Website, &f.OwnerEmail); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match fields")
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "postgres: iterate match fields")
}

// MatchesExisting reports whether any lead matches by name substring,
// exact phone, or exact owner email.
func (s *PostgresStore) MatchesExisting(ctx context.Context, name, phone, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE business_name ILIKE '%' || $1 || '%'
			   OR ($2 <> '' AND phone = $2)
			   OR ($3 <> '' AND lower(owner_email) = lower($3))
		)`,
		name, phone, email,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: duplicate check")
	}
	return exists, nil
}

// CreateJob inserts a new enrichment job.
func (s *PostgresStore) CreateJob(ctx context.Context, job *model.EnrichmentJob) error {
	leadIDs, err := json.Marshal(job.LeadIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job lead IDs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO enrichment_jobs
		 (id, lead_ids, batch_size, status, total_leads, processed_leads,
		  successful_leads, failed_leads, error, created_at, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, leadIDs, job.BatchSize, string(job.Status), job.TotalLeads,
		job.ProcessedLeads, job.SuccessfulLeads, job.FailedLeads, job.Error,
		job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert job %s", job.ID)
	}
	return nil
}

// UpdateJob persists job status and counters.
func (s *PostgresStore) UpdateJob(ctx context.Context, job *model.EnrichmentJob) error {
	tag, err := s.pool.Exec(ctx, "update_job_progress",
		job.ID, string(job.Status), job.ProcessedLeads, job.SuccessfulLeads,
		job.FailedLeads, job.Error, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: job not found: %s", job.ID)
	}
	return nil
}

// GetJob fetches one job by ID.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, lead_ids, batch_size, status, total_leads, processed_leads,
		        successful_leads, failed_leads, error, created_at, started_at, completed_at
		 FROM enrichment_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("postgres: job not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error) {
	query := `SELECT id, lead_ids, batch_size, status, total_leads, processed_leads,
	                 successful_leads, failed_leads, error, created_at, started_at, completed_at
	          FROM enrichment_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.EnrichmentJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

// AppendJobLog inserts one append-only log entry.
func (s *PostgresStore) AppendJobLog(ctx context.Context, entry *model.JobLogEntry) error {
	_, err := s.pool.Exec(ctx, "append_job_log",
		entry.ID, entry.JobID, entry.LeadID, string(entry.Outcome),
		entry.Message, entry.Score, entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append job log for %s", entry.JobID)
	}
	return nil
}

// RecentJobLogs returns the most recent log entries for a job.
func (s *PostgresStore) RecentJobLogs(ctx context.Context, jobID string, limit int) ([]model.JobLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, lead_id, outcome, message, score, error, created_at
		 FROM job_logs WHERE job_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		jobID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: recent logs for %s", jobID)
	}
	defer rows.Close()

	var entries []model.JobLogEntry
	for rows.Next() {
		var e model.JobLogEntry
		var outcome string
		if err := rows.Scan(&e.ID, &e.JobID, &e.LeadID, &outcome, &e.Message, &e.Score, &e.Error, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job log")
		}
		e.Outcome = model.LogOutcome(outcome)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate job logs")
}

// scannable abstracts pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status string
	var sources, tags, dms []byte

	err := row.Scan(
		&l.ID, &l.BusinessName, &l.Address, &l.City, &l.State, &l.Phone,
		&l.Website, &l.OwnerName, &l.OwnerEmail, &l.EmailVerified,
		&l.UniqueKey, &status, &sources, &tags, &dms, &l.PainPoints,
		&l.Scores.Fit, &l.Scores.Engagement, &l.Scores.ContactQuality,
		&l.Scores.Opportunity, &l.Scores.Total, &l.ContactAttempts,
		&l.EmailsSent, &l.EmailsOpened, &l.SMSSent, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.EnrichmentStatus = model.EnrichmentStatus(status)
	if err := unmarshalList(sources, &l.EnrichmentSources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal enrichment sources")
	}
	if err := unmarshalList(tags, &l.Tags); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal tags")
	}
	if len(dms) > 0 {
		if err := json.Unmarshal(dms, &l.DecisionMakers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision makers")
		}
	}
	return &l, nil
}

func collectLeads(rows pgx.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func scanJob(row scannable) (*model.EnrichmentJob, error) {
	var j model.EnrichmentJob
	var status string
	var leadIDs []byte

	err := row.Scan(
		&j.ID, &leadIDs, &j.BatchSize, &status, &j.TotalLeads,
		&j.ProcessedLeads, &j.SuccessfulLeads, &j.FailedLeads, &j.Error,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = model.JobStatus(status)
	if len(leadIDs) > 0 {
		if err := json.Unmarshal(leadIDs, &j.LeadIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job lead IDs")
		}
	}
	return &j, nil
}

func unmarshalList(data []byte, dst *[]string) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
