package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// zero-infrastructure backend for local work and small imports.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	email_verified     INTEGER NOT NULL DEFAULT 0,
	unique_key         TEXT NOT NULL DEFAULT '',
	enrichment_status  TEXT NOT NULL DEFAULT 'pending',
	enrichment_sources TEXT NOT NULL DEFAULT '[]',
	tags               TEXT NOT NULL DEFAULT '[]',
	decision_makers    TEXT NOT NULL DEFAULT '[]',
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
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment_status ON leads(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_unique_key ON leads(unique_key);
CREATE INDEX IF NOT EXISTS idx_leads_score_total ON leads(score_total DESC);

CREATE TABLE IF NOT EXISTS enrichment_jobs (
	id               TEXT PRIMARY KEY,
	lead_ids         TEXT NOT NULL,
	batch_size       INTEGER NOT NULL,
	status           TEXT NOT NULL DEFAULT 'queued',
	total_leads      INTEGER NOT NULL DEFAULT 0,
	processed_leads  INTEGER NOT NULL DEFAULT 0,
	successful_leads INTEGER NOT NULL DEFAULT 0,
	failed_leads     INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	started_at       DATETIME,
	completed_at     DATETIME
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
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_logs_job_id ON job_logs(job_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteLeadInsert = `INSERT INTO leads (` + leadColumnList + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// sqliteLeadArgs flattens a lead into leadColumns order with JSON list
// columns encoded as TEXT.
func sqliteLeadArgs(l *model.Lead) ([]any, error) {
	sources, err := json.Marshal(emptyIfNil(l.EnrichmentSources))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal enrichment sources")
	}
	tags, err := json.Marshal(emptyIfNil(l.Tags))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal tags")
	}
	dms, err := json.Marshal(l.DecisionMakers)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal decision makers")
	}

	return []any{
		l.ID, l.BusinessName, l.Address, l.City, l.State, l.Phone, l.Website,
		l.OwnerName, l.OwnerEmail, l.EmailVerified, l.UniqueKey,
		string(l.EnrichmentStatus), string(sources), string(tags), string(dms),
		l.PainPoints, l.Scores.Fit, l.Scores.Engagement, l.Scores.ContactQuality,
		l.Scores.Opportunity, l.Scores.Total, l.ContactAttempts, l.EmailsSent,
		l.EmailsOpened, l.SMSSent, l.CreatedAt, l.UpdatedAt,
	}, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	args, err := sqliteLeadArgs(lead)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteLeadInsert, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert lead %s", lead.ID)
	}
	return nil
}

// BulkInsertLeads inserts leads in a single transaction. SQLite has no
// COPY protocol; one transaction avoids per-row fsync.
func (s *SQLiteStore) BulkInsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteLeadInsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare bulk insert")
	}
	defer stmt.Close()

	var n int64
	for i := range leads {
		args, err := sqliteLeadArgs(&leads[i])
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk insert lead %s", leads[i].ID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit bulk insert")
	}
	return n, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumnList+` FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: lead not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) GetLeads(ctx context.Context, ids []string) ([]model.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + leadColumnList + ` FROM leads WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get leads")
	}
	defer rows.Close()
	return collectLeadRows(rows)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumnList + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND enrichment_status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinScore > 0 {
		query += ` AND score_total >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()
	return collectLeadRows(rows)
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	args, err := sqliteLeadArgs(lead)
	if err != nil {
		return err
	}
	// Mutable columns in leadColumns order, then updated_at, then id for
	// the WHERE clause. created_at is immutable and skipped.
	updateArgs := append(args[1:25], lead.UpdatedAt, lead.ID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			business_name = ?, address = ?, city = ?, state = ?, phone = ?,
			website = ?, owner_name = ?, owner_email = ?, email_verified = ?,
			unique_key = ?, enrichment_status = ?, enrichment_sources = ?,
			tags = ?, decision_makers = ?, pain_points = ?,
			score_fit = ?, score_engagement = ?, score_contact_quality = ?,
			score_opportunity = ?, score_total = ?, contact_attempts = ?,
			emails_sent = ?, emails_opened = ?, sms_sent = ?, updated_at = ?
		 WHERE id = ?`,
		updateArgs...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	return checkRowsAffected(res, "lead", lead.ID)
}

func (s *SQLiteStore) DeleteLeads(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM leads WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := s.db.ExecContext(ctx, query, toAnySlice(ids)...); err != nil {
		return eris.Wrap(err, "sqlite: delete leads")
	}
	return nil
}

func (s *SQLiteStore) ListMatchFields(ctx context.Context) ([]model.MatchFields, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_name, address, phone, website, owner_email
		 FROM leads ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list match fields")
	}
	defer rows.Close()

	var fields []model.MatchFields
	for rows.Next() {
		var f model.MatchFields
		if err := rows.Scan(&f.ID, &f.BusinessName, &f.Address, &f.Phone, &f.Website, &f.OwnerEmail); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match fields")
		}
		fields = append(fields, f)
	}
	return fields, eris.Wrap(rows.Err(), "sqlite: iterate match fields")
}

func (s *SQLiteStore) MatchesExisting(ctx context.Context, name, phone, email string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE instr(lower(business_name), lower(?)) > 0
			   OR (? <> '' AND phone = ?)
			   OR (? <> '' AND lower(owner_email) = lower(?))
		)`,
		name, phone, phone, email, email,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: duplicate check")
	}
	return exists == 1, nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.EnrichmentJob) error {
	leadIDs, err := json.Marshal(job.LeadIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job lead IDs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_jobs
		 (id, lead_ids, batch_size, status, total_leads, processed_leads,
		  successful_leads, failed_leads, error, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(leadIDs), job.BatchSize, string(job.Status), job.TotalLeads,
		job.ProcessedLeads, job.SuccessfulLeads, job.FailedLeads, job.Error,
		job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert job %s", job.ID)
	}
	return nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.EnrichmentJob) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_jobs SET
			status = ?, processed_leads = ?, successful_leads = ?,
			failed_leads = ?, error = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		string(job.Status), job.ProcessedLeads, job.SuccessfulLeads,
		job.FailedLeads, job.Error, job.StartedAt, job.CompletedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.EnrichmentJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_ids, batch_size, status, total_leads, processed_leads,
		        successful_leads, failed_leads, error, created_at, started_at, completed_at
		 FROM enrichment_jobs WHERE id = ?`, id)

	job, err := scanSQLiteJob(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: job not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.EnrichmentJob, error) {
	query := `SELECT id, lead_ids, batch_size, status, total_leads, processed_leads,
	                 successful_leads, failed_leads, error, created_at, started_at, completed_at
	          FROM enrichment_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.EnrichmentJob
	for rows.Next() {
		job, err := scanSQLiteJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

func (s *SQLiteStore) AppendJobLog(ctx context.Context, entry *model.JobLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_logs (id, job_id, lead_id, outcome, message, score, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.JobID, entry.LeadID, string(entry.Outcome),
		entry.Message, entry.Score, entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append job log for %s", entry.JobID)
	}
	return nil
}

func (s *SQLiteStore) RecentJobLogs(ctx context.Context, jobID string, limit int) ([]model.JobLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, lead_id, outcome, message, score, error, created_at
		 FROM job_logs WHERE job_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		jobID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: recent logs for %s", jobID)
	}
	defer rows.Close()

	var entries []model.JobLogEntry
	for rows.Next() {
		var e model.JobLogEntry
		var outcome string
		if err := rows.Scan(&e.ID, &e.JobID, &e.LeadID, &outcome, &e.Message, &e.Score, &e.Error, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job log")
		}
		e.Outcome = model.LogOutcome(outcome)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate job logs")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func collectLeadRows(rows *sql.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func scanSQLiteJob(row scannable) (*model.EnrichmentJob, error) {
	return scanJob(row)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnySlice(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
