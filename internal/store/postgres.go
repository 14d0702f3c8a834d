package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/jobenrich/internal/model"
)

var (
	_ model.JobStore  = (*PostgresStore)(nil)
	_ model.JobWriter = (*PostgresStore)(nil)
	_ model.JobLister = (*PostgresStore)(nil)
	_ model.TaskStore = (*PostgresStore)(nil)
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                    TEXT PRIMARY KEY,
	provider              TEXT NOT NULL DEFAULT '',
	company               TEXT NOT NULL DEFAULT '',
	title                 TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	location              TEXT NOT NULL DEFAULT '',
	url                   TEXT NOT NULL DEFAULT '',
	posted_at             BIGINT,
	role_function         TEXT,
	language_requirements TEXT,
	enrichment_quality    BIGINT,
	enrichment_version    BIGINT NOT NULL DEFAULT 0,
	insights              TEXT,
	last_enriched_at      BIGINT
);
CREATE INDEX IF NOT EXISTS jobs_company_idx ON jobs (LOWER(company));
CREATE INDEX IF NOT EXISTS jobs_provider_idx ON jobs (provider);
CREATE TABLE IF NOT EXISTS enrichment_tasks (
	id          TEXT PRIMARY KEY,
	provider    TEXT NOT NULL DEFAULT '',
	selector    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	processed   BIGINT NOT NULL DEFAULT 0,
	succeeded   BIGINT NOT NULL DEFAULT 0,
	failed      BIGINT NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  BIGINT NOT NULL,
	started_at  BIGINT,
	finished_at BIGINT
);`

// PostgresStore keeps job postings and enrichment tasks in PostgreSQL. The
// pool is shared by concurrent workers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates and verifies a pgxpool connection pool and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// GetJob loads one job by id.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (model.Job, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, fmt.Errorf("get job %s: %w", id, model.ErrNotFound)
	}
	if errors.Is(err, model.ErrRecordMalformed) {
		return model.Job{}, err
	}
	if err != nil {
		return model.Job{}, &model.StoreError{Op: "get job " + id, Err: err}
	}
	return job, nil
}

// SelectJobIDs resolves a selector to job ids ordered by id.
func (s *PostgresStore) SelectJobIDs(ctx context.Context, sel model.Selector) ([]string, error) {
	where, args := selectWhere(sel)
	rows, err := s.pool.Query(ctx, rebindDollar("SELECT id FROM jobs"+where), args...)
	if err != nil {
		return nil, &model.StoreError{Op: "select job ids", Err: err}
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &model.StoreError{Op: "select job ids", Err: err}
	}
	return ids, nil
}

// ListJobs returns full records for a selector. Rows that cannot be decoded
// are skipped.
func (s *PostgresStore) ListJobs(ctx context.Context, sel model.Selector) ([]model.Job, error) {
	where, args := selectWhere(sel)
	rows, err := s.pool.Query(ctx, rebindDollar("SELECT "+jobColumns+" FROM jobs"+where), args...)
	if err != nil {
		return nil, &model.StoreError{Op: "list jobs", Err: err}
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if errors.Is(err, model.ErrRecordMalformed) {
			continue
		}
		if err != nil {
			return nil, &model.StoreError{Op: "scan job", Err: err}
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "list jobs", Err: err}
	}
	return jobs, nil
}

// UpdateEnrichment writes all enrichment fields in one statement, guarded by
// a compare-and-set on last_enriched_at.
func (s *PostgresStore) UpdateEnrichment(ctx context.Context, id string, e model.Enrichment, expected *time.Time) error {
	langs, err := encodeLanguages(e.LanguageRequirements)
	if err != nil {
		return err
	}
	insights, err := encodeInsights(e.Insights)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET
			role_function = $1, language_requirements = $2, enrichment_quality = $3, enrichment_version = $4,
			insights = COALESCE($5::text, insights), last_enriched_at = $6
		 WHERE id = $7 AND last_enriched_at IS NOT DISTINCT FROM $8::bigint`,
		string(e.RoleFunction), langs, e.Quality, e.Version,
		insights, e.EnrichedAt.UTC().UnixNano(),
		id, nanos(expected),
	)
	if err != nil {
		return &model.StoreError{Op: "update enrichment " + id, Err: err}
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return &model.StoreError{Op: "update enrichment " + id, Err: err}
	}
	if !exists {
		return fmt.Errorf("update enrichment %s: %w", id, model.ErrNotFound)
	}
	return fmt.Errorf("update enrichment %s: %w", id, model.ErrConflict)
}

// UpsertJob inserts a posting or refreshes its text fields.
func (s *PostgresStore) UpsertJob(ctx context.Context, job model.Job) error {
	if _, err := s.pool.Exec(ctx, rebindDollar(upsertJobSQL), jobArgs(job)...); err != nil {
		return &model.StoreError{Op: "upsert job " + job.ID, Err: err}
	}
	return nil
}

// CreateTask records a new enrichment task.
func (s *PostgresStore) CreateTask(ctx context.Context, task model.EnrichmentTask) error {
	if _, err := s.pool.Exec(ctx, rebindDollar(insertTaskSQL), taskArgs(task)...); err != nil {
		return &model.StoreError{Op: "create task " + task.ID, Err: err}
	}
	return nil
}

// UpdateTask persists status, counters and timestamps of an existing task.
func (s *PostgresStore) UpdateTask(ctx context.Context, task model.EnrichmentTask) error {
	tag, err := s.pool.Exec(ctx, rebindDollar(updateTaskSQL), taskUpdateArgs(task)...)
	if err != nil {
		return &model.StoreError{Op: "update task " + task.ID, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, model.ErrNotFound)
	}
	return nil
}

// ListTasks returns the most recent tasks first.
func (s *PostgresStore) ListTasks(ctx context.Context, limit int) ([]model.EnrichmentTask, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+taskColumns+" FROM enrichment_tasks ORDER BY created_at DESC, id LIMIT $1", limit)
	if err != nil {
		return nil, &model.StoreError{Op: "list tasks", Err: err}
	}
	defer rows.Close()

	var tasks []model.EnrichmentTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, &model.StoreError{Op: "scan task", Err: err}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "list tasks", Err: err}
	}
	return tasks, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
