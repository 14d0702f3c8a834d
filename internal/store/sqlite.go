package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobenrich/internal/model"
)

// Compile-time interface checks.
var (
	_ model.JobStore  = (*SQLiteStore)(nil)
	_ model.JobWriter = (*SQLiteStore)(nil)
	_ model.JobLister = (*SQLiteStore)(nil)
	_ model.TaskStore = (*SQLiteStore)(nil)
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                    TEXT PRIMARY KEY,
	provider              TEXT NOT NULL DEFAULT '',
	company               TEXT NOT NULL DEFAULT '',
	title                 TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	location              TEXT NOT NULL DEFAULT '',
	url                   TEXT NOT NULL DEFAULT '',
	posted_at             INTEGER,
	role_function         TEXT,
	language_requirements TEXT,
	enrichment_quality    INTEGER,
	enrichment_version    INTEGER NOT NULL DEFAULT 0,
	insights              TEXT,
	last_enriched_at      INTEGER
);
CREATE INDEX IF NOT EXISTS jobs_company_idx ON jobs (company COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS jobs_provider_idx ON jobs (provider);
CREATE TABLE IF NOT EXISTS enrichment_tasks (
	id          TEXT PRIMARY KEY,
	provider    TEXT NOT NULL DEFAULT '',
	selector    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	processed   INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	started_at  INTEGER,
	finished_at INTEGER
);`

// SQLiteStore keeps job postings and enrichment tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas run on every connection the pool opens. Concurrent workers
// each hold their own connection, so a pragma executed once would only reach one.
var sqlitePragmas = []string{"busy_timeout(5000)", "journal_mode(WAL)"}

// sqliteDSN appends sqlitePragmas to dbPath as _pragma query parameters.
func sqliteDSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dbPath)
	for _, p := range sqlitePragmas {
		b.WriteString(sep + "_pragma=" + p)
		sep = "&"
	}
	return b.String()
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the jobs and enrichment_tasks tables exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetJob loads one job by id.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (model.Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLiteStore) SelectJobIDs(ctx context.Context, sel model.Selector) ([]string, error) {
	where, args := selectWhere(sel)
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM jobs"+where, args...)
	if err != nil {
		return nil, &model.StoreError{Op: "select job ids", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &model.StoreError{Op: "scan job id", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "select job ids", Err: err}
	}
	return ids, nil
}

// ListJobs returns full records for a selector. Rows that cannot be decoded
// are skipped.
func (s *SQLiteStore) ListJobs(ctx context.Context, sel model.Selector) ([]model.Job, error) {
	where, args := selectWhere(sel)
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs"+where, args...)
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
func (s *SQLiteStore) UpdateEnrichment(ctx context.Context, id string, e model.Enrichment, expected *time.Time) error {
	langs, err := encodeLanguages(e.LanguageRequirements)
	if err != nil {
		return err
	}
	insights, err := encodeInsights(e.Insights)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET
			role_function = ?, language_requirements = ?, enrichment_quality = ?, enrichment_version = ?,
			insights = COALESCE(?, insights), last_enriched_at = ?
		 WHERE id = ? AND last_enriched_at IS ?`,
		string(e.RoleFunction), langs, e.Quality, e.Version,
		insights, e.EnrichedAt.UTC().UnixNano(),
		id, nanos(expected),
	)
	if err != nil {
		return &model.StoreError{Op: "update enrichment " + id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &model.StoreError{Op: "update enrichment " + id, Err: err}
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM jobs WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update enrichment %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return &model.StoreError{Op: "update enrichment " + id, Err: err}
	}
	return fmt.Errorf("update enrichment %s: %w", id, model.ErrConflict)
}

// UpsertJob inserts a posting or refreshes its text fields. Enrichment
// columns and an existing posted_at are left untouched.
func (s *SQLiteStore) UpsertJob(ctx context.Context, job model.Job) error {
	if _, err := s.db.ExecContext(ctx, upsertJobSQL, jobArgs(job)...); err != nil {
		return &model.StoreError{Op: "upsert job " + job.ID, Err: err}
	}
	return nil
}

// CreateTask records a new enrichment task.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.EnrichmentTask) error {
	if _, err := s.db.ExecContext(ctx, insertTaskSQL, taskArgs(task)...); err != nil {
		return &model.StoreError{Op: "create task " + task.ID, Err: err}
	}
	return nil
}

// UpdateTask persists status, counters and timestamps of an existing task.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.EnrichmentTask) error {
	res, err := s.db.ExecContext(ctx, updateTaskSQL, taskUpdateArgs(task)...)
	if err != nil {
		return &model.StoreError{Op: "update task " + task.ID, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, model.ErrNotFound)
	}
	return nil
}

// ListTasks returns the most recent tasks first.
func (s *SQLiteStore) ListTasks(ctx context.Context, limit int) ([]model.EnrichmentTask, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM enrichment_tasks ORDER BY created_at DESC, id LIMIT ?", limit)
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

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
