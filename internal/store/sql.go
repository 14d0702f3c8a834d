package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobenrich/internal/model"
)

// Both backends share one schema. Timestamps are stored as UTC unix
// nanoseconds so the compare-and-set on last_enriched_at is exact.
const jobColumns = `id, provider, company, title, description, location, url, posted_at,
	role_function, language_requirements, enrichment_quality, enrichment_version,
	insights, last_enriched_at`

const taskColumns = `id, provider, selector, status, processed, succeeded, failed, error,
	created_at, started_at, finished_at`

const upsertJobSQL = `INSERT INTO jobs (id, provider, company, title, description, location, url, posted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		provider = excluded.provider,
		company = excluded.company,
		title = excluded.title,
		description = excluded.description,
		location = excluded.location,
		url = excluded.url,
		posted_at = COALESCE(jobs.posted_at, excluded.posted_at)`

const insertTaskSQL = `INSERT INTO enrichment_tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateTaskSQL = `UPDATE enrichment_tasks SET
	status = ?, processed = ?, succeeded = ?, failed = ?, error = ?, started_at = ?, finished_at = ?
	WHERE id = ?`

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// selectWhere renders the WHERE/ORDER/LIMIT tail for a selector using '?'
// placeholders.
func selectWhere(sel model.Selector) (string, []any) {
	var conds []string
	var args []any
	switch {
	case sel.ID != "":
		conds = append(conds, "id = ?")
		args = append(args, sel.ID)
	case sel.Company != "":
		conds = append(conds, "LOWER(company) = LOWER(?)")
		args = append(args, sel.Company)
	}
	if sel.Provider != "" {
		conds = append(conds, "provider = ?")
		args = append(args, sel.Provider)
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY id")
	if sel.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, sel.Limit)
	}
	return b.String(), args
}

// rebindDollar rewrites '?' placeholders as $1..$n for PostgreSQL.
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nanos(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UTC().UnixNano()
	return &n
}

func fromNanos(n *int64) *time.Time {
	if n == nil {
		return nil
	}
	t := time.Unix(0, *n).UTC()
	return &t
}

type insightsJSON struct {
	Seniority string    `json:"seniority"`
	YearsExp  string    `json:"years_exp"`
	TechStack []string  `json:"tech_stack"`
	KeyPoints [3]string `json:"key_points"`
}

func encodeLanguages(langs []string) (string, error) {
	if langs == nil {
		langs = []string{}
	}
	b, err := json.Marshal(langs)
	if err != nil {
		return "", fmt.Errorf("encode language requirements: %w", err)
	}
	return string(b), nil
}

func encodeInsights(ins *model.JobInsights) (*string, error) {
	if ins == nil {
		return nil, nil
	}
	b, err := json.Marshal(insightsJSON{
		Seniority: ins.Seniority,
		YearsExp:  ins.YearsExp,
		TechStack: ins.TechStack,
		KeyPoints: ins.KeyPoints,
	})
	if err != nil {
		return nil, fmt.Errorf("encode insights: %w", err)
	}
	s := string(b)
	return &s, nil
}

// scanJob decodes one jobs row. Nullable enrichment columns degrade to
// "not enriched"; undecodable JSON is reported as ErrRecordMalformed.
func scanJob(row rowScanner) (model.Job, error) {
	var (
		j                               model.Job
		postedAt, quality, lastEnriched *int64
		role, langs, insights           *string
		version                         int64
	)
	if err := row.Scan(
		&j.ID, &j.Provider, &j.Company, &j.Title, &j.Description, &j.Location, &j.URL, &postedAt,
		&role, &langs, &quality, &version,
		&insights, &lastEnriched,
	); err != nil {
		return model.Job{}, err
	}

	j.PostedAt = fromNanos(postedAt)
	j.LastEnrichedAt = fromNanos(lastEnriched)
	j.EnrichmentVersion = int(version)
	if role != nil {
		j.RoleFunction = model.RoleFunction(*role)
	}
	if quality != nil {
		q := int(*quality)
		j.EnrichmentQuality = &q
	}
	if langs != nil && *langs != "" {
		if err := json.Unmarshal([]byte(*langs), &j.LanguageRequirements); err != nil {
			return j, &model.MalformedError{JobID: j.ID, Field: "language_requirements", Err: err}
		}
	}
	if insights != nil && *insights != "" {
		var ij insightsJSON
		if err := json.Unmarshal([]byte(*insights), &ij); err != nil {
			return j, &model.MalformedError{JobID: j.ID, Field: "insights", Err: err}
		}
		j.Insights = &model.JobInsights{
			Seniority: ij.Seniority,
			YearsExp:  ij.YearsExp,
			TechStack: ij.TechStack,
			KeyPoints: ij.KeyPoints,
		}
	}
	return j, nil
}

func scanTask(row rowScanner) (model.EnrichmentTask, error) {
	var (
		t                 model.EnrichmentTask
		status            string
		created           int64
		started, finished *int64
	)
	if err := row.Scan(
		&t.ID, &t.Provider, &t.Selector, &status, &t.Processed, &t.Succeeded, &t.Failed, &t.Error,
		&created, &started, &finished,
	); err != nil {
		return model.EnrichmentTask{}, err
	}
	st, err := model.ParseTaskStatus(status)
	if err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.Status = st
	t.CreatedAt = time.Unix(0, created).UTC()
	t.StartedAt = fromNanos(started)
	t.FinishedAt = fromNanos(finished)
	return t, nil
}

func taskArgs(t model.EnrichmentTask) []any {
	return []any{
		t.ID, t.Provider, t.Selector, string(t.Status), t.Processed, t.Succeeded, t.Failed, t.Error,
		t.CreatedAt.UTC().UnixNano(), nanos(t.StartedAt), nanos(t.FinishedAt),
	}
}

func taskUpdateArgs(t model.EnrichmentTask) []any {
	return []any{
		string(t.Status), t.Processed, t.Succeeded, t.Failed, t.Error, nanos(t.StartedAt), nanos(t.FinishedAt),
		t.ID,
	}
}

func jobArgs(j model.Job) []any {
	return []any{j.ID, j.Provider, j.Company, j.Title, j.Description, j.Location, j.URL, nanos(j.PostedAt)}
}
