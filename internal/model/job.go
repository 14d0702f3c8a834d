package model

import (
	"context"
	"slices"
	"strings"
	"time"
)

// CurrentEnrichmentVersion is written with every enrichment. Records carrying
// an older (or no) version are recomputed in full.
const CurrentEnrichmentVersion = 4

// Job is the typed representation of a stored job posting.
type Job struct {
	ID          string     // opaque, unique per store
	Provider    string     // source the posting was ingested from
	Company     string     // company name
	Title       string     // job title
	Description string     // free text, may contain markup
	Location    string     // location string
	URL         string     // apply link
	PostedAt    *time.Time // immutable after creation, nullable

	RoleFunction         RoleFunction // empty until enriched
	LanguageRequirements []string     // sorted ISO 639-1 codes
	EnrichmentQuality    *int         // 0-100, nil until enriched
	EnrichmentVersion    int          // 0 until enriched
	LastEnrichedAt       *time.Time   // compare-and-set guard
	Insights             *JobInsights // optional AI output, never scored
}

// JobInsights holds optional LLM-derived metadata.
type JobInsights struct {
	Seniority string
	YearsExp  string
	TechStack []string
	KeyPoints [3]string
}

// Validate reports ErrRecordMalformed when the text fields the pipeline
// depends on are missing.
func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return &MalformedError{JobID: j.ID, Field: "id"}
	}
	if strings.TrimSpace(j.Title) == "" {
		return &MalformedError{JobID: j.ID, Field: "title"}
	}
	return nil
}

// Enrichment is the merge patch the orchestrator writes back. RoleFunction,
// LanguageRequirements and Quality always travel together.
type Enrichment struct {
	RoleFunction         RoleFunction
	LanguageRequirements []string
	Quality              int
	Version              int
	Insights             *JobInsights
	EnrichedAt           time.Time
}

// Apply merges e into a copy of j.
func (e Enrichment) Apply(j Job) Job {
	j.RoleFunction = e.RoleFunction
	j.LanguageRequirements = slices.Clone(e.LanguageRequirements)
	q := e.Quality
	j.EnrichmentQuality = &q
	j.EnrichmentVersion = e.Version
	if e.Insights != nil {
		j.Insights = e.Insights
	}
	at := e.EnrichedAt
	j.LastEnrichedAt = &at
	return j
}

// SameAs returns true if applying e to j would not change any enrichment field.
func (e Enrichment) SameAs(j Job) bool {
	if j.EnrichmentQuality == nil || *j.EnrichmentQuality != e.Quality {
		return false
	}
	if j.RoleFunction != e.RoleFunction || j.EnrichmentVersion != e.Version {
		return false
	}
	if e.Insights != nil && j.Insights == nil {
		return false
	}
	return slices.Equal(j.LanguageRequirements, e.LanguageRequirements)
}

// JobStore is the document store client used by the orchestrator.
type JobStore interface {
	GetJob(ctx context.Context, id string) (Job, error)
	SelectJobIDs(ctx context.Context, sel Selector) ([]string, error)
	// UpdateEnrichment merges e into the job only if its LastEnrichedAt still
	// equals expected (nil meaning never enriched). Returns ErrConflict otherwise.
	UpdateEnrichment(ctx context.Context, id string, e Enrichment, expected *time.Time) error
}

// JobWriter inserts or replaces job postings. Used by the import command.
type JobWriter interface {
	UpsertJob(ctx context.Context, job Job) error
}

// JobLister returns full records for a selector. Used by the browse TUI.
type JobLister interface {
	ListJobs(ctx context.Context, sel Selector) ([]Job, error)
}

// TaskStore persists EnrichmentTask audit records. Tasks are never deleted.
type TaskStore interface {
	CreateTask(ctx context.Context, task EnrichmentTask) error
	UpdateTask(ctx context.Context, task EnrichmentTask) error
	ListTasks(ctx context.Context, limit int) ([]EnrichmentTask, error)
}

// Reporter publishes the outcome of a finished run.
type Reporter interface {
	Report(task EnrichmentTask, summary Summary) error
}
