package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/amishk599/jobenrich/internal/model"
)

// LLMJobAnalyzer fills model.JobInsights from a job's description.
type LLMJobAnalyzer struct {
	provider LLMProvider
	tmpl     *template.Template
	logger   *slog.Logger
}

func NewLLMJobAnalyzer(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *LLMJobAnalyzer {
	return &LLMJobAnalyzer{provider: provider, tmpl: tmpl, logger: logger}
}

// Analyze returns job with Insights set. On any failure, or when the
// description has no text, job comes back untouched.
func (a *LLMJobAnalyzer) Analyze(ctx context.Context, job model.Job) (model.Job, error) {
	in, ok := newPromptInput(job)
	if !ok {
		return job, nil
	}

	var prompt bytes.Buffer
	if err := a.tmpl.Execute(&prompt, in); err != nil {
		return job, fmt.Errorf("render prompt: %w", err)
	}

	reply, err := a.provider.Complete(ctx, prompt.String())
	if err != nil {
		return job, fmt.Errorf("llm complete: %w", err)
	}

	insights, err := parseInsights(reply)
	if err != nil {
		return job, err
	}

	if a.logger != nil {
		a.logger.Debug("job analyzed", "job_id", job.ID, "seniority", insights.Seniority, "tech_stack", len(insights.TechStack))
	}
	job.Insights = insights
	return job, nil
}
