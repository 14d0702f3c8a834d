// Package ai adds optional LLM-derived insights to job postings. Insights are
// informational only; nothing here affects role, languages or quality.
package ai

import (
	"context"

	"github.com/amishk599/jobenrich/internal/model"
)

// LLMProvider turns a prompt into the model's raw text reply.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NopJobAnalyzer is wired when ai.enabled is false.
type NopJobAnalyzer struct{}

func NewNopJobAnalyzer() *NopJobAnalyzer { return &NopJobAnalyzer{} }

func (NopJobAnalyzer) Analyze(_ context.Context, job model.Job) (model.Job, error) {
	return job, nil
}
