package ai

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/textnorm"
)

// maxPromptRunes bounds the description sent to the model.
const maxPromptRunes = 12000

//go:embed prompts/job_analysis.md
var jobAnalysisPrompt string

// PromptInput is the data a job analysis template is executed with.
type PromptInput struct {
	Title       string
	Company     string
	Description string
}

var JobAnalysisTemplate = template.Must(template.New("job_analysis").
	Funcs(template.FuncMap{"orUnstated": orUnstated}).
	Parse(jobAnalysisPrompt))

func orUnstated(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not stated)"
	}
	return s
}

// newPromptInput reduces a job to plain text. ok is false when the
// description carries no text worth sending.
func newPromptInput(job model.Job) (in PromptInput, ok bool) {
	desc := textnorm.PlainText(job.Description)
	if desc == "" {
		return PromptInput{}, false
	}
	if r := []rune(desc); len(r) > maxPromptRunes {
		desc = string(r[:maxPromptRunes])
	}
	return PromptInput{
		Title:       strings.TrimSpace(job.Title),
		Company:     strings.TrimSpace(job.Company),
		Description: desc,
	}, true
}
