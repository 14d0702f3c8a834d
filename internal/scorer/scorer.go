// Package scorer computes a 0-100 completeness score for an enriched job.
//
// Every criterion checks presence only, so adding information to a job never
// lowers its score.
package scorer

import (
	"strings"
	"unicode/utf8"

	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/textnorm"
)

// DefaultMinDescriptionLength is the plain-text rune count a description
// needs before it earns its weight.
const DefaultMinDescriptionLength = 200

// Criterion is one rubric line and whether the job satisfied it.
type Criterion struct {
	Name   string
	Weight int
	Met    bool
}

type rule struct {
	name   string
	weight int
	check  func(s *Scorer, j model.Job) bool
}

// Weights sum to 100.
var rubric = []rule{
	{"title", 15, func(_ *Scorer, j model.Job) bool { return strings.TrimSpace(j.Title) != "" }},
	{"description", 25, func(s *Scorer, j model.Job) bool {
		return utf8.RuneCountInString(textnorm.PlainText(j.Description)) >= s.minDescriptionLength
	}},
	{"company", 10, func(_ *Scorer, j model.Job) bool { return strings.TrimSpace(j.Company) != "" }},
	{"location", 10, func(_ *Scorer, j model.Job) bool { return strings.TrimSpace(j.Location) != "" }},
	{"role_function", 20, func(_ *Scorer, j model.Job) bool { return j.RoleFunction.IsResolved() }},
	{"languages", 10, func(_ *Scorer, j model.Job) bool { return len(j.LanguageRequirements) > 0 }},
	{"posted_at", 10, func(_ *Scorer, j model.Job) bool { return j.PostedAt != nil && !j.PostedAt.IsZero() }},
}

// Scorer is a pure function object; it is safe for concurrent use.
type Scorer struct {
	minDescriptionLength int
}

// New returns a scorer. minDescriptionLength <= 0 uses DefaultMinDescriptionLength.
func New(minDescriptionLength int) *Scorer {
	if minDescriptionLength <= 0 {
		minDescriptionLength = DefaultMinDescriptionLength
	}
	return &Scorer{minDescriptionLength: minDescriptionLength}
}

// Score returns the sum of the weights of all satisfied criteria.
func (s *Scorer) Score(j model.Job) int {
	total := 0
	for _, r := range rubric {
		if r.check(s, j) {
			total += r.weight
		}
	}
	return total
}

// Breakdown lists every criterion with its outcome, in rubric order.
func (s *Scorer) Breakdown(j model.Job) []Criterion {
	out := make([]Criterion, 0, len(rubric))
	for _, r := range rubric {
		out = append(out, Criterion{Name: r.name, Weight: r.weight, Met: r.check(s, j)})
	}
	return out
}
