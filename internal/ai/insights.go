package ai

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/amishk599/jobenrich/internal/model"
)

const maxTechStack = 8

// seniorityLevels is the closed set the model chooses from.
var seniorityLevels = []string{
	"intern", "junior", "mid", "senior", "staff",
	"principal", "lead", "manager", "director", "unknown",
}

// rawInsights is the reply shape enforced by insightsSchema.
type rawInsights struct {
	Seniority string   `json:"seniority"`
	YearsExp  string   `json:"years_exp"`
	TechStack []string `json:"tech_stack"`
	KeyPoints []string `json:"key_points"`
}

// parseInsights decodes a reply and normalises it. Compatible backends that
// ignore the schema may send fewer key points or an off-list seniority.
func parseInsights(raw string) (*model.JobInsights, error) {
	var ri rawInsights
	if err := json.Unmarshal([]byte(raw), &ri); err != nil {
		return nil, fmt.Errorf("unmarshal insights JSON: %w", err)
	}

	insights := &model.JobInsights{
		Seniority: normalizeSeniority(ri.Seniority),
		YearsExp:  strings.TrimSpace(ri.YearsExp),
		TechStack: normalizeTechStack(ri.TechStack),
	}
	for i := 0; i < len(insights.KeyPoints) && i < len(ri.KeyPoints); i++ {
		insights.KeyPoints[i] = strings.TrimSpace(ri.KeyPoints[i])
	}
	return insights, nil
}

func normalizeSeniority(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(seniorityLevels, s) {
		return "unknown"
	}
	return s
}

// normalizeTechStack drops blanks and case-insensitive duplicates, keeping
// the model's order, and caps the list.
func normalizeTechStack(stack []string) []string {
	out := make([]string, 0, min(len(stack), maxTechStack))
	seen := make(map[string]bool, len(stack))
	for _, tech := range stack {
		tech = strings.TrimSpace(tech)
		key := strings.ToLower(tech)
		if tech == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tech)
		if len(out) == maxTechStack {
			break
		}
	}
	return out
}
