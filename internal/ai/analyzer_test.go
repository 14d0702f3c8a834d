package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"text/template"

	"github.com/amishk599/jobenrich/internal/model"
)

// mockProvider is a stub LLMProvider that records the last prompt.
type mockProvider struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (m *mockProvider) Complete(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.prompt = prompt
	return m.response, m.err
}

func newTestAnalyzer(provider LLMProvider) *LLMJobAnalyzer {
	tmpl := template.Must(template.New("test").Parse("{{.Title}} @ {{.Company}}: {{.Description}}"))
	return NewLLMJobAnalyzer(provider, tmpl, nil)
}

func jobWithDesc(desc string) model.Job {
	return model.Job{
		ID:          "j1",
		Company:     "testco",
		Title:       "Software Engineer",
		Description: desc,
	}
}

func TestAnalyze_SkipsJobWithoutText(t *testing.T) {
	for _, desc := range []string{"", "   ", "<p> </p>"} {
		provider := &mockProvider{}
		result, err := newTestAnalyzer(provider).Analyze(context.Background(), jobWithDesc(desc))
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", desc, err)
		}
		if result.Insights != nil || provider.calls != 0 {
			t.Errorf("%q: expected no LLM call and nil insights", desc)
		}
	}
}

func TestAnalyze_PopulatesInsights(t *testing.T) {
	validJSON := `{
		"seniority": "senior",
		"years_exp": "3-5 years",
		"tech_stack": ["Go", "Kubernetes"],
		"key_points": ["Build distributed systems", "Join a small team", "High ownership role"]
	}`
	provider := &mockProvider{response: validJSON}

	result, err := newTestAnalyzer(provider).Analyze(context.Background(), jobWithDesc("<p>We use <b>Go</b> and Kubernetes</p>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Insights == nil {
		t.Fatal("expected non-nil Insights")
	}
	if result.Insights.Seniority != "senior" || result.Insights.YearsExp != "3-5 years" {
		t.Errorf("Insights = %+v", result.Insights)
	}
	if result.Insights.KeyPoints[2] != "High ownership role" {
		t.Errorf("KeyPoints[2] = %q", result.Insights.KeyPoints[2])
	}
	if want := "Software Engineer @ testco: We use Go and Kubernetes"; provider.prompt != want {
		t.Errorf("prompt = %q, want markup stripped %q", provider.prompt, want)
	}
}

func TestAnalyze_TruncatesLongDescriptions(t *testing.T) {
	provider := &mockProvider{response: `{"seniority":"mid","years_exp":"","tech_stack":[],"key_points":["a","b","c"]}`}
	long := strings.Repeat("x", maxPromptRunes+500)

	if _, err := newTestAnalyzer(provider).Analyze(context.Background(), jobWithDesc(long)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(provider.prompt, "x") != maxPromptRunes {
		t.Errorf("prompt carries %d description runes, want %d", strings.Count(provider.prompt, "x"), maxPromptRunes)
	}
}

func TestAnalyze_ProviderErrorReturnsOriginalJob(t *testing.T) {
	analyzer := newTestAnalyzer(&mockProvider{err: errors.New("network error")})

	job := jobWithDesc("some description")
	result, err := analyzer.Analyze(context.Background(), job)
	if err == nil {
		t.Fatal("expected error from provider failure")
	}
	if result.Insights != nil {
		t.Error("job should be returned unchanged")
	}
}

func TestParseInsights(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantSeniority string
		wantStack     int
		wantErr       bool
	}{
		{"clean", `{"seniority":"staff","years_exp":"8+ years","tech_stack":["Terraform"],"key_points":["a","b","c"]}`, "staff", 1, false},
		{"missing seniority", `{"years_exp":"","tech_stack":[],"key_points":[]}`, "unknown", 0, false},
		{"caps tech stack", `{"seniority":"mid","tech_stack":["Go","Rust","Java","Python","C++","Kafka","Redis","Postgres","gRPC"],"key_points":["a","b","c"]}`, "mid", 8, false},
		{"off-list seniority", `{"seniority":" Senior Staff ","tech_stack":[],"key_points":[]}`, "unknown", 0, false},
		{"upper-case seniority", `{"seniority":"SENIOR","tech_stack":[],"key_points":[]}`, "senior", 0, false},
		{"dedupes tech stack", `{"seniority":"mid","tech_stack":["Go"," go ","","Kafka"],"key_points":["a","b","c"]}`, "mid", 2, false},
		{"not json", "sure! here are the insights", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights, err := parseInsights(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if insights.Seniority != tt.wantSeniority || len(insights.TechStack) != tt.wantStack {
				t.Errorf("got seniority %q stack %d", insights.Seniority, len(insights.TechStack))
			}
		})
	}
}

func TestJobAnalysisTemplate_MissingCompany(t *testing.T) {
	var b strings.Builder
	if err := JobAnalysisTemplate.Execute(&b, PromptInput{Title: "SRE", Description: "On-call rotation"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(b.String(), "Company: (not stated)") {
		t.Errorf("expected placeholder for blank company:\n%s", b.String())
	}
}

func TestJobAnalysisTemplate_Renders(t *testing.T) {
	var b strings.Builder
	err := JobAnalysisTemplate.Execute(&b, struct{ Title, Company, Description string }{"SRE", "Acme", "On-call rotation"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(b.String(), "On-call rotation") || !strings.Contains(b.String(), "Acme") {
		t.Errorf("rendered prompt missing fields:\n%s", b.String())
	}
}
