package browse

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/scorer"
)

func intPtr(v int) *int { return &v }

func sampleJobs() []model.Job {
	return []model.Job{
		{ID: "a", Company: "Acme", Title: "Backend Engineer", EnrichmentQuality: intPtr(90)},
		{ID: "b", Company: "acme", Title: "Sales Lead", EnrichmentQuality: intPtr(40)},
		{ID: "c", Company: "Beta", Title: "Designer"},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m browseModel, msg tea.Msg) (browseModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(browseModel), cmd
}

func TestCompanyChoices(t *testing.T) {
	choices := CompanyChoices(sampleJobs())

	if len(choices) != 3 {
		t.Fatalf("choices = %+v, want all + 2 companies", choices)
	}
	if choices[0].Name != "" || choices[0].Jobs != 3 || choices[0].Enriched != 2 {
		t.Errorf("all entry = %+v", choices[0])
	}
	if !strings.EqualFold(choices[1].Name, "acme") || choices[1].Jobs != 2 {
		t.Errorf("acme entry = %+v (company grouping is case-insensitive)", choices[1])
	}
	if got := FilterCompany(sampleJobs(), choices[1]); len(got) != 2 {
		t.Errorf("FilterCompany(acme) = %d jobs, want 2", len(got))
	}
	if got := FilterCompany(sampleJobs(), choices[0]); len(got) != 3 {
		t.Errorf("FilterCompany(all) = %d jobs, want 3", len(got))
	}
}

func TestNewBrowseModel_SplitsByThreshold(t *testing.T) {
	m := newBrowseModel(sampleJobs(), 60, scorer.New(0), nil)

	if len(m.allJobs) != 3 || len(m.weakJobs) != 2 {
		t.Fatalf("all=%d weak=%d, want 3/2", len(m.allJobs), len(m.weakJobs))
	}
	// Never-enriched first, then ascending quality.
	if m.allJobs[0].ID != "c" || m.allJobs[1].ID != "b" || m.allJobs[2].ID != "a" {
		t.Errorf("order = %s %s %s", m.allJobs[0].ID, m.allJobs[1].ID, m.allJobs[2].ID)
	}
}

func TestBrowseModel_DetailShowsBreakdown(t *testing.T) {
	m := newBrowseModel(sampleJobs(), 60, scorer.New(0), nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = update(t, m, key("tab"))
	m, _ = update(t, m, key("enter"))

	if m.view != viewDetail || m.detailJob.ID != "c" {
		t.Fatalf("expected detail of the first weak job, got view=%d job=%q", m.view, m.detailJob.ID)
	}
	out := m.renderDetail()
	for _, want := range []string{"Score Breakdown", "title", "never enriched"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q", want)
		}
	}

	m, _ = update(t, m, key("esc"))
	if m.view != viewList {
		t.Error("esc should return to the list")
	}
}

func TestBrowseModel_ReenrichUpdatesLists(t *testing.T) {
	var gotID string
	reenrich := func(_ context.Context, id string) (model.Job, model.Summary, error) {
		gotID = id
		return model.Job{ID: id, Company: "Beta", Title: "Designer", RoleFunction: model.RoleDesign, EnrichmentQuality: intPtr(75)},
			model.Summary{Processed: 1, Succeeded: 1}, nil
	}
	m := newBrowseModel(sampleJobs(), 60, scorer.New(0), reenrich)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = update(t, m, key("enter"))

	m, cmd := update(t, m, key("e"))
	if !m.reenrichLoading || cmd == nil {
		t.Fatal("'e' should start a re-enrichment")
	}
	m, _ = update(t, m, cmd())

	if gotID != "c" {
		t.Errorf("re-enriched %q, want c", gotID)
	}
	if m.reenrichLoading || m.reenrichError != "" {
		t.Errorf("loading=%v err=%q", m.reenrichLoading, m.reenrichError)
	}
	if len(m.weakJobs) != 1 || m.weakJobs[0].ID != "b" {
		t.Errorf("weak pane should drop the improved job, got %+v", m.weakJobs)
	}
	if m.detailJob.RoleFunction != model.RoleDesign {
		t.Errorf("detail not refreshed: %+v", m.detailJob)
	}
}

func TestBrowseModel_ReenrichItemFailure(t *testing.T) {
	reenrich := func(_ context.Context, id string) (model.Job, model.Summary, error) {
		return model.Job{}, model.Summary{Failed: 1, Errors: []model.ItemError{{JobID: id, Message: "job locked by another run"}}}, nil
	}
	m := newBrowseModel(sampleJobs(), 60, scorer.New(0), reenrich)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = update(t, m, key("enter"))
	m, cmd := update(t, m, key("e"))
	m, _ = update(t, m, cmd())

	if !strings.Contains(m.reenrichError, "locked") {
		t.Errorf("reenrichError = %q", m.reenrichError)
	}
	if len(m.weakJobs) != 2 {
		t.Error("lists must not change on failure")
	}

	m.reenrich = func(context.Context, string) (model.Job, model.Summary, error) {
		return model.Job{}, model.Summary{}, errors.New("store down")
	}
	m, cmd = update(t, m, key("e"))
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.reenrichError, "store down") {
		t.Errorf("reenrichError = %q", m.reenrichError)
	}
}

func TestRenderBreakdown(t *testing.T) {
	out := renderBreakdown([]scorer.Criterion{
		{Name: "title", Weight: 15, Met: true},
		{Name: "company", Weight: 10, Met: false},
	})
	if !strings.Contains(out, "score") || !strings.Contains(out, " 15\n") {
		t.Errorf("unexpected breakdown:\n%s", out)
	}
}
