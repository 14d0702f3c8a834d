package scorer

import (
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobenrich/internal/model"
)

func timePtr(t time.Time) *time.Time { return &t }

func fullJob() model.Job {
	return model.Job{
		ID:                   "j1",
		Company:              "Acme",
		Title:                "Senior Software Engineer",
		Description:          strings.Repeat("Build reliable backend services. ", 10),
		Location:             "Berlin",
		PostedAt:             timePtr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		RoleFunction:         model.RoleEngineering,
		LanguageRequirements: []string{"de", "en"},
	}
}

func TestRubricWeightsSumTo100(t *testing.T) {
	total := 0
	for _, r := range rubric {
		total += r.weight
	}
	if total != 100 {
		t.Fatalf("rubric weights sum to %d, want 100", total)
	}
}

func TestScore_FullJobIs100(t *testing.T) {
	if got := New(0).Score(fullJob()); got != 100 {
		t.Errorf("Score = %d, want 100", got)
	}
}

func TestScore_EmptyJobIsZero(t *testing.T) {
	if got := New(0).Score(model.Job{}); got != 0 {
		t.Errorf("Score = %d, want 0", got)
	}
}

func TestScore_EmptyDescriptionScoresLower(t *testing.T) {
	s := New(0)
	full := fullJob()
	sparse := full
	sparse.Description = ""
	sparse.RoleFunction = model.RoleOther
	sparse.LanguageRequirements = []string{}
	if s.Score(sparse) >= s.Score(full) {
		t.Errorf("sparse score %d should be below full score %d", s.Score(sparse), s.Score(full))
	}
}

func TestScore_MarkupDoesNotCountTowardsLength(t *testing.T) {
	s := New(20)
	j := model.Job{Description: "<div><span></span><br/><p>short</p></div>"}
	for _, c := range s.Breakdown(j) {
		if c.Name == "description" && c.Met {
			t.Error("markup-only padding should not satisfy the description criterion")
		}
	}
}

// Adding any single field to a job never lowers the score.
func TestScore_Monotonic(t *testing.T) {
	s := New(0)
	full := fullJob()

	additions := []func(j *model.Job){
		func(j *model.Job) { j.Title = full.Title },
		func(j *model.Job) { j.Description = full.Description },
		func(j *model.Job) { j.Company = full.Company },
		func(j *model.Job) { j.Location = full.Location },
		func(j *model.Job) { j.PostedAt = full.PostedAt },
		func(j *model.Job) { j.RoleFunction = full.RoleFunction },
		func(j *model.Job) { j.LanguageRequirements = full.LanguageRequirements },
	}

	// Walk every subset of additions and check each one-step extension.
	for mask := 0; mask < 1<<len(additions); mask++ {
		var base model.Job
		for i, add := range additions {
			if mask&(1<<i) != 0 {
				add(&base)
			}
		}
		before := s.Score(base)
		for i, add := range additions {
			if mask&(1<<i) != 0 {
				continue
			}
			next := base
			add(&next)
			if after := s.Score(next); after < before {
				t.Fatalf("mask %b + addition %d: score dropped %d -> %d", mask, i, before, after)
			}
		}
	}
}

func TestBreakdownMatchesScore(t *testing.T) {
	s := New(0)
	j := fullJob()
	j.Location = ""
	sum := 0
	for _, c := range s.Breakdown(j) {
		if c.Met {
			sum += c.Weight
		}
	}
	if sum != s.Score(j) {
		t.Errorf("breakdown sum %d != score %d", sum, s.Score(j))
	}
	if sum != 90 {
		t.Errorf("score without location = %d, want 90", sum)
	}
}
