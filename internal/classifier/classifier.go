// Package classifier derives categorical fields from free job text.
package classifier

import (
	"slices"

	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/taxonomy"
	"github.com/amishk599/jobenrich/internal/textnorm"
)

// Classification is the classifier output for one job.
type Classification struct {
	RoleFunction         model.RoleFunction
	LanguageRequirements []string // sorted, deduplicated, never nil
}

// Classifier matches job text against a fixed taxonomy. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	tax  *taxonomy.Taxonomy
	cues map[string]bool // cue words plus every single-word unambiguous language name
}

// New returns a classifier over tax. A nil tax uses the embedded default tables.
func New(tax *taxonomy.Taxonomy) *Classifier {
	if tax == nil {
		tax = taxonomy.Default()
	}
	cues := make(map[string]bool, len(tax.LanguageCues))
	for _, cue := range tax.LanguageCues {
		cues[cue] = true
	}
	for _, lang := range tax.Languages {
		for _, name := range lang.Names {
			if len(name) == 1 {
				cues[name[0]] = true
			}
		}
	}
	return &Classifier{tax: tax, cues: cues}
}

// Classify never fails: empty or unmatched input yields RoleOther and an
// empty language set.
func (c *Classifier) Classify(title, description string) Classification {
	titleTokens := textnorm.Normalize(title)
	descTokens := textnorm.Normalize(description)

	return Classification{
		RoleFunction:         c.roleFunction(titleTokens, descTokens),
		LanguageRequirements: c.languages(titleTokens, descTokens),
	}
}

// roleFunction checks the title first, then the description; within each,
// the first taxonomy entry with a matching keyword wins.
func (c *Classifier) roleFunction(titleTokens, descTokens []string) model.RoleFunction {
	for _, tokens := range [][]string{titleTokens, descTokens} {
		if len(tokens) == 0 {
			continue
		}
		for _, role := range c.tax.Roles {
			if matchesAny(tokens, role.Keywords) {
				return role.Function
			}
		}
	}
	return model.RoleOther
}

func (c *Classifier) languages(titleTokens, descTokens []string) []string {
	codes := []string{}
	for _, lang := range c.tax.Languages {
		for _, tokens := range [][]string{titleTokens, descTokens} {
			if matchesAny(tokens, lang.Names) || c.matchesWithCue(tokens, lang.Contextual) {
				codes = append(codes, lang.Code)
				break
			}
		}
	}
	slices.Sort(codes)
	return slices.Compact(codes)
}

// cueWindow is how many tokens either side of a contextual name are searched.
const cueWindow = 3

// matchesWithCue reports whether any of names occurs with a cue word within
// cueWindow tokens. "Polish the onboarding flow" has none; "English and
// Polish" and "fluent in Polish" do.
func (c *Classifier) matchesWithCue(tokens []string, names [][]string) bool {
	for _, name := range names {
		for _, i := range textnorm.PhraseIndexes(tokens, name) {
			end := i + len(name)
			for j := max(0, i-cueWindow); j < min(len(tokens), end+cueWindow); j++ {
				if (j < i || j >= end) && c.cues[tokens[j]] {
					return true
				}
			}
		}
	}
	return false
}

func matchesAny(tokens []string, keywords [][]string) bool {
	for _, kw := range keywords {
		if len(kw) == 1 {
			if slices.Contains(tokens, kw[0]) {
				return true
			}
			continue
		}
		if textnorm.ContainsPhrase(tokens, kw) {
			return true
		}
	}
	return false
}
