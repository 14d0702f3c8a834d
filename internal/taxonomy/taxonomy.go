// Package taxonomy holds the static role and language tables used by the
// classifier. Tables are loaded once at startup and never mutated.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/textnorm"
)

//go:embed taxonomy.yaml
var defaultTaxonomyRaw []byte

// Role is one taxonomy entry with its keywords pre-tokenised.
type Role struct {
	Function model.RoleFunction
	Keywords [][]string
}

// Language maps spelled-out names to an ISO 639-1 code. Contextual names
// double as ordinary words ("polish") and only count next to a language cue.
type Language struct {
	Code       string
	Names      [][]string
	Contextual [][]string
}

// Taxonomy is the immutable, compiled form of the tables.
type Taxonomy struct {
	Roles     []Role // priority order
	Languages []Language
	// LanguageCues are single tokens ("fluent", "speaking") that confirm a
	// contextual language name nearby.
	LanguageCues []string
}

type rawTaxonomy struct {
	Roles []struct {
		Function string   `yaml:"function"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"roles"`
	LanguageCues []string `yaml:"language_cues"`
	Languages    []struct {
		Code       string   `yaml:"code"`
		Names      []string `yaml:"names"`
		Contextual []string `yaml:"contextual"`
	} `yaml:"languages"`
}

// Default returns the embedded tables.
func Default() *Taxonomy {
	t, err := Parse(defaultTaxonomyRaw)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy is invalid: %v", err))
	}
	return t
}

// Load reads tables from path, or returns Default when path is empty.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML taxonomy tables.
func Parse(data []byte) (*Taxonomy, error) {
	var raw rawTaxonomy
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	t := &Taxonomy{}
	seenRoles := make(map[string]bool)
	for i, r := range raw.Roles {
		if r.Function == "" {
			return nil, fmt.Errorf("roles[%d]: function is required", i)
		}
		if model.RoleFunction(r.Function) == model.RoleOther {
			return nil, fmt.Errorf("roles[%d]: %q is the fallback and cannot be listed", i, r.Function)
		}
		if seenRoles[r.Function] {
			return nil, fmt.Errorf("roles[%d]: duplicate function %q", i, r.Function)
		}
		seenRoles[r.Function] = true

		role := Role{Function: model.RoleFunction(r.Function)}
		for _, kw := range r.Keywords {
			if toks := textnorm.Tokens(kw); len(toks) > 0 {
				role.Keywords = append(role.Keywords, toks)
			}
		}
		if len(role.Keywords) == 0 {
			return nil, fmt.Errorf("roles[%d] (%s): at least one keyword is required", i, r.Function)
		}
		t.Roles = append(t.Roles, role)
	}

	seenCodes := make(map[string]bool)
	for i, l := range raw.Languages {
		if len(l.Code) != 2 {
			return nil, fmt.Errorf("languages[%d]: code %q must be a two-letter ISO 639-1 code", i, l.Code)
		}
		if seenCodes[l.Code] {
			return nil, fmt.Errorf("languages[%d]: duplicate code %q", i, l.Code)
		}
		seenCodes[l.Code] = true

		lang := Language{Code: l.Code, Names: tokenizeAll(l.Names), Contextual: tokenizeAll(l.Contextual)}
		if len(lang.Names) == 0 && len(lang.Contextual) == 0 {
			return nil, fmt.Errorf("languages[%d] (%s): at least one name is required", i, l.Code)
		}
		if len(lang.Contextual) > 0 && len(raw.LanguageCues) == 0 {
			return nil, fmt.Errorf("languages[%d] (%s): contextual names need language_cues", i, l.Code)
		}
		t.Languages = append(t.Languages, lang)
	}

	for i, cue := range raw.LanguageCues {
		toks := textnorm.Tokens(cue)
		if len(toks) != 1 {
			return nil, fmt.Errorf("language_cues[%d]: %q must be a single word", i, cue)
		}
		t.LanguageCues = append(t.LanguageCues, toks[0])
	}

	return t, nil
}

func tokenizeAll(phrases []string) [][]string {
	var out [][]string
	for _, p := range phrases {
		if toks := textnorm.Tokens(p); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}
