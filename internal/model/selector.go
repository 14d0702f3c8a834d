package model

import (
	"fmt"
	"strings"
)

// Selector identifies the job subset of one run. Exactly one of All, ID,
// Company or Provider must be set; Provider may also narrow a Company.
type Selector struct {
	All      bool   `yaml:"all"`
	ID       string `yaml:"id"`
	Company  string `yaml:"company"`
	Provider string `yaml:"provider"`
	Limit    int    `yaml:"limit"` // 0 = unlimited
}

// Validate rejects empty and ambiguous selectors.
func (s Selector) Validate() error {
	modes := 0
	if s.All {
		modes++
	}
	if s.ID != "" {
		modes++
	}
	if s.Company != "" {
		modes++
	}
	if s.Provider != "" && s.Company == "" {
		modes++
	}
	if modes == 0 {
		return fmt.Errorf("%w: one of all, id, company or provider is required", ErrInvalidSelector)
	}
	if modes > 1 {
		return fmt.Errorf("%w: %s selects more than one job set", ErrInvalidSelector, s)
	}
	if s.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidSelector)
	}
	return nil
}

// String renders the selector the way it is stored on EnrichmentTask.
func (s Selector) String() string {
	var parts []string
	switch {
	case s.All:
		parts = append(parts, "all")
	case s.ID != "":
		parts = append(parts, "id="+s.ID)
	}
	if s.Company != "" {
		parts = append(parts, "company="+s.Company)
	}
	if s.Provider != "" {
		parts = append(parts, "provider="+s.Provider)
	}
	if s.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", s.Limit))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
