package browse

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobenrich/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// CompanyChoice is one picker row. An empty Name stands for every company.
type CompanyChoice struct {
	Name     string
	Jobs     int
	Enriched int
}

func (c CompanyChoice) label() string {
	name := c.Name
	if name == "" {
		name = "All companies"
	}
	return fmt.Sprintf("%s (%d jobs, %d enriched)", name, c.Jobs, c.Enriched)
}

// CompanyChoices groups jobs by company, case-insensitively, sorted by name.
// The first entry covers every company.
func CompanyChoices(jobs []model.Job) []CompanyChoice {
	all := CompanyChoice{}
	byKey := make(map[string]*CompanyChoice)
	var keys []string
	for _, j := range jobs {
		key := strings.ToLower(strings.TrimSpace(j.Company))
		c, ok := byKey[key]
		if !ok {
			name := j.Company
			if key == "" {
				name = "(no company)"
			}
			c = &CompanyChoice{Name: name}
			byKey[key] = c
			keys = append(keys, key)
		}
		c.Jobs++
		all.Jobs++
		if j.EnrichmentQuality != nil {
			c.Enriched++
			all.Enriched++
		}
	}
	sort.Strings(keys)

	choices := []CompanyChoice{all}
	for _, k := range keys {
		choices = append(choices, *byKey[k])
	}
	return choices
}

// FilterCompany returns the jobs belonging to choice.
func FilterCompany(jobs []model.Job, choice CompanyChoice) []model.Job {
	if choice.Name == "" {
		return append([]model.Job(nil), jobs...)
	}
	var out []model.Job
	for _, j := range jobs {
		name := j.Company
		if strings.TrimSpace(name) == "" {
			name = "(no company)"
		}
		if strings.EqualFold(name, choice.Name) {
			out = append(out, j)
		}
	}
	return out
}

type pickerModel struct {
	choices []CompanyChoice
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitleStyle.Render("Enrichment Browser · Select a company"))
	b.WriteByte('\n')

	for i, c := range m.choices {
		if i == m.cursor {
			b.WriteString(pickerSelectedStyle.Render("> " + c.label()))
		} else {
			b.WriteString(pickerItemStyle.Render(c.label()))
		}
		b.WriteByte('\n')
	}

	b.WriteString(pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit"))
	return b.String()
}

// RunCompanyPicker shows an interactive company selector.
// Returns the index of the chosen entry, or -1 if the user quit.
func RunCompanyPicker(choices []CompanyChoice) (int, error) {
	m := pickerModel{
		choices: choices,
		chosen:  -1,
	}

	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return -1, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
