package browse

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/scorer"
	"github.com/amishk599/jobenrich/internal/textnorm"
)

// Lines per job item in the list view (title + subtitle + blank separator).
const jobItemHeight = 3

// ReenrichFunc runs the enrichment pipeline for one job and returns the
// stored result.
type ReenrichFunc func(ctx context.Context, id string) (model.Job, model.Summary, error)

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle   = headerStyle.Foreground(lipgloss.Color("39"))
	inactiveHeaderStyle = headerStyle.Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	jobTitleStyle    = lipgloss.NewStyle().Bold(true)
	jobSubtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	selectedJobTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedJobSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(18)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	bodyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	metStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	missedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// reenrichedMsg is sent when an async re-enrichment completes.
type reenrichedMsg struct {
	job     model.Job
	summary model.Summary
	err     error
}

type browseModel struct {
	allJobs       []model.Job
	weakJobs      []model.Job // quality below threshold or never enriched
	threshold     int
	scorer        *scorer.Scorer
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=left, 1=right
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	view            viewState
	detailJob       model.Job
	detailViewport  viewport.Model
	showDescription bool

	reenrich        ReenrichFunc
	reenrichLoading bool
	reenrichResult  string
	reenrichError   string

	wantQuit bool
}

func newBrowseModel(jobs []model.Job, threshold int, sc *scorer.Scorer, reenrich ReenrichFunc) browseModel {
	all := append([]model.Job(nil), jobs...)
	sortJobsByQuality(all)
	return browseModel{
		allJobs:   all,
		weakJobs:  belowThreshold(all, threshold),
		threshold: threshold,
		scorer:    sc,
		reenrich:  reenrich,
	}
}

// belowThreshold keeps jobs scoring under threshold, including never-enriched ones.
func belowThreshold(jobs []model.Job, threshold int) []model.Job {
	var out []model.Job
	for _, j := range jobs {
		if j.EnrichmentQuality == nil || *j.EnrichmentQuality < threshold {
			out = append(out, j)
		}
	}
	return out
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case reenrichedMsg:
		m.reenrichLoading = false
		switch {
		case msg.err != nil:
			m.reenrichError = fmt.Sprintf("re-enrich failed: %v", msg.err)
		case len(msg.summary.Errors) > 0:
			m.reenrichError = "re-enrich failed: " + msg.summary.Errors[0].Message
		default:
			m.reenrichError = ""
			m.reenrichResult = "re-enriched"
			if msg.summary.Unchanged > 0 {
				m.reenrichResult = "already up to date"
			}
			m.detailJob = msg.job
			m.replaceJob(msg.job)
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		m.recalcContent()
		return m, nil
	case "o":
		if m.detailJob.URL != "" {
			openURL(m.detailJob.URL)
		}
		return m, nil
	case "r":
		if m.detailJob.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	case "e":
		if m.reenrich != nil && !m.reenrichLoading {
			m.reenrichLoading = true
			m.reenrichError = ""
			m.reenrichResult = ""
			m.detailViewport.SetContent(m.renderDetail())
			return m, m.reenrichCmd(m.detailJob.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m browseModel) reenrichCmd(id string) tea.Cmd {
	reenrich := m.reenrich
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		job, summary, err := reenrich(ctx, id)
		return reenrichedMsg{job: job, summary: summary, err: err}
	}
}

func (m *browseModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.allJobs)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.weakJobs)-1, 0))
	}
}

func (m *browseModel) ensureCursorVisible() {
	vp, cursor := &m.leftViewport, m.leftCursor
	if m.activePane == 1 {
		vp, cursor = &m.rightViewport, m.rightCursor
	}

	cursorTop := cursor * jobItemHeight
	cursorBottom := cursorTop + jobItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m browseModel) openDetailView() (tea.Model, tea.Cmd) {
	jobs, cursor := m.allJobs, m.leftCursor
	if m.activePane == 1 {
		jobs, cursor = m.weakJobs, m.rightCursor
	}
	if len(jobs) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailJob = jobs[cursor]
	m.showDescription = false
	m.reenrichError = ""
	m.reenrichResult = ""
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

// replaceJob swaps in the updated record and re-derives the weak pane. The
// job stays at its position in the left pane so the cursor does not jump.
func (m *browseModel) replaceJob(job model.Job) {
	for i := range m.allJobs {
		if m.allJobs[i].ID == job.ID {
			m.allJobs[i] = job
			break
		}
	}
	m.weakJobs = belowThreshold(m.allJobs, m.threshold)
	m.rightCursor = clamp(m.rightCursor, 0, max(len(m.weakJobs)-1, 0))
}

func (m *browseModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *browseModel) recalcContent() {
	m.leftViewport.SetContent(renderJobs(m.allJobs, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderJobs(m.weakJobs, m.rightCursor, m.activePane == 1))
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browseModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" All Jobs (%d)", len(m.allJobs))
	rightHeader := fmt.Sprintf(" Quality < %d (%d)", m.threshold, len(m.weakJobs))

	leftHeaderStyle, rightHeaderStyle := activeHeaderStyle, inactiveHeaderStyle
	leftBorder, rightBorder := activeBorderStyle, inactiveBorderStyle
	if m.activePane == 1 {
		leftHeaderStyle, rightHeaderStyle = inactiveHeaderStyle, activeHeaderStyle
		leftBorder, rightBorder = inactiveBorderStyle, activeBorderStyle
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderStyle.Render(leftHeader)),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderStyle.Render(rightHeader)),
	)
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		leftBorder.Width(paneWidth).Render(m.leftViewport.View()),
		" ",
		rightBorder.Width(paneWidth).Render(m.rightViewport.View()),
	)

	statusText := fmt.Sprintf(" %d total | %d below %d | avg quality %s    ←/→/Tab switch  ↑/↓ cursor  Enter detail  Esc back  q quit",
		len(m.allJobs), len(m.weakJobs), m.threshold, averageQuality(m.allJobs))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m browseModel) viewDetail() string {
	title := detailTitleStyle.Render("Job Details")
	if m.reenrichLoading {
		title += "  (re-enriching...)"
	}

	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())

	keys := []string{"o open URL"}
	if m.detailJob.Description != "" {
		keys = append(keys, "r desc")
	}
	if m.reenrich != nil {
		keys = append(keys, "e re-enrich")
	}
	keys = append(keys, "esc/backspace back", "↑/↓ scroll", "q quit")
	statusBar := statusBarStyle.Width(m.width).Render(" " + strings.Join(keys, "  "))

	return title + "\n" + content + "\n" + statusBar
}

func (m browseModel) renderDetail() string {
	j := m.detailJob
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	addField("Title", j.Title)
	addField("Company", j.Company)
	addField("Location", j.Location)
	addField("Job ID", j.ID)
	addField("Provider", j.Provider)
	if j.PostedAt != nil {
		addField("Posted At", j.PostedAt.Local().Format("2006-01-02 15:04 MST"))
	}
	addField("Job URL", j.URL)

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len([]rune(label)), 3))
		return dividerStyle.Render(label + fill)
	}

	b.WriteByte('\n')
	b.WriteString(divider("── Enrichment ") + "\n\n")
	if j.LastEnrichedAt == nil {
		b.WriteString(hintStyle.Render("  never enriched") + "\n")
	} else {
		addField("Role Function", string(j.RoleFunction))
		langs := "none"
		if len(j.LanguageRequirements) > 0 {
			langs = strings.Join(j.LanguageRequirements, ", ")
		}
		addField("Languages", langs)
		if j.EnrichmentQuality != nil {
			addField("Quality", fmt.Sprintf("%d / 100", *j.EnrichmentQuality))
		}
		addField("Schema Version", fmt.Sprintf("v%d", j.EnrichmentVersion))
		addField("Enriched At", j.LastEnrichedAt.Local().Format("2006-01-02 15:04 MST"))
	}

	if m.scorer != nil {
		b.WriteByte('\n')
		b.WriteString(divider("── Score Breakdown ") + "\n\n")
		b.WriteString(renderBreakdown(m.scorer.Breakdown(j)))
	}

	if m.reenrichError != "" {
		b.WriteByte('\n')
		b.WriteString(warnStyle.Render("⚠ "+m.reenrichError) + "\n")
	} else if m.reenrichResult != "" {
		b.WriteByte('\n')
		b.WriteString(metStyle.Render("✓ "+m.reenrichResult) + "\n")
	}

	if ins := j.Insights; ins != nil {
		b.WriteByte('\n')
		b.WriteString(divider("── AI Insights ") + "\n\n")
		addField("Seniority", ins.Seniority)
		addField("Experience", ins.YearsExp)
		if len(ins.TechStack) > 0 {
			addField("Stack", strings.Join(ins.TechStack, ", "))
		}
		for _, pt := range ins.KeyPoints {
			if pt != "" {
				b.WriteString("  • " + pt + "\n")
			}
		}
	}

	if j.Description != "" {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Job Description ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(textnorm.PlainText(j.Description), wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read job description") + "\n")
		}
	}

	return b.String()
}

func renderBreakdown(criteria []scorer.Criterion) string {
	var b strings.Builder
	total := 0
	for _, c := range criteria {
		mark, st := "✗", missedStyle
		if c.Met {
			mark, st = "✓", metStyle
			total += c.Weight
		}
		fmt.Fprintf(&b, "  %s %-28s %3d\n", st.Render(mark), c.Name, c.Weight)
	}
	fmt.Fprintf(&b, "    %-28s %3d\n", "score", total)
	return b.String()
}

func renderJobs(jobs []model.Job, cursor int, isActive bool) string {
	if len(jobs) == 0 {
		return "  (no jobs)"
	}

	var b strings.Builder
	for i, j := range jobs {
		titleSt, subtitleSt, prefix := jobTitleStyle, jobSubtitleStyle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedJobTitleStyle, selectedJobSubtitleStyle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(j.Title))
		b.WriteByte('\n')

		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", qualityLabel(j), roleLabel(j), j.Company)))
		b.WriteByte('\n')

		if i < len(jobs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func qualityLabel(j model.Job) string {
	if j.EnrichmentQuality == nil {
		return "q –"
	}
	return fmt.Sprintf("q %d", *j.EnrichmentQuality)
}

func roleLabel(j model.Job) string {
	if j.RoleFunction == "" {
		return "unclassified"
	}
	return string(j.RoleFunction)
}

func averageQuality(jobs []model.Job) string {
	sum, n := 0, 0
	for _, j := range jobs {
		if j.EnrichmentQuality != nil {
			sum += *j.EnrichmentQuality
			n++
		}
	}
	if n == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d", sum/n)
}

// sortJobsByQuality orders by ascending quality with never-enriched jobs first,
// then by id for a stable view.
func sortJobsByQuality(jobs []model.Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		qa, qb := -1, -1
		if jobs[a].EnrichmentQuality != nil {
			qa = *jobs[a].EnrichmentQuality
		}
		if jobs[b].EnrichmentQuality != nil {
			qb = *jobs[b].EnrichmentQuality
		}
		if qa != qb {
			return qa < qb
		}
		return jobs[a].ID < jobs[b].ID
	})
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunBrowseTUI launches the split-pane browser: every job on the left, jobs
// scoring below threshold on the right. reenrich may be nil to disable 'e'.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func RunBrowseTUI(jobs []model.Job, threshold int, sc *scorer.Scorer, reenrich ReenrichFunc) (bool, error) {
	m := newBrowseModel(jobs, threshold, sc, reenrich)

	result, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	return result.(browseModel).wantQuit, nil
}
