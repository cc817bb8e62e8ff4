package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/quad/internal/logtail"
)

// logState holds all log-related state.
type logState struct {
	lines    []string
	entries  []logtail.Entry // lines that pass the level filter
	level    logtail.Severity
	follow   bool
	lastRead time.Time
	err      error

	// Search
	searching   bool
	searchInput textinput.Model
	query       string
	searchRe    *regexp.Regexp
	matches     []int // entry indices that match
	matchIdx    int

	viewport viewport.Model
}

type logLinesMsg struct {
	lines []string
	err   error
	at    time.Time
}

func newLogState() logState {
	ti := textinput.New()
	ti.Placeholder = "Search logs..."
	ti.CharLimit = 100
	return logState{
		follow:      true,
		searchInput: ti,
		viewport:    viewport.New(0, 0),
	}
}

func readLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return logLinesMsg{at: time.Now()}
		}
		lines, err := logtail.Read(path, LogTailLines)
		return logLinesMsg{lines: lines, err: err, at: time.Now()}
	}
}

func (m *Model) resizeLogViewport() {
	m.logs.viewport.Width = max(0, m.width-2)
	m.logs.viewport.Height = max(0, m.contentHeight()-3) // border and status line
	m.refreshLogViewport()
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	m.logs.lastRead = msg.at
	m.logs.err = msg.err
	if msg.err == nil {
		m.logs.lines = msg.lines
	}
	m.applyLogFilter()
}

// applyLogFilter re-derives entries and search matches from the raw lines.
func (m *Model) applyLogFilter() {
	m.logs.entries = logtail.Filter(m.logs.lines, m.logs.level)
	m.logs.matches = nil
	if m.logs.searchRe != nil {
		for i, e := range m.logs.entries {
			if m.logs.searchRe.MatchString(e.Raw) {
				m.logs.matches = append(m.logs.matches, i)
			}
		}
	}
	if m.logs.matchIdx >= len(m.logs.matches) {
		m.logs.matchIdx = 0
	}
	m.refreshLogViewport()
}

func (m *Model) refreshLogViewport() {
	m.logs.viewport.SetContent(m.renderLogContent())
	if m.logs.follow {
		m.logs.viewport.GotoBottom()
	}
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	if m.logs.err != nil {
		return styles.DangerText.Render("cannot read log: " + m.logs.err.Error())
	}
	if len(m.logs.entries) == 0 {
		if m.logPath == "" {
			return styles.MutedText.Render("Logging to stderr; no log file to show")
		}
		return styles.MutedText.Render("No log entries in " + m.logPath)
	}

	matchSet := make(map[int]bool, len(m.logs.matches))
	for _, idx := range m.logs.matches {
		matchSet[idx] = true
	}
	active := -1
	if len(m.logs.matches) > 0 {
		active = m.logs.matches[m.logs.matchIdx]
	}

	var b strings.Builder
	for i, e := range m.logs.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		if i == active {
			b.WriteString(lipgloss.NewStyle().
				Background(lipgloss.Color(m.theme.Warning)).
				Foreground(lipgloss.Color(m.theme.Background)).
				Render(e.Raw))
			continue
		}
		if e.Severity == logtail.Unknown {
			b.WriteString(styles.FaintText.Render(e.Raw))
			continue
		}
		b.WriteString(m.levelStyle(e.Severity, styles).Bold(true).Render(padRight(e.Severity.String(), 6)))
		b.WriteString(styles.FaintText.Render(e.Stamp + " "))
		b.WriteString(styles.MutedText.Render(padRight(e.Source, 22)))
		if matchSet[i] {
			b.WriteString(styles.AccentText.Render(e.Message))
		} else {
			b.WriteString(styles.Text.Render(e.Message))
		}
	}
	return b.String()
}

func (m Model) levelStyle(s logtail.Severity, styles Styles) lipgloss.Style {
	switch s {
	case logtail.Error, logtail.Fatal:
		return styles.DangerText
	case logtail.Warning:
		return styles.WarningText
	default:
		return styles.InfoText
	}
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	title := "Log"
	if m.logs.level > logtail.Unknown {
		title = fmt.Sprintf("Log (%s and above)", m.logs.level)
	}
	box := m.renderBox(title, m.logs.viewport.View(), m.width, m.contentHeight()-1, true)
	return box + "\n" + m.renderLogStatus()
}

func (m Model) renderLogStatus() string {
	styles := m.theme.Styles()

	if m.logs.searching {
		return styles.AccentText.Render("/") + m.logs.searchInput.View()
	}
	if m.logs.searchRe != nil {
		if len(m.logs.matches) == 0 {
			return styles.DangerText.Render("Pattern not found: " + m.logs.query)
		}
		return styles.AccentText.Render("/"+m.logs.query) +
			styles.FaintText.Render(" - ") +
			styles.WarningText.Render(fmt.Sprintf("%d/%d", m.logs.matchIdx+1, len(m.logs.matches))) +
			styles.FaintText.Render(" - n/N to move, esc to clear")
	}

	status := fmt.Sprintf("%d lines  auto-tail %s", len(m.logs.entries), ternary(m.logs.follow, "on", "off"))
	if m.logPath != "" {
		status += "  " + truncate(m.logPath, 60)
	}
	return styles.FaintText.Render(status)
}

var levelCycle = []logtail.Severity{logtail.Unknown, logtail.Info, logtail.Warning, logtail.Error}

// handleLogsKey processes keyboard input for the logs tab.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logs.follow = !m.logs.follow
		if m.logs.follow {
			m.logs.viewport.GotoBottom()
			return m, readLogsCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.CycleLevel):
		next := levelCycle[0]
		for i, l := range levelCycle {
			if l == m.logs.level {
				next = levelCycle[(i+1)%len(levelCycle)]
				break
			}
		}
		m.logs.level = next
		m.applyLogFilter()
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.logs.searching = true
		m.logs.searchInput.SetValue(m.logs.query)
		m.logs.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.NextMatch):
		m.stepMatch(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevMatch):
		m.stepMatch(-1)
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.clearSearch()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.logs.follow = false
		m.logs.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.logs.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.logs.viewport, cmd = m.logs.viewport.Update(msg)
	if !m.logs.viewport.AtBottom() {
		m.logs.follow = false
	}
	return m, cmd
}

// handleSearchKey feeds keys to the search input until enter or esc.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.logs.searching = false
		m.logs.searchInput.Blur()
		m.setSearch(m.logs.searchInput.Value())
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.logs.searching = false
		m.logs.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.logs.searchInput, cmd = m.logs.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) setSearch(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		m.clearSearch()
		return
	}
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	}
	m.logs.query = query
	m.logs.searchRe = re
	m.logs.matchIdx = 0
	m.logs.follow = false
	m.applyLogFilter()
	m.scrollToMatch()
}

func (m *Model) clearSearch() {
	m.logs.query = ""
	m.logs.searchRe = nil
	m.logs.matches = nil
	m.logs.matchIdx = 0
	m.refreshLogViewport()
}

func (m *Model) stepMatch(delta int) {
	n := len(m.logs.matches)
	if n == 0 {
		return
	}
	m.logs.matchIdx = (m.logs.matchIdx + delta + n) % n
	m.logs.follow = false
	m.refreshLogViewport()
	m.scrollToMatch()
}

func (m *Model) scrollToMatch() {
	if len(m.logs.matches) == 0 {
		return
	}
	line := m.logs.matches[m.logs.matchIdx]
	m.logs.viewport.SetYOffset(max(0, line-m.logs.viewport.Height/2))
}
