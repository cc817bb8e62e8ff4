package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/optimistic"
	"github.com/five82/quad/internal/prefs"
	"github.com/five82/quad/internal/push"
	"github.com/five82/quad/internal/state"
)

// Tab is one dashboard page.
type Tab int

const (
	TabGrades Tab = iota
	TabBuses
	TabLibrary
	TabPlaces
	TabThesis
	TabLogs
	tabCount
)

var tabNames = [tabCount]string{"grades", "buses", "library", "places", "thesis", "logs"}

func (t Tab) String() string {
	if t < 0 || t >= tabCount {
		return ""
	}
	return tabNames[t]
}

// ParseTab maps a tab name onto a Tab. Unknown names select the grades tab.
func ParseTab(name string) Tab {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range tabNames {
		if n == name {
			return Tab(i)
		}
	}
	return TabGrades
}

// Options configures the UI.
type Options struct {
	Context    context.Context
	Store      *state.Store
	Controller *optimistic.Controller
	Push       *push.Channel
	Prefs      prefs.Prefs
	PrefsPath  string
	LogPath    string

	// OnSettle subscribes to settled mutations; the UI turns them into
	// notifications. It may be nil.
	OnSettle func(func(optimistic.Result)) (unsubscribe func())

	PollTick time.Duration
	Now      func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	store     *state.Store
	ctrl      *optimistic.Controller
	push      *push.Channel
	prefs     prefs.Prefs
	prefsPath string
	logPath   string
	pollTick  time.Duration
	now       func() time.Time
	keys      keyMap

	// UI state
	theme    Theme
	tab      Tab
	width    int
	height   int
	ready    bool
	showHelp bool
	cursor   [tabCount]int
	toasts   []toast

	// Data state
	snapshot    campus.State
	lastUpdated time.Time

	logs logState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs := opts.Prefs
	if userPrefs == (prefs.Prefs{}) {
		userPrefs = prefs.Defaults()
	}

	m := Model{
		ctx:       ctx,
		store:     opts.Store,
		ctrl:      opts.Controller,
		push:      opts.Push,
		prefs:     userPrefs,
		prefsPath: prefsPath,
		logPath:   opts.LogPath,
		pollTick:  pollTick,
		now:       now,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(userPrefs.Theme),
		tab:       ParseTab(userPrefs.StartTab),
		logs:      newLogState(),
	}
	if m.store != nil {
		m.snapshot = m.store.Snapshot()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.tab == TabLogs {
		cmds = append(cmds, readLogsCmd(m.logPath))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick(time.Time(msg))

	case snapshotMsg:
		m.snapshot = campus.State(msg)
		m.lastUpdated = m.now()
		m.clampCursors()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.pushToast(toastError, msg.desc+": "+msg.err.Error())
		} else if msg.done != "" {
			m.pushToast(toastSuccess, msg.done)
		}
		return m, fetchSnapshotCmd(m.store)

	case settledMsg:
		m.pushToast(settleToast(optimistic.Result(msg)))
		return m, fetchSnapshotCmd(m.store)

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if m.logs.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
			m.pushToast(toastError, "save prefs: "+err.Error())
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		return m.switchTab((m.tab + 1) % tabCount)

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchTab((m.tab + tabCount - 1) % tabCount)

	case key.Matches(msg, m.keys.Jump):
		return m.switchTab(Tab(msg.String()[0] - '1'))

	case key.Matches(msg, m.keys.ClearErrors):
		if m.store != nil {
			m.store.ClearSyncErrors()
		}
		return m, fetchSnapshotCmd(m.store)
	}

	if m.tab == TabLogs {
		return m.handleLogsKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Top):
		m.cursor[m.tab] = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor[m.tab] = m.rowCount(m.tab) - 1
		m.clampCursors()
	default:
		return m.handleAction(msg)
	}
	return m, nil
}

func (m Model) switchTab(t Tab) (tea.Model, tea.Cmd) {
	if t < 0 || t >= tabCount {
		return m, nil
	}
	m.tab = t
	if t == TabLogs {
		return m, readLogsCmd(m.logPath)
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	m.cursor[m.tab] += delta
	m.clampCursors()
}

func (m *Model) clampCursors() {
	for t := Tab(0); t < tabCount; t++ {
		n := m.rowCount(t)
		m.cursor[t] = min(max(0, m.cursor[t]), max(0, n-1))
	}
}

func (m Model) rowCount(t Tab) int {
	switch t {
	case TabGrades:
		return len(m.snapshot.Grades)
	case TabBuses:
		return len(m.snapshot.Buses)
	case TabLibrary:
		return len(m.snapshot.Books)
	case TabPlaces:
		return len(m.snapshot.Locations)
	case TabThesis:
		return len(m.snapshot.Theses)
	}
	return 0
}

// handleTick refreshes the snapshot, expires notifications and re-reads the
// log file while the logs tab is following.
func (m Model) handleTick(at time.Time) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	m.pruneToasts()

	if m.tab == TabLogs && m.logs.follow && at.Sub(m.logs.lastRead) >= LogRefreshInterval {
		cmds = append(cmds, readLogsCmd(m.logPath))
	}

	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

// renderMain renders the full dashboard.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	return b.String()
}

// contentHeight is the height of the tab body including its border.
func (m Model) contentHeight() int {
	return max(3, m.height-chromeHeight-len(m.toasts))
}

func (m Model) renderContent() string {
	var body string
	switch m.tab {
	case TabGrades:
		body = m.renderGrades()
	case TabBuses:
		body = m.renderBuses()
	case TabLibrary:
		body = m.renderLibrary()
	case TabPlaces:
		body = m.renderPlaces()
	case TabThesis:
		body = m.renderThesis()
	case TabLogs:
		body = m.renderLogs()
	}
	if toasts := m.renderToasts(); toasts != "" {
		body += "\n" + toasts
	}
	return body
}

// Messages

type tickMsg time.Time

type snapshotMsg campus.State

type settledMsg optimistic.Result

// actionMsg reports the synchronous part of a user action.
type actionMsg struct {
	desc string
	done string // success notification; empty for optimistic writes still in flight
	err  error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if opts.OnSettle != nil {
		unsubscribe := opts.OnSettle(func(r optimistic.Result) { p.Send(settledMsg(r)) })
		defer unsubscribe()
	}
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
