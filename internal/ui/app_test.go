package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/quad/internal/backend"
	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/logtail"
	"github.com/five82/quad/internal/optimistic"
	"github.com/five82/quad/internal/prefs"
	"github.com/five82/quad/internal/state"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, p prefs.Prefs) (Model, *optimistic.Controller, *state.Store) {
	t.Helper()
	sim := backend.NewSimulator(
		backend.WithSeed(1),
		backend.WithClock(func() time.Time { return testNow }),
		backend.WithLatencyScale(0),
		backend.WithSuccessRate(backend.OpCheckout, 1),
		backend.WithSuccessRate(backend.OpUpdateGrade, 1),
	)
	return newTestModelWith(t, p, sim)
}

func newTestModelWith(t *testing.T, p prefs.Prefs, be backend.Backend) (Model, *optimistic.Controller, *state.Store) {
	t.Helper()
	initial, err := state.Seed(testNow)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	clock := func() time.Time { return testNow }
	store := state.New(initial, state.WithClock(clock))
	ctrl := optimistic.New(store, be, nil, optimistic.Options{Now: clock})

	m := New(Options{
		Context:    context.Background(),
		Store:      store,
		Controller: ctrl,
		Prefs:      p,
		PrefsPath:  filepath.Join(t.TempDir(), "prefs.toml"),
		Now:        clock,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	return next.(Model), ctrl, store
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestNew_AppliesPrefs(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Prefs{Theme: "Slate", StartTab: "thesis", HomeStop: "Main Gate"})
	if m.theme.Name != "Slate" {
		t.Fatalf("theme = %q, want Slate", m.theme.Name)
	}
	if m.tab != TabThesis {
		t.Fatalf("tab = %v, want thesis", m.tab)
	}
}

func TestTabNavigation(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Defaults())

	m, _ = press(t, m, "tab")
	if m.tab != TabBuses {
		t.Fatalf("tab after tab = %v, want buses", m.tab)
	}
	m, _ = press(t, m, "3")
	if m.tab != TabLibrary {
		t.Fatalf("tab after 3 = %v, want library", m.tab)
	}
	m, _ = press(t, m, "G")
	if m.cursor[TabLibrary] != 3 {
		t.Fatalf("cursor after G = %d, want 3", m.cursor[TabLibrary])
	}
	m, _ = press(t, m, "j")
	if m.cursor[TabLibrary] != 3 {
		t.Fatalf("cursor moved past the last row: %d", m.cursor[TabLibrary])
	}
	m, _ = press(t, m, "g")
	if m.cursor[TabLibrary] != 0 {
		t.Fatalf("cursor after g = %d, want 0", m.cursor[TabLibrary])
	}
}

func TestCheckoutFromLibraryTab(t *testing.T) {
	m, ctrl, store := newTestModel(t, prefs.Prefs{StartTab: "library"})

	m, cmd := press(t, m, "c") // book-ddia is first and available
	m = run(t, m, cmd)
	ctrl.Wait()

	b, _ := store.Book("book-ddia")
	if !b.CheckedOut || b.DueDate == nil {
		t.Fatalf("book-ddia not checked out: %+v", b)
	}
	for _, ts := range m.toasts {
		if ts.level == toastError {
			t.Fatalf("unexpected error toast %q", ts.text)
		}
	}
}

// heldBackend answers every call with the entity it was sent, but only once
// release is closed.
type heldBackend struct {
	release chan struct{}
}

func (h heldBackend) UpdateGrade(_ context.Context, g campus.Grade) (campus.Grade, error) {
	<-h.release
	return g, nil
}

func (h heldBackend) CheckoutBook(_ context.Context, b campus.LibraryBook) (campus.LibraryBook, error) {
	<-h.release
	return b, nil
}

func (h heldBackend) ReturnBook(_ context.Context, b campus.LibraryBook) (campus.LibraryBook, error) {
	<-h.release
	return b, nil
}

func (h heldBackend) RenewBook(_ context.Context, b campus.LibraryBook) (campus.LibraryBook, error) {
	<-h.release
	return b, nil
}

func TestPendingEntityRefusesNewActions(t *testing.T) {
	be := heldBackend{release: make(chan struct{})}
	m, ctrl, _ := newTestModelWith(t, prefs.Prefs{StartTab: "library"}, be)
	defer ctrl.Wait()
	defer close(be.release)

	m, cmd := press(t, m, "c")
	m = run(t, m, cmd)
	if !ctrl.Pending("book-ddia") {
		t.Fatalf("checkout of book-ddia is not pending")
	}

	m, cmd = press(t, m, "r")
	if cmd != nil {
		t.Fatalf("return of a pending book issued a command")
	}
	last := m.toasts[len(m.toasts)-1]
	if last.level != toastInfo || !strings.Contains(last.text, "still waiting") {
		t.Fatalf("last toast = %+v, want an info notice about the pending checkout", last)
	}

	m, _ = press(t, m, "1")
	m, cmd = press(t, m, "+")
	if cmd == nil {
		t.Fatalf("grade bump was refused although no grade is pending")
	}
}

func TestRefusedActionShowsErrorToast(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Prefs{StartTab: "library"})

	m, _ = press(t, m, "j") // book-sicp is already checked out
	m, cmd := press(t, m, "c")
	m = run(t, m, cmd)

	if len(m.toasts) != 1 || m.toasts[0].level != toastError {
		t.Fatalf("toasts = %+v, want one error", m.toasts)
	}
	if !strings.Contains(m.toasts[0].text, optimistic.ErrAlreadyCheckedOut.Error()) {
		t.Fatalf("toast = %q, want it to mention the refusal", m.toasts[0].text)
	}
}

func TestBumpGrade(t *testing.T) {
	m, ctrl, store := newTestModel(t, prefs.Defaults())

	m, cmd := press(t, m, "+")
	_ = run(t, m, cmd)
	ctrl.Wait()

	g, _ := store.Grade("grade-cs301")
	if g.Score != 89 || g.Letter != "A-" {
		t.Fatalf("grade-cs301 = %.1f %s, want 89 A-", g.Score, g.Letter)
	}
}

func TestAdvanceThesis(t *testing.T) {
	m, _, store := newTestModel(t, prefs.Prefs{StartTab: "thesis"})

	m, cmd := press(t, m, "a") // thesis-001 has no panel yet
	m = run(t, m, cmd)
	if len(m.toasts) != 1 || m.toasts[0].level != toastError {
		t.Fatalf("toasts = %+v, want one error for thesis-001", m.toasts)
	}

	m, _ = press(t, m, "j")
	m, cmd = press(t, m, "a")
	m = run(t, m, cmd)
	last := m.toasts[len(m.toasts)-1]
	if last.level != toastSuccess || !strings.Contains(last.text, "Completed") {
		t.Fatalf("last toast = %+v, want success moving to Completed", last)
	}
	if th, _ := store.Thesis("thesis-002"); th.Status != "completed" {
		t.Fatalf("thesis-002 status = %q, want completed", th.Status)
	}
}

func TestSettledRollbackToast(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Defaults())

	next, _ := m.Update(settledMsg(optimistic.Result{
		Op:       backend.OpCheckout,
		EntityID: "book-ddia",
		Phase:    optimistic.PhaseRolledBack,
		Err:      fmt.Errorf("%w: %w", optimistic.ErrRolledBack, backend.ErrRejected),
	}))
	m = next.(Model)
	if len(m.toasts) != 1 || m.toasts[0].level != toastError {
		t.Fatalf("toasts = %+v, want one error", m.toasts)
	}
	if !strings.Contains(m.toasts[0].text, "reverted") {
		t.Fatalf("toast = %q, want it to say the change was reverted", m.toasts[0].text)
	}
}

func TestSettleToastMentionsFine(t *testing.T) {
	level, text := settleToast(optimistic.Result{
		Op:       backend.OpReturn,
		EntityID: "book-tcpip",
		Phase:    optimistic.PhaseConfirmed,
		Fine:     150,
	})
	if level != toastSuccess || !strings.Contains(text, "Rp 150") {
		t.Fatalf("settleToast = %v %q, want success mentioning Rp 150", level, text)
	}
}

func TestToastsExpireAndAreCapped(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Defaults())
	now := testNow
	m.now = func() time.Time { return now }

	for i := 0; i < maxToasts+2; i++ {
		m.pushToast(toastInfo, "hello")
	}
	if len(m.toasts) != maxToasts {
		t.Fatalf("len(toasts) = %d, want %d", len(m.toasts), maxToasts)
	}

	now = now.Add(ToastTTL + time.Second)
	m.pruneToasts()
	if len(m.toasts) != 0 {
		t.Fatalf("toasts survived their TTL: %+v", m.toasts)
	}
}

func TestCycleThemeSavesPrefs(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Prefs{Theme: "Dracula", StartTab: "buses", HomeStop: "Library"})

	m, _ = press(t, m, "T")
	if m.theme.Name != "Slate" {
		t.Fatalf("theme = %q, want Slate", m.theme.Name)
	}
	saved, err := prefs.Load(m.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	want := prefs.Prefs{Theme: "Slate", StartTab: "buses", HomeStop: "Library"}
	if saved != want {
		t.Fatalf("saved prefs = %+v, want %+v", saved, want)
	}
}

func TestViewRendersEveryTab(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Defaults())

	wants := map[Tab]string{
		TabGrades:  "Distributed Systems",
		TabBuses:   "Main Gate",
		TabLibrary: "Rp 150",
		TabPlaces:  "untracked",
		TabThesis:  "Ayu Lestari",
		TabLogs:    "no log file",
	}
	for tab, want := range wants {
		m.tab = tab
		view := m.View()
		if !strings.Contains(view, want) {
			t.Fatalf("%s view does not contain %q:\n%s", tab, want, view)
		}
		if !strings.Contains(view, "GPA") {
			t.Fatalf("%s view lost the header", tab)
		}
	}
}

func TestHelpOverlayClosesOnAnyKey(t *testing.T) {
	m, _, _ := newTestModel(t, prefs.Defaults())
	m, _ = press(t, m, "?")
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatalf("help overlay not shown")
	}
	m, _ = press(t, m, "x")
	if m.showHelp {
		t.Fatalf("help overlay still shown")
	}
}

func TestLogsTabFiltersAndSearches(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "quad.INFO")
	body := strings.Join([]string{
		"Log file created at: 2025/03/20 12:00:00",
		"I0320 12:00:01.000000 1 app.go:10] starting",
		"W0320 12:00:02.000000 1 controller.go:250] mutation 01J: checkout_book book-ddia rolled back",
		"I0320 12:00:03.000000 1 channel.go:160] push: connected",
	}, "\n") + "\n"
	if err := os.WriteFile(logPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, _, _ := newTestModel(t, prefs.Defaults())
	m.logPath = logPath

	m, cmd := press(t, m, "6")
	if m.tab != TabLogs {
		t.Fatalf("tab = %v, want logs", m.tab)
	}
	m = run(t, m, cmd)
	if len(m.logs.entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(m.logs.entries))
	}

	m, _ = press(t, m, "f")
	if m.logs.level != logtail.Info || len(m.logs.entries) != 3 {
		t.Fatalf("after f: level %v, %d entries; want INFO and 3", m.logs.level, len(m.logs.entries))
	}
	m, _ = press(t, m, "f")
	if len(m.logs.entries) != 1 {
		t.Fatalf("WARN filter kept %d entries, want 1", len(m.logs.entries))
	}
	m.logs.level = logtail.Unknown
	m.applyLogFilter()

	m, _ = press(t, m, "/")
	if !m.logs.searching {
		t.Fatalf("search input not active")
	}
	for _, r := range "push" {
		m, _ = press(t, m, string(r))
	}
	m, _ = press(t, m, "enter")
	if m.logs.searching || len(m.logs.matches) != 1 || m.logs.matches[0] != 3 {
		t.Fatalf("search state = searching %v matches %v, want one match at 3", m.logs.searching, m.logs.matches)
	}

	m, _ = press(t, m, "esc")
	if m.logs.searchRe != nil {
		t.Fatalf("esc did not clear the search")
	}
}
