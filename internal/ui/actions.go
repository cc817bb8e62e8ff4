package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/optimistic"
	"github.com/five82/quad/internal/views"
)

// gradeStep is how far one key press moves a score.
const gradeStep = 1.0

// handleAction maps tab-specific keys onto controller calls.
func (m Model) handleAction(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ctrl == nil {
		return m, nil
	}
	switch m.tab {
	case TabGrades:
		if !key.Matches(msg, m.keys.BumpUp) && !key.Matches(msg, m.keys.BumpDown) {
			return m, nil
		}
		if g, ok := m.selectedGrade(); ok && m.ctrl.Pending(g.ID) {
			return m.refusePending(g.CourseCode)
		}
		switch {
		case key.Matches(msg, m.keys.BumpUp):
			return m, m.bumpGrade(gradeStep)
		case key.Matches(msg, m.keys.BumpDown):
			return m, m.bumpGrade(-gradeStep)
		}
	case TabLibrary:
		book, ok := m.selectedBook()
		if !ok {
			return m, nil
		}
		if m.ctrl.Pending(book.ID) && (key.Matches(msg, m.keys.Checkout) ||
			key.Matches(msg, m.keys.Return) || key.Matches(msg, m.keys.Renew)) {
			return m.refusePending(truncate(book.Title, 30))
		}
		switch {
		case key.Matches(msg, m.keys.Checkout):
			return m, m.bookAction("check out", book, m.ctrl.CheckoutBook)
		case key.Matches(msg, m.keys.Return):
			return m, m.bookAction("return", book, m.ctrl.ReturnBook)
		case key.Matches(msg, m.keys.Renew):
			return m, m.bookAction("renew", book, m.ctrl.RenewBook)
		}
	case TabThesis:
		if key.Matches(msg, m.keys.Advance) {
			return m, m.advanceThesis()
		}
	}
	return m, nil
}

func (m Model) refusePending(name string) (tea.Model, tea.Cmd) {
	m.pushToast(toastInfo, name+" is still waiting for the backend")
	return m, nil
}

func (m Model) selectedGrade() (campus.Grade, bool) {
	grades := m.snapshot.Grades
	i := m.cursor[TabGrades]
	if i < 0 || i >= len(grades) {
		return campus.Grade{}, false
	}
	return grades[i], true
}

func (m Model) selectedBook() (campus.LibraryBook, bool) {
	books := m.snapshot.Books
	i := m.cursor[TabLibrary]
	if i < 0 || i >= len(books) {
		return campus.LibraryBook{}, false
	}
	return books[i], true
}

func (m Model) selectedThesis() (campus.ThesisDefense, bool) {
	theses := m.snapshot.Theses
	i := m.cursor[TabThesis]
	if i < 0 || i >= len(theses) {
		return campus.ThesisDefense{}, false
	}
	return theses[i], true
}

func (m Model) bumpGrade(delta float64) tea.Cmd {
	g, ok := m.selectedGrade()
	if !ok {
		return nil
	}
	score := min(campus.MaxScore, max(0, g.Score+delta))
	if score == g.Score {
		return nil
	}
	desc := fmt.Sprintf("update %s", g.CourseCode)
	ctx, ctrl, id := m.ctx, m.ctrl, g.ID
	return func() tea.Msg {
		_, err := ctrl.UpdateGrade(ctx, id, score, views.LetterFor(score))
		return actionMsg{desc: desc, err: err}
	}
}

func (m Model) bookAction(verb string, book campus.LibraryBook, call func(context.Context, string) (*optimistic.Task, error)) tea.Cmd {
	desc := fmt.Sprintf("%s %q", verb, truncate(book.Title, 30))
	ctx, id := m.ctx, book.ID
	return func() tea.Msg {
		_, err := call(ctx, id)
		return actionMsg{desc: desc, err: err}
	}
}

func (m Model) advanceThesis() tea.Cmd {
	t, ok := m.selectedThesis()
	if !ok {
		return nil
	}
	ctrl, id, name := m.ctrl, t.ID, t.StudentName
	return func() tea.Msg {
		updated, err := ctrl.AdvanceThesis(id)
		if err != nil {
			return actionMsg{desc: "advance " + name, err: err}
		}
		return actionMsg{done: fmt.Sprintf("%s moved to %s", name, updated.Status.Label())}
	}
}
