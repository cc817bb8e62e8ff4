package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width to show secondary columns.
	LayoutWideWidth = 120
)

// Log display limits.
const (
	// LogTailLines is how many lines are read from the end of the log file.
	LogTailLines = 2000
)

// Timing constants.
const (
	// DefaultUIInterval is the default UI refresh interval.
	DefaultUIInterval = 500 * time.Millisecond

	// LogRefreshInterval is the minimum time between log file reads.
	LogRefreshInterval = 2 * time.Second

	// ToastTTL is how long a notification stays on screen.
	ToastTTL = 6 * time.Second

	// maxToasts caps the number of notifications shown at once.
	maxToasts = 3
)

// chromeHeight is the number of lines used by the header, tab bar and
// command bar.
const chromeHeight = 3

// renderBox draws a rounded border with title in the top edge. width and
// height include the border.
func (m Model) renderBox(title, content string, width, height int, focused bool) string {
	border := m.theme.Border
	if focused {
		border = m.theme.BorderFocus
	}
	innerW := max(0, width-2)
	innerH := max(0, height-2)

	lines := strings.Split(content, "\n")
	if len(lines) > innerH {
		lines = lines[:innerH]
	}
	body := lipgloss.NewStyle().
		Width(innerW).
		Height(innerH).
		MaxHeight(innerH).
		Render(strings.Join(lines, "\n"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Render(body)

	if title == "" || innerW < 4 {
		return box
	}
	// Splice the title into the top border.
	boxLines := strings.SplitN(box, "\n", 2)
	label := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Accent)).
		Bold(true).
		Render(" " + truncate(title, innerW-4) + " ")
	edge := lipgloss.NewStyle().Foreground(lipgloss.Color(border))
	fill := innerW - 1 - lipgloss.Width(label)
	top := edge.Render("╭─") + label + edge.Render(strings.Repeat("─", max(0, fill))+"╮")
	if len(boxLines) == 1 {
		return top
	}
	return top + "\n" + boxLines[1]
}
