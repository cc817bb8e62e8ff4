package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the dashboard.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Jump       key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Grades
	BumpUp   key.Binding
	BumpDown key.Binding

	// Library
	Checkout key.Binding
	Return   key.Binding
	Renew    key.Binding

	// Thesis
	Advance key.Binding

	// Logs
	ToggleFollow key.Binding
	CycleLevel   key.Binding
	Search       key.Binding
	NextMatch    key.Binding
	PrevMatch    key.Binding
	Confirm      key.Binding
	Cancel       key.Binding

	ClearErrors key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "Next tab"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab", "left"),
			key.WithHelp("shift+tab", "Previous tab"),
		),
		Jump: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6"),
			key.WithHelp("1-6", "Jump to tab"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		BumpUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "Raise score"),
		),
		BumpDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "Lower score"),
		),

		Checkout: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Check out"),
		),
		Return: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Return"),
		),
		Renew: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Renew"),
		),

		Advance: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Advance stage"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle follow"),
		),
		CycleLevel: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Cycle level filter"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search logs"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "Previous match"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),

		ClearErrors: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Clear sync errors"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings grouped the way the help overlay shows them.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Jump, k.Up, k.Down, k.Top, k.Bottom},
		{k.BumpUp, k.BumpDown},
		{k.Checkout, k.Return, k.Renew},
		{k.Advance},
		{k.ToggleFollow, k.CycleLevel, k.Search, k.NextMatch, k.PrevMatch},
		{k.ClearErrors, k.CycleTheme, k.Help, k.Quit},
	}
}
