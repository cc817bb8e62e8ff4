// Package ui provides the terminal dashboard for quad.
//
// # Architecture Overview
//
// The dashboard is a Bubble Tea program. Model holds a copy of the campus
// state taken from state.Store and re-reads it on every tick and after every
// action, so rendering never touches shared data. Writes go through the
// optimistic.Controller; the store already holds the guessed value by the time
// the action command returns, and the settle callback arrives later as a
// settledMsg.
//
// # Package Structure
//
//   - app.go: Model, tabs, Update loop and the Run entry point
//   - actions.go: tab-specific keys mapped onto controller calls
//   - panels.go: table rendering for grades, buses, library, places and thesis
//   - logs.go: glog tail with level filter, follow mode and regex search
//   - header.go: sync status line, tab strip and command bar
//   - toast.go: short-lived notifications for action and settle outcomes
//   - theme.go, keys.go, help.go, layout.go: styling, bindings and boxes
//
// # Tabs
//
//   - 1 Grades: scores with GPA per semester; + and - adjust the selected score
//   - 2 Buses: routes sorted by ETA with load bars and the bus nearest home
//   - 3 Library: loans, due dates and fines; c checks out, r returns, n renews
//   - 4 Places: occupancy bands for tracked locations
//   - 5 Thesis: defense pipeline; a advances the selected thesis
//   - 6 Logs: the info log, filtered with f and searched with /
//
// Rows with a mutation still in flight are marked with ⟳. A failed mutation
// reverts the row and shows an error notification with the backend's reason.
//
// # Usage Example
//
//	err := ui.Run(ui.Options{
//		Context:    ctx,
//		Store:      store,
//		Controller: ctrl,
//		Push:       channel,
//		Prefs:      userPrefs,
//		LogPath:    cfg.InfoLogPath(),
//	})
package ui
