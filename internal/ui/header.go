package ui

import (
	"fmt"
	"strings"

	"github.com/five82/quad/internal/views"
)

// renderHeader renders the status line: sync health, live feed and GPA.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	sync := m.snapshot.Sync

	parts := []string{bg.Render("quad", styles.Logo)}

	syncText := views.FormatLastSync(sync, m.now())
	switch {
	case sync.IsSyncing:
		parts = append(parts, bg.Render("● "+syncText, styles.WarningText))
	case sync.LastSync == nil:
		parts = append(parts, bg.Render("○ "+syncText, styles.MutedText))
	default:
		parts = append(parts, bg.Render("● "+syncText, styles.SuccessText))
	}

	if m.push != nil {
		if m.push.Connected() {
			parts = append(parts, bg.Render("live", styles.InfoText))
		} else {
			parts = append(parts, bg.Render("offline", styles.DangerText))
		}
	}

	if n := len(sync.Errors); n > 0 {
		label := fmt.Sprintf("%d sync error%s", n, ternary(n == 1, "", "s"))
		parts = append(parts, bg.Render(label, styles.DangerText))
		if !compact {
			parts = append(parts, bg.Render(truncate(sync.Errors[n-1], 60), styles.MutedText))
		}
	}

	if !compact {
		parts = append(parts,
			bg.Render("GPA", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%.2f", views.GPA(m.snapshot.Grades)), styles.Text))
		if fines := views.TotalFines(m.snapshot.Books, m.now()); fines > 0 {
			parts = append(parts,
				bg.Render("Fines", styles.MutedText)+bg.Space()+
					bg.Render(views.FormatFine(fines), styles.WarningText))
		}
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// renderTabBar renders the tab strip with the active tab highlighted.
func (m Model) renderTabBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	segments := make([]string, 0, tabCount)
	for t := Tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("%d %s", int(t)+1, t)
		if t == m.tab {
			segments = append(segments, styles.Selected.Render(" "+label+" "))
			continue
		}
		segments = append(segments, bg.Render(" "+label+" ", styles.MutedText))
	}
	return bg.FillLine(strings.Join(segments, bg.Space()), m.width)
}

// renderCommandBar lists the keys that matter on the current tab.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.tab {
	case TabGrades:
		commands = []cmd{{"j/k", "Navigate"}, {"+/-", "Score"}}
	case TabLibrary:
		commands = []cmd{{"j/k", "Navigate"}, {"c", "Check out"}, {"r", "Return"}, {"n", "Renew"}}
	case TabThesis:
		commands = []cmd{{"j/k", "Navigate"}, {"a", "Advance"}}
	case TabLogs:
		commands = []cmd{
			{"Space", ternary(m.logs.follow, "Pause", "Follow")},
			{"f", "Level"},
			{"/", "Search"},
			{"n/N", "Next/Prev"},
		}
	default:
		commands = []cmd{{"j/k", "Navigate"}}
	}
	commands = append(commands, cmd{"Tab", "Next"}, cmd{"x", "Clear errors"}, cmd{"?", "More"}, cmd{"q", "Quit"})

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
