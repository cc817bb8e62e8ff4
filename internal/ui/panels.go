package ui

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/views"
)

// tableRow is one line of a tab table. badge, when set, is drawn at the end
// of the line in the color of status (or of badge itself).
type tableRow struct {
	text   string
	badge  string
	status string
}

// renderTable draws a titled box holding a header row and the rows of tab,
// scrolled so the cursor stays visible.
func (m Model) renderTable(title, header string, rows []tableRow, tab Tab) string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	visible := max(1, height-3) // border and header

	cursor := m.cursor[tab]
	offset := 0
	if cursor >= visible {
		offset = cursor - visible + 1
	}

	lines := []string{styles.MutedText.Bold(true).Render(header)}
	if len(rows) == 0 {
		lines = append(lines, styles.FaintText.Render("nothing to show"))
	}
	for i := offset; i < len(rows) && i < offset+visible; i++ {
		r := rows[i]
		badge := ""
		if r.badge != "" {
			badge = styles.StatusStyle(cmp.Or(r.status, r.badge)).Render(r.badge)
		}
		text := padRight(r.text, max(0, m.width-2-lipgloss.Width(badge)))
		if i == cursor {
			lines = append(lines, styles.Selected.Render(text)+badge)
			continue
		}
		lines = append(lines, styles.Text.Render(text)+badge)
	}
	return m.renderBox(title, strings.Join(lines, "\n"), m.width, height, true)
}

// pendingMark flags entities with a mutation still in flight.
func (m Model) pendingMark(id string) string {
	if m.ctrl != nil && m.ctrl.Pending(id) {
		return "⟳"
	}
	return " "
}

func (m Model) renderGrades() string {
	grades := m.snapshot.Grades
	wide := m.width >= LayoutWideWidth

	header := " " + padRight("Code", 8) + padRight("Course", 30) + padLeft("Score", 6) + "  " +
		padRight("Grade", 6) + padLeft("Cr", 3) + "  " + "Semester"
	if wide {
		header += "     Updated"
	}
	rows := make([]tableRow, 0, len(grades))
	for _, g := range grades {
		row := m.pendingMark(g.ID) + padRight(g.CourseCode, 8) + padRight(g.CourseName, 30) +
			padLeft(fmt.Sprintf("%.1f", g.Score), 6) + "  " + padRight(g.Letter, 6) +
			padLeft(fmt.Sprintf("%d", g.Credits), 3) + "  " + padRight(g.Semester, 12)
		if wide {
			row += g.LastUpdated.Format("2006-01-02 15:04")
		}
		rows = append(rows, tableRow{text: row})
	}

	title := fmt.Sprintf("Grades  GPA %.2f", views.GPA(grades))
	if sems := views.GradesBySemester(grades); len(sems) > 1 {
		parts := make([]string, 0, len(sems))
		for _, s := range sems {
			parts = append(parts, fmt.Sprintf("%s %.2f", s.Name, s.GPA))
		}
		title += "  (" + strings.Join(parts, ", ") + ")"
	}
	return m.renderTable(title, header, rows, TabGrades)
}

func (m Model) renderBuses() string {
	buses := views.SortBusesByETA(m.snapshot.Buses)

	header := " " + padRight("Route", 16) + padRight("Next stop", 18) + padRight("ETA", 14) +
		padLeft("Speed", 8) + "  " + padRight("Load", 22) + "Status"
	rows := make([]tableRow, 0, len(buses))
	for _, b := range buses {
		band := views.OccupancyBand(b.Occupancy, b.Capacity)
		rows = append(rows, tableRow{
			text: " " + padRight(b.RouteName, 16) + padRight(b.NextStop, 18) +
				padRight(views.FormatETA(b.ETA), 14) + padLeft(fmt.Sprintf("%.0f km/h", b.Speed), 8) + "  " +
				bar(b.Occupancy, b.Capacity, 10) + padLeft(fmt.Sprintf("%d/%d", b.Occupancy, b.Capacity), 8) + "    ",
			badge: string(band),
		})
	}

	title := "Buses"
	if nearest, ok := views.NearestBus(buses, m.prefs.HomeStop); ok {
		title += fmt.Sprintf("  next to %s: %s in %s", m.prefs.HomeStop, nearest.RouteName, views.FormatETA(nearest.ETA))
	}
	if m.push != nil && !m.push.Connected() {
		title += "  (live feed offline)"
	}
	return m.renderTable(title, header, rows, TabBuses)
}

func (m Model) renderLibrary() string {
	books := m.snapshot.Books
	now := m.now()

	header := " " + padRight("Title", 34) + padRight("Author", 22) + padRight("Status", 22) +
		padRight("Renewals", 10) + "Fine"
	rows := make([]tableRow, 0, len(books))
	for _, b := range books {
		status := "available"
		if b.CheckedOut {
			status = "checked out"
			if b.DueDate != nil {
				status = "due " + b.DueDate.Format("Jan 2")
				if now.After(*b.DueDate) {
					days := int(now.Sub(*b.DueDate).Hours() / 24)
					status = fmt.Sprintf("overdue %dd", days)
				}
			}
		}
		fine := ""
		if f := campus.Fine(b, now); f > 0 {
			fine = views.FormatFine(f)
		}
		renew := fmt.Sprintf("%d/%d", b.RenewalCount, b.MaxRenewals)
		if views.CanRenew(b) {
			renew += " ↻"
		}
		rows = append(rows, tableRow{text: m.pendingMark(b.ID) + padRight(b.Title, 34) + padRight(b.Author, 22) +
			padRight(status, 22) + padRight(renew, 10) + fine})
	}

	title := "Library"
	if total := views.TotalFines(books, now); total > 0 {
		title += "  fines " + views.FormatFine(total)
	}
	if overdue := views.OverdueBooks(books, now); len(overdue) > 0 {
		title += fmt.Sprintf("  %d overdue, oldest %q", len(overdue), truncate(overdue[0].Title, 24))
	}
	return m.renderTable(title, header, rows, TabLibrary)
}

func (m Model) renderPlaces() string {
	locations := m.snapshot.Locations

	header := " " + padRight("Place", 24) + padRight("Category", 14) + padRight("Open", 8) +
		padRight("Load", 22) + "Status"
	rows := make([]tableRow, 0, len(locations))
	for _, l := range locations {
		row := tableRow{text: " " + padRight(l.Name, 24) + padRight(l.Category, 14) +
			padRight(ternary(l.IsOpen, "yes", "closed"), 8)}
		if l.Tracked() {
			row.text += padRight(bar(*l.Occupancy, *l.Capacity, 10)+padLeft(fmt.Sprintf("%d/%d", *l.Occupancy, *l.Capacity), 10), 22)
			row.badge = string(views.OccupancyBand(*l.Occupancy, *l.Capacity))
		} else {
			row.text += padRight("", 22) + "untracked"
		}
		rows = append(rows, row)
	}

	open := views.OpenLocations(locations)
	title := fmt.Sprintf("Places  %d of %d open", len(open), len(locations))
	return m.renderTable(title, header, rows, TabPlaces)
}

func (m Model) renderThesis() string {
	theses := m.snapshot.Theses

	header := " " + padRight("Student", 20) + padRight("Title", 36) + padRight("Supervisor", 20) +
		padRight("Defense", 34) + "Stage"
	rows := make([]tableRow, 0, len(theses))
	for _, t := range theses {
		date := ""
		if t.ScheduledDate != nil {
			date = t.ScheduledDate.Format("Mon Jan 2 15:04")
		}
		if n := len(t.PanelMembers); n > 0 {
			date += fmt.Sprintf(" (%d on panel)", n)
		}
		rows = append(rows, tableRow{
			text: " " + padRight(t.StudentName, 20) + padRight(t.Title, 36) +
				padRight(t.Supervisor, 20) + padRight(strings.TrimSpace(date), 34),
			badge:  t.Status.Label(),
			status: string(t.Status),
		})
	}

	groups := views.ThesesByStatus(theses)
	parts := make([]string, 0, len(groups))
	for _, s := range campus.ThesisStatuses() {
		if n := len(groups[s]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(s.Label())))
		}
	}
	title := "Thesis"
	if len(parts) > 0 {
		title += "  " + strings.Join(parts, ", ")
	}
	return m.renderTable(title, header, rows, TabThesis)
}
