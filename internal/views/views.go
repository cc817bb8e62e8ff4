// Package views holds pure projections over store snapshots. Nothing here
// mutates its input or keeps state between calls.
package views

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/five82/quad/internal/campus"
)

var gradePoints = map[string]float64{
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"E":  0.0,
}

// GradePoint returns the grade-point equivalent of a letter grade and whether
// the letter is known.
func GradePoint(letter string) (float64, bool) {
	p, ok := gradePoints[strings.TrimSpace(letter)]
	return p, ok
}

var letterCutoffs = []struct {
	min    float64
	letter string
}{
	{90, "A"}, {85, "A-"}, {80, "B+"}, {75, "B"}, {70, "B-"},
	{65, "C+"}, {60, "C"}, {55, "C-"}, {50, "D+"}, {45, "D"},
}

// LetterFor maps a 0-100 score onto the letter scale.
func LetterFor(score float64) string {
	for _, c := range letterCutoffs {
		if score >= c.min {
			return c.letter
		}
	}
	return "E"
}

// GPA is the credit-weighted mean grade point. Unknown letters count as zero
// points; no credits at all yields 0.
func GPA(grades []campus.Grade) float64 {
	var points float64
	var credits int
	for _, g := range grades {
		p, _ := GradePoint(g.Letter)
		points += p * float64(g.Credits)
		credits += g.Credits
	}
	if credits == 0 {
		return 0
	}
	return points / float64(credits)
}

// FormatETA renders minutes until arrival. Partial minutes are truncated
// before choosing the wording, so anything in [1, 2) reads "1 minute" and
// 75.9 reads "1h 15m".
func FormatETA(minutes float64) string {
	switch {
	case minutes < 1:
		return "arriving now"
	case minutes < 2:
		return "1 minute"
	case minutes < 60:
		return fmt.Sprintf("%d minutes", int(minutes))
	}
	total := int(math.Floor(minutes))
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

// Band is an occupancy level.
type Band string

const (
	Available  Band = "Available"
	Moderate   Band = "Moderate"
	NearlyFull Band = "Nearly Full"
	Full       Band = "Full"
)

// OccupancyBand classifies occupancy against capacity. A zero capacity is
// reported as Full.
func OccupancyBand(occupancy, capacity int) Band {
	if capacity <= 0 {
		return Full
	}
	ratio := float64(occupancy) / float64(capacity)
	switch {
	case ratio >= 0.9:
		return Full
	case ratio >= 0.7:
		return NearlyFull
	case ratio >= 0.4:
		return Moderate
	default:
		return Available
	}
}

// SortBusesByETA returns the buses ordered by ascending ETA. Ties keep their
// input order.
func SortBusesByETA(buses []campus.BusLocation) []campus.BusLocation {
	out := slices.Clone(buses)
	slices.SortStableFunc(out, func(a, b campus.BusLocation) int {
		switch {
		case a.ETA < b.ETA:
			return -1
		case a.ETA > b.ETA:
			return 1
		}
		return 0
	})
	return out
}

// NearestBus returns the bus heading to stop with the smallest ETA.
func NearestBus(buses []campus.BusLocation, stop string) (campus.BusLocation, bool) {
	var best campus.BusLocation
	found := false
	for _, b := range buses {
		if b.NextStop != stop {
			continue
		}
		if !found || b.ETA < best.ETA {
			best, found = b, true
		}
	}
	return best, found
}

// CanRenew reports whether another renewal is allowed.
func CanRenew(b campus.LibraryBook) bool {
	return b.CheckedOut && b.RenewalCount < b.MaxRenewals
}

// TotalFines sums the fines owed at now.
func TotalFines(books []campus.LibraryBook, now time.Time) int {
	total := 0
	for _, b := range books {
		total += campus.Fine(b, now)
	}
	return total
}

// OverdueBooks returns the checked-out books past their due date at now,
// most overdue first.
func OverdueBooks(books []campus.LibraryBook, now time.Time) []campus.LibraryBook {
	var out []campus.LibraryBook
	for _, b := range books {
		if b.CheckedOut && b.DueDate != nil && now.After(*b.DueDate) {
			out = append(out, b.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b campus.LibraryBook) int {
		return a.DueDate.Compare(*b.DueDate)
	})
	return out
}

// Semester groups grades of one semester.
type Semester struct {
	Name   string
	Grades []campus.Grade
	GPA    float64
}

// GradesBySemester groups grades by semester in first-seen order.
func GradesBySemester(grades []campus.Grade) []Semester {
	var out []Semester
	index := make(map[string]int)
	for _, g := range grades {
		i, ok := index[g.Semester]
		if !ok {
			i = len(out)
			index[g.Semester] = i
			out = append(out, Semester{Name: g.Semester})
		}
		out[i].Grades = append(out[i].Grades, g)
	}
	for i := range out {
		out[i].GPA = GPA(out[i].Grades)
	}
	return out
}

// OpenLocations returns the locations currently open.
func OpenLocations(locations []campus.CampusLocation) []campus.CampusLocation {
	var out []campus.CampusLocation
	for _, l := range locations {
		if l.IsOpen {
			out = append(out, l.Clone())
		}
	}
	return out
}

// ThesesByStatus buckets theses by status. Every canonical status has an
// entry, possibly empty.
func ThesesByStatus(theses []campus.ThesisDefense) map[campus.ThesisStatus][]campus.ThesisDefense {
	out := make(map[campus.ThesisStatus][]campus.ThesisDefense, len(campus.ThesisStatuses()))
	for _, s := range campus.ThesisStatuses() {
		out[s] = nil
	}
	for _, t := range theses {
		out[t.Status] = append(out[t.Status], t.Clone())
	}
	return out
}

// FormatFine renders a fine in rupiah with locale digit grouping.
func FormatFine(amount int) string {
	return message.NewPrinter(language.Indonesian).Sprintf("Rp %d", amount)
}

// FormatLastSync describes when the store last synced, relative to now.
func FormatLastSync(sync campus.SyncState, now time.Time) string {
	if sync.IsSyncing {
		return "syncing..."
	}
	if sync.LastSync == nil {
		return "never synced"
	}
	return "synced " + humanize.RelTime(*sync.LastSync, now, "ago", "from now")
}
