package views

import (
	"math"
	"testing"
	"time"

	"github.com/five82/quad/internal/campus"
)

func TestGPA(t *testing.T) {
	cases := []struct {
		name   string
		grades []campus.Grade
		want   float64
	}{
		{"weighted", []campus.Grade{{Letter: "A", Credits: 3}, {Letter: "B", Credits: 2}}, 3.6},
		{"unknown letter scores zero", []campus.Grade{{Letter: "A", Credits: 1}, {Letter: "P", Credits: 1}}, 2.0},
		{"no credits", []campus.Grade{{Letter: "A", Credits: 0}}, 0},
		{"empty", nil, 0},
		{"minus and plus", []campus.Grade{{Letter: "A-", Credits: 2}, {Letter: "C+", Credits: 2}}, 3.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GPA(tc.grades); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("GPA = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFormatETA(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.5, "arriving now"},
		{0, "arriving now"},
		{1, "1 minute"},
		{1.5, "1 minute"},
		{1.99, "1 minute"},
		{2, "2 minutes"},
		{75.9, "1h 15m"},
		{12, "12 minutes"},
		{59.9, "59 minutes"},
		{60, "1h 0m"},
		{75, "1h 15m"},
		{150, "2h 30m"},
	}
	for _, tc := range cases {
		if got := FormatETA(tc.in); got != tc.want {
			t.Fatalf("FormatETA(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOccupancyBand(t *testing.T) {
	cases := []struct {
		occ, capacity int
		want          Band
	}{
		{36, 40, Full},
		{40, 40, Full},
		{28, 40, NearlyFull},
		{16, 40, Moderate},
		{15, 40, Available},
		{0, 40, Available},
		{5, 0, Full},
	}
	for _, tc := range cases {
		if got := OccupancyBand(tc.occ, tc.capacity); got != tc.want {
			t.Fatalf("OccupancyBand(%d, %d) = %q, want %q", tc.occ, tc.capacity, got, tc.want)
		}
	}
}

func TestBusOrdering(t *testing.T) {
	buses := []campus.BusLocation{
		{ID: "red", ETA: 4, NextStop: "Main Gate"},
		{ID: "blue", ETA: 9, NextStop: "Engineering"},
		{ID: "green", ETA: 2, NextStop: "Main Gate"},
		{ID: "yellow", ETA: 4, NextStop: "Library"},
	}
	sorted := SortBusesByETA(buses)
	want := []string{"green", "red", "yellow", "blue"}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Fatalf("sorted[%d] = %s, want %s", i, sorted[i].ID, id)
		}
	}
	if buses[0].ID != "red" {
		t.Fatal("SortBusesByETA modified its input")
	}

	b, ok := NearestBus(buses, "Main Gate")
	if !ok || b.ID != "green" {
		t.Fatalf("NearestBus(Main Gate) = %s, %v", b.ID, ok)
	}
	if _, ok := NearestBus(buses, "Rectorate"); ok {
		t.Fatal("NearestBus found a bus for a stop nobody serves")
	}
}

func TestLibraryViews(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	due := func(days int) *time.Time {
		d := now.AddDate(0, 0, days)
		return &d
	}
	books := []campus.LibraryBook{
		{ID: "a", CheckedOut: true, DueDate: due(-3), MaxRenewals: 2},
		{ID: "b", CheckedOut: true, DueDate: due(5), RenewalCount: 2, MaxRenewals: 2},
		{ID: "c", MaxRenewals: 2},
		{ID: "d", CheckedOut: true, DueDate: due(-10), RenewalCount: 1, MaxRenewals: 2},
	}

	if !CanRenew(books[0]) || CanRenew(books[1]) || CanRenew(books[2]) {
		t.Fatal("CanRenew wrong for checked-out/limit/available books")
	}
	if got := TotalFines(books, now); got != 650 {
		t.Fatalf("TotalFines = %d, want 650", got)
	}
	overdue := OverdueBooks(books, now)
	if len(overdue) != 2 || overdue[0].ID != "d" || overdue[1].ID != "a" {
		t.Fatalf("OverdueBooks = %+v", overdue)
	}
}

func TestGradesBySemester(t *testing.T) {
	grades := []campus.Grade{
		{ID: "1", Semester: "Odd", Letter: "A", Credits: 3},
		{ID: "2", Semester: "Even", Letter: "C", Credits: 2},
		{ID: "3", Semester: "Odd", Letter: "B", Credits: 2},
	}
	got := GradesBySemester(grades)
	if len(got) != 2 || got[0].Name != "Odd" || got[1].Name != "Even" {
		t.Fatalf("semesters = %+v", got)
	}
	if len(got[0].Grades) != 2 || math.Abs(got[0].GPA-3.6) > 1e-9 {
		t.Fatalf("Odd semester = %+v", got[0])
	}
}

func TestThesesByStatus(t *testing.T) {
	got := ThesesByStatus([]campus.ThesisDefense{
		{ID: "1", Status: campus.ThesisReview},
		{ID: "2", Status: campus.ThesisReview},
		{ID: "3", Status: campus.ThesisCompleted},
	})
	if len(got) != 4 {
		t.Fatalf("expected every status bucket, got %d", len(got))
	}
	if len(got[campus.ThesisReview]) != 2 || len(got[campus.ThesisProposal]) != 0 {
		t.Fatalf("buckets = %+v", got)
	}
}

func TestOpenLocations(t *testing.T) {
	got := OpenLocations([]campus.CampusLocation{{ID: "a", IsOpen: true}, {ID: "b"}})
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("OpenLocations = %+v", got)
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatFine(150); got != "Rp 150" {
		t.Fatalf("FormatFine(150) = %q", got)
	}
	if got := FormatFine(2500); got != "Rp 2.500" {
		t.Fatalf("FormatFine(2500) = %q", got)
	}

	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	if got := FormatLastSync(campus.SyncState{}, now); got != "never synced" {
		t.Fatalf("FormatLastSync(empty) = %q", got)
	}
	last := now.Add(-5 * time.Minute)
	if got := FormatLastSync(campus.SyncState{LastSync: &last}, now); got != "synced 5 minutes ago" {
		t.Fatalf("FormatLastSync = %q", got)
	}
	if got := FormatLastSync(campus.SyncState{LastSync: &last, IsSyncing: true}, now); got != "syncing..." {
		t.Fatalf("FormatLastSync(syncing) = %q", got)
	}
}

func TestLetterFor(t *testing.T) {
	cases := map[float64]string{
		100: "A", 92: "A", 88: "A-", 76: "B", 69: "C+", 50: "D+", 44.9: "E", 0: "E",
	}
	for score, want := range cases {
		if got := LetterFor(score); got != want {
			t.Errorf("LetterFor(%v) = %q, want %q", score, got, want)
		}
		if _, ok := GradePoint(LetterFor(score)); !ok {
			t.Errorf("LetterFor(%v) produced unknown letter", score)
		}
	}
}
