package state

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/five82/quad/internal/campus"
)

//go:embed seed.yaml
var seedYAML []byte

type seedFile struct {
	Grades []struct {
		ID         string  `yaml:"id"`
		CourseCode string  `yaml:"course_code"`
		CourseName string  `yaml:"course_name"`
		Score      float64 `yaml:"score"`
		Letter     string  `yaml:"grade"`
		Credits    int     `yaml:"credits"`
		Semester   string  `yaml:"semester"`
	} `yaml:"grades"`
	Buses []struct {
		ID        string  `yaml:"id"`
		RouteName string  `yaml:"route_name"`
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
		Speed     float64 `yaml:"speed"`
		ETA       float64 `yaml:"eta"`
		Capacity  int     `yaml:"capacity"`
		Occupancy int     `yaml:"occupancy"`
		NextStop  string  `yaml:"next_stop"`
	} `yaml:"buses"`
	Books []struct {
		ID           string `yaml:"id"`
		Title        string `yaml:"title"`
		Author       string `yaml:"author"`
		ISBN         string `yaml:"isbn"`
		CheckedOut   bool   `yaml:"checked_out"`
		DueInDays    int    `yaml:"due_in_days"`
		RenewalCount int    `yaml:"renewal_count"`
		MaxRenewals  int    `yaml:"max_renewals"`
	} `yaml:"books"`
	Locations []struct {
		ID        string  `yaml:"id"`
		Name      string  `yaml:"name"`
		Category  string  `yaml:"category"`
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
		Capacity  *int    `yaml:"capacity"`
		Occupancy *int    `yaml:"occupancy"`
		IsOpen    bool    `yaml:"is_open"`
	} `yaml:"locations"`
	Theses []struct {
		ID              string   `yaml:"id"`
		StudentName     string   `yaml:"student_name"`
		Title           string   `yaml:"title"`
		Supervisor      string   `yaml:"supervisor"`
		Status          string   `yaml:"status"`
		PanelMembers    []string `yaml:"panel_members"`
		ScheduledInDays *int     `yaml:"scheduled_in_days"`
	} `yaml:"theses"`
}

// Seed builds the default portal state. Relative dates in the embedded seed
// are resolved against now.
func Seed(now time.Time) (campus.State, error) {
	var raw seedFile
	if err := yaml.Unmarshal(seedYAML, &raw); err != nil {
		return campus.State{}, fmt.Errorf("parse seed: %w", err)
	}
	day := 24 * time.Hour

	var st campus.State
	for _, g := range raw.Grades {
		st.Grades = append(st.Grades, campus.Grade{
			ID:          g.ID,
			CourseCode:  g.CourseCode,
			CourseName:  g.CourseName,
			Score:       g.Score,
			Letter:      g.Letter,
			Credits:     g.Credits,
			Semester:    g.Semester,
			LastUpdated: now,
		})
	}
	for _, b := range raw.Buses {
		bus := campus.BusLocation{
			ID:          b.ID,
			RouteName:   b.RouteName,
			Latitude:    b.Latitude,
			Longitude:   b.Longitude,
			Speed:       b.Speed,
			ETA:         b.ETA,
			Capacity:    b.Capacity,
			Occupancy:   b.Occupancy,
			NextStop:    b.NextStop,
			LastUpdated: now,
		}
		bus.Clamp()
		st.Buses = append(st.Buses, bus)
	}
	for _, b := range raw.Books {
		book := campus.LibraryBook{
			ID:           b.ID,
			Title:        b.Title,
			Author:       b.Author,
			ISBN:         b.ISBN,
			CheckedOut:   b.CheckedOut,
			RenewalCount: b.RenewalCount,
			MaxRenewals:  b.MaxRenewals,
			LastUpdated:  now,
		}
		if b.CheckedOut {
			due := now.Add(time.Duration(b.DueInDays) * day)
			book.DueDate = &due
			book.FineAmount = campus.Fine(book, now)
		}
		st.Books = append(st.Books, book)
	}
	for _, l := range raw.Locations {
		st.Locations = append(st.Locations, campus.CampusLocation{
			ID:          l.ID,
			Name:        l.Name,
			Category:    l.Category,
			Latitude:    l.Latitude,
			Longitude:   l.Longitude,
			Capacity:    l.Capacity,
			Occupancy:   l.Occupancy,
			IsOpen:      l.IsOpen,
			LastUpdated: now,
		})
	}
	for _, t := range raw.Theses {
		status, err := campus.ParseThesisStatus(t.Status)
		if err != nil {
			return campus.State{}, fmt.Errorf("seed thesis %s: %w", t.ID, err)
		}
		rec := campus.ThesisDefense{
			ID:           t.ID,
			StudentName:  t.StudentName,
			Title:        t.Title,
			Supervisor:   t.Supervisor,
			Status:       status,
			PanelMembers: t.PanelMembers,
			LastUpdated:  now,
		}
		if t.ScheduledInDays != nil {
			when := now.Add(time.Duration(*t.ScheduledInDays) * day)
			rec.ScheduledDate = &when
		}
		st.Theses = append(st.Theses, rec)
	}

	if err := st.Validate(); err != nil {
		return campus.State{}, fmt.Errorf("seed: %w", err)
	}
	return st, nil
}
