package campus

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind names an entity family held by the store.
type Kind string

const (
	KindGrade    Kind = "grade"
	KindBus      Kind = "bus"
	KindBook     Kind = "book"
	KindLocation Kind = "location"
	KindThesis   Kind = "thesis"
)

const (
	// LoanPeriod is how long a checkout or renewal extends a loan.
	LoanPeriod = 14 * 24 * time.Hour
	// DailyFine is charged per full day a book is overdue.
	DailyFine = 50

	MaxSpeed = 60.0
	MinETA   = 1.0
	MaxScore = 100.0
)

// Grade mirrors a course result as returned by the grades endpoint.
type Grade struct {
	ID          string    `json:"id"`
	CourseCode  string    `json:"courseCode"`
	CourseName  string    `json:"courseName"`
	Score       float64   `json:"score"`
	Letter      string    `json:"grade"`
	Credits     int       `json:"credits"`
	Semester    string    `json:"semester"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// BusLocation is a live position report for one campus shuttle.
type BusLocation struct {
	ID          string    `json:"id"`
	RouteName   string    `json:"routeName"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Speed       float64   `json:"speed"`
	ETA         float64   `json:"eta"` // minutes to NextStop
	Capacity    int       `json:"capacity"`
	Occupancy   int       `json:"occupancy"`
	NextStop    string    `json:"nextStop"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Clamp forces speed, eta and occupancy back into their valid ranges.
func (b *BusLocation) Clamp() {
	b.Speed = math.Min(MaxSpeed, math.Max(0, b.Speed))
	b.ETA = math.Max(MinETA, b.ETA)
	b.Occupancy = clampInt(b.Occupancy, 0, b.Capacity)
}

// LibraryBook is a catalogue entry together with the student's loan state.
type LibraryBook struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	ISBN         string     `json:"isbn"`
	CheckedOut   bool       `json:"checkedOut"`
	DueDate      *time.Time `json:"dueDate"`
	RenewalCount int        `json:"renewalCount"`
	MaxRenewals  int        `json:"maxRenewals"`
	FineAmount   int        `json:"fineAmount"`
	LastUpdated  time.Time  `json:"lastUpdated"`
}

// Fine returns the overdue fine owed for b at now. Only whole days count.
func Fine(b LibraryBook, now time.Time) int {
	if !b.CheckedOut || b.DueDate == nil {
		return 0
	}
	days := int(math.Floor(now.Sub(*b.DueDate).Hours() / 24))
	if days <= 0 {
		return 0
	}
	return days * DailyFine
}

// CampusLocation is a building or facility shown on the campus map.
// Capacity and Occupancy are only set for places that report a headcount.
type CampusLocation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Capacity    *int      `json:"capacity,omitempty"`
	Occupancy   *int      `json:"occupancy,omitempty"`
	IsOpen      bool      `json:"isOpen"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Tracked reports whether the location carries both capacity and occupancy.
func (l CampusLocation) Tracked() bool {
	return l.Capacity != nil && l.Occupancy != nil
}

// ThesisDefense tracks one student's thesis through the defense workflow.
type ThesisDefense struct {
	ID            string       `json:"id"`
	StudentName   string       `json:"studentName"`
	Title         string       `json:"title"`
	Supervisor    string       `json:"supervisor"`
	Status        ThesisStatus `json:"status"`
	PanelMembers  []string     `json:"panelMembers"`
	ScheduledDate *time.Time   `json:"scheduledDate"`
	LastUpdated   time.Time    `json:"lastUpdated"`
}

// SyncState records the health of the client's last sync with the backend.
type SyncState struct {
	LastSync  *time.Time `json:"lastSync"`
	IsSyncing bool       `json:"isSyncing"`
	Errors    []string   `json:"errors"`
}

// State is the complete portal state. It is also the persisted blob shape.
type State struct {
	Grades    []Grade          `json:"grades"`
	Buses     []BusLocation    `json:"buses"`
	Books     []LibraryBook    `json:"books"`
	Locations []CampusLocation `json:"locations"`
	Theses    []ThesisDefense  `json:"theses"`
	Sync      SyncState        `json:"sync"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Grades: cloneSlice(s.Grades),
		Buses:  cloneSlice(s.Buses),
		Sync:   s.Sync.Clone(),
	}
	if s.Books != nil {
		out.Books = make([]LibraryBook, len(s.Books))
		for i, b := range s.Books {
			out.Books[i] = b.Clone()
		}
	}
	if s.Locations != nil {
		out.Locations = make([]CampusLocation, len(s.Locations))
		for i, l := range s.Locations {
			out.Locations[i] = l.Clone()
		}
	}
	if s.Theses != nil {
		out.Theses = make([]ThesisDefense, len(s.Theses))
		for i, t := range s.Theses {
			out.Theses[i] = t.Clone()
		}
	}
	return out
}

// Clone returns a copy of b that shares no pointers with it.
func (b LibraryBook) Clone() LibraryBook {
	b.DueDate = cloneTime(b.DueDate)
	return b
}

// Clone returns a copy of l that shares no pointers with it.
func (l CampusLocation) Clone() CampusLocation {
	l.Capacity = cloneInt(l.Capacity)
	l.Occupancy = cloneInt(l.Occupancy)
	return l
}

// Clone returns a copy of t that shares no pointers with it.
func (t ThesisDefense) Clone() ThesisDefense {
	t.PanelMembers = cloneSlice(t.PanelMembers)
	t.ScheduledDate = cloneTime(t.ScheduledDate)
	return t
}

// Clone returns a copy of s that shares no pointers with it.
func (s SyncState) Clone() SyncState {
	s.LastSync = cloneTime(s.LastSync)
	s.Errors = cloneSlice(s.Errors)
	return s
}

// ErrInvalidState is returned by Validate for blobs that break an entity invariant.
var ErrInvalidState = errors.New("invalid portal state")

// Validate checks the invariants a rehydrated state must satisfy before use.
func (s State) Validate() error {
	seen := make(map[string]struct{})
	check := func(kind Kind, id string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: %s with empty id", ErrInvalidState, kind)
		}
		key := string(kind) + "/" + id
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate %s %q", ErrInvalidState, kind, id)
		}
		seen[key] = struct{}{}
		return nil
	}
	for _, g := range s.Grades {
		if err := check(KindGrade, g.ID); err != nil {
			return err
		}
		if g.Score < 0 || g.Score > MaxScore {
			return fmt.Errorf("%w: grade %q score %.1f out of range", ErrInvalidState, g.ID, g.Score)
		}
	}
	for _, b := range s.Buses {
		if err := check(KindBus, b.ID); err != nil {
			return err
		}
		if b.Capacity < 0 {
			return fmt.Errorf("%w: bus %q negative capacity", ErrInvalidState, b.ID)
		}
	}
	for _, b := range s.Books {
		if err := check(KindBook, b.ID); err != nil {
			return err
		}
		if b.CheckedOut != (b.DueDate != nil) {
			return fmt.Errorf("%w: book %q due date does not match loan state", ErrInvalidState, b.ID)
		}
	}
	for _, l := range s.Locations {
		if err := check(KindLocation, l.ID); err != nil {
			return err
		}
	}
	for _, t := range s.Theses {
		if err := check(KindThesis, t.ID); err != nil {
			return err
		}
		if !t.Status.Valid() {
			return fmt.Errorf("%w: thesis %q status %q", ErrInvalidState, t.ID, t.Status)
		}
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampOccupancy limits occupancy to [0, capacity].
func ClampOccupancy(occupancy, capacity int) int {
	return clampInt(occupancy, 0, capacity)
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
