package state

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/quad/internal/campus"
)

// maxSyncErrors bounds the sync error log; the oldest entries are dropped first.
const maxSyncErrors = 20

var (
	// ErrNotFound is returned by actions that must name an existing entity.
	ErrNotFound = errors.New("entity not found")
	// ErrDuplicateID is returned when an add-action reuses an existing id.
	ErrDuplicateID = errors.New("duplicate entity id")
)

// Op identifies the kind of mutation that produced a Change.
type Op string

const (
	OpUpdate  Op = "update"
	OpReplace Op = "replace"
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpSync    Op = "sync"
	OpReset   Op = "reset"
)

// Change describes one completed store mutation. Kind and ID are empty for
// sync-status and reset changes.
type Change struct {
	Kind campus.Kind
	ID   string
	Op   Op
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for LastUpdated and fines.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// Store owns the canonical copy of every portal entity. The zero value is an
// empty, ready-to-use store.
type Store struct {
	mu    sync.RWMutex
	state campus.State
	now   func() time.Time

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64
}

// New returns a store holding a private copy of initial.
func New(initial campus.State, opts ...Option) *Store {
	s := &Store{state: initial.Clone()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() campus.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Reset replaces the whole state, e.g. after rehydrating from storage.
func (s *Store) Reset(st campus.State) {
	s.mu.Lock()
	s.state = st.Clone()
	s.mu.Unlock()
	s.notify(Change{Op: OpReset})
}

// Subscribe registers fn to run after every mutation. Subscribers run in
// registration order, outside the store lock, before the mutating call returns.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	subs := append([]subscriber(nil), s.subs...)
	s.subMu.Unlock()
	for _, sub := range subs {
		sub.fn(c)
	}
}

// mutate runs fn under the write lock and notifies subscribers when fn reports a change.
func (s *Store) mutate(c Change, fn func(st *campus.State) bool) bool {
	s.mu.Lock()
	changed := fn(&s.state)
	s.mu.Unlock()
	if changed {
		s.notify(c)
	}
	return changed
}

// Grades

// Grade returns the grade with id.
func (s *Store) Grade(id string) (campus.Grade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.state.Grades, id, gradeKey); i >= 0 {
		return s.state.Grades[i], true
	}
	return campus.Grade{}, false
}

// UpdateGrade merges fn's changes into the grade with id and refreshes
// LastUpdated. An unknown id is a no-op and returns false.
func (s *Store) UpdateGrade(id string, fn func(*campus.Grade)) bool {
	return s.mutate(Change{Kind: campus.KindGrade, ID: id, Op: OpUpdate}, func(st *campus.State) bool {
		i := indexOf(st.Grades, id, gradeKey)
		if i < 0 {
			return false
		}
		g := &st.Grades[i]
		fn(g)
		g.ID = id
		g.Score = math.Min(campus.MaxScore, math.Max(0, g.Score))
		g.LastUpdated = s.clock()
		return true
	})
}

// ReplaceGrade overwrites the stored grade with g exactly, LastUpdated included.
func (s *Store) ReplaceGrade(g campus.Grade) bool {
	return s.mutate(Change{Kind: campus.KindGrade, ID: g.ID, Op: OpReplace}, func(st *campus.State) bool {
		return replaceByID(st.Grades, g, gradeKey)
	})
}

// AddGrade appends g, assigning a new id when g.ID is empty.
func (s *Store) AddGrade(g campus.Grade) (campus.Grade, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.LastUpdated.IsZero() {
		g.LastUpdated = s.clock()
	}
	var err error
	s.mutate(Change{Kind: campus.KindGrade, ID: g.ID, Op: OpAdd}, func(st *campus.State) bool {
		if indexOf(st.Grades, g.ID, gradeKey) >= 0 {
			err = fmt.Errorf("%w: grade %q", ErrDuplicateID, g.ID)
			return false
		}
		st.Grades = append(st.Grades, g)
		return true
	})
	if err != nil {
		return campus.Grade{}, err
	}
	return g, nil
}

// RemoveGrade drops the grade with id. It reports whether anything was removed.
func (s *Store) RemoveGrade(id string) bool {
	return s.mutate(Change{Kind: campus.KindGrade, ID: id, Op: OpRemove}, func(st *campus.State) bool {
		i := indexOf(st.Grades, id, gradeKey)
		if i < 0 {
			return false
		}
		st.Grades = append(st.Grades[:i:i], st.Grades[i+1:]...)
		return true
	})
}

// Buses

// Bus returns the bus with id.
func (s *Store) Bus(id string) (campus.BusLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.state.Buses, id, busKey); i >= 0 {
		return s.state.Buses[i], true
	}
	return campus.BusLocation{}, false
}

// UpdateBus merges fn's changes into the bus with id, clamps the result and
// refreshes LastUpdated. An unknown id is a no-op.
func (s *Store) UpdateBus(id string, fn func(*campus.BusLocation)) bool {
	return s.mutate(Change{Kind: campus.KindBus, ID: id, Op: OpUpdate}, func(st *campus.State) bool {
		i := indexOf(st.Buses, id, busKey)
		if i < 0 {
			return false
		}
		b := &st.Buses[i]
		fn(b)
		b.ID = id
		b.Clamp()
		b.LastUpdated = s.clock()
		return true
	})
}

// Books

// Book returns the library book with id.
func (s *Store) Book(id string) (campus.LibraryBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.state.Books, id, bookKey); i >= 0 {
		return s.state.Books[i].Clone(), true
	}
	return campus.LibraryBook{}, false
}

// UpdateBook merges fn's changes into the book with id and refreshes LastUpdated.
func (s *Store) UpdateBook(id string, fn func(*campus.LibraryBook)) bool {
	return s.mutate(Change{Kind: campus.KindBook, ID: id, Op: OpUpdate}, func(st *campus.State) bool {
		i := indexOf(st.Books, id, bookKey)
		if i < 0 {
			return false
		}
		b := &st.Books[i]
		fn(b)
		b.ID = id
		*b = b.Clone()
		b.LastUpdated = s.clock()
		return true
	})
}

// ReplaceBook overwrites the stored book with b exactly.
func (s *Store) ReplaceBook(b campus.LibraryBook) bool {
	return s.mutate(Change{Kind: campus.KindBook, ID: b.ID, Op: OpReplace}, func(st *campus.State) bool {
		return replaceByID(st.Books, b.Clone(), bookKey)
	})
}

// CalculateFine returns the overdue fine for the book with id at the store's
// current time. Unknown books owe nothing.
func (s *Store) CalculateFine(bookID string) int {
	b, ok := s.Book(bookID)
	if !ok {
		return 0
	}
	return campus.Fine(b, s.clock())
}

// Locations

// Location returns the campus location with id.
func (s *Store) Location(id string) (campus.CampusLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.state.Locations, id, locationKey); i >= 0 {
		return s.state.Locations[i].Clone(), true
	}
	return campus.CampusLocation{}, false
}

// UpdateLocation merges fn's changes into the location with id. Occupancy is
// clamped to [0, capacity] when both are set.
func (s *Store) UpdateLocation(id string, fn func(*campus.CampusLocation)) bool {
	return s.mutate(Change{Kind: campus.KindLocation, ID: id, Op: OpUpdate}, func(st *campus.State) bool {
		i := indexOf(st.Locations, id, locationKey)
		if i < 0 {
			return false
		}
		l := &st.Locations[i]
		fn(l)
		l.ID = id
		*l = l.Clone()
		if l.Tracked() {
			*l.Occupancy = campus.ClampOccupancy(*l.Occupancy, *l.Capacity)
		}
		l.LastUpdated = s.clock()
		return true
	})
}

// Theses

// Thesis returns the thesis record with id.
func (s *Store) Thesis(id string) (campus.ThesisDefense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.state.Theses, id, thesisKey); i >= 0 {
		return s.state.Theses[i].Clone(), true
	}
	return campus.ThesisDefense{}, false
}

// UpdateThesis merges fn's changes into the thesis record with id. Status
// changes should go through AdvanceThesis.
func (s *Store) UpdateThesis(id string, fn func(*campus.ThesisDefense)) bool {
	return s.mutate(Change{Kind: campus.KindThesis, ID: id, Op: OpUpdate}, func(st *campus.State) bool {
		i := indexOf(st.Theses, id, thesisKey)
		if i < 0 {
			return false
		}
		t := &st.Theses[i]
		prev := t.Status
		fn(t)
		t.ID = id
		if !t.Status.Valid() {
			t.Status = prev
		}
		*t = t.Clone()
		t.LastUpdated = s.clock()
		return true
	})
}

// AddThesis appends t, assigning a new id when empty and defaulting the status
// to proposal.
func (s *Store) AddThesis(t campus.ThesisDefense) (campus.ThesisDefense, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = campus.ThesisProposal
	}
	if !t.Status.Valid() {
		return campus.ThesisDefense{}, fmt.Errorf("add thesis: unknown status %q", t.Status)
	}
	if t.LastUpdated.IsZero() {
		t.LastUpdated = s.clock()
	}
	t = t.Clone()
	var err error
	s.mutate(Change{Kind: campus.KindThesis, ID: t.ID, Op: OpAdd}, func(st *campus.State) bool {
		if indexOf(st.Theses, t.ID, thesisKey) >= 0 {
			err = fmt.Errorf("%w: thesis %q", ErrDuplicateID, t.ID)
			return false
		}
		st.Theses = append(st.Theses, t)
		return true
	})
	if err != nil {
		return campus.ThesisDefense{}, err
	}
	return t.Clone(), nil
}

// AdvanceThesis moves the thesis with id one stage forward.
func (s *Store) AdvanceThesis(id string) (campus.ThesisDefense, error) {
	var (
		out campus.ThesisDefense
		err error
	)
	s.mutate(Change{Kind: campus.KindThesis, ID: id, Op: OpUpdate}, func(st *campus.State) bool {
		i := indexOf(st.Theses, id, thesisKey)
		if i < 0 {
			err = fmt.Errorf("%w: thesis %q", ErrNotFound, id)
			return false
		}
		next := st.Theses[i].Clone()
		if err = next.Advance(); err != nil {
			return false
		}
		next.LastUpdated = s.clock()
		st.Theses[i] = next
		out = next.Clone()
		return true
	})
	return out, err
}

// Sync status

// SetSyncing flips the in-progress flag.
func (s *Store) SetSyncing(syncing bool) {
	s.mutate(Change{Op: OpSync}, func(st *campus.State) bool {
		st.Sync.IsSyncing = syncing
		return true
	})
}

// SetLastSync records the time of the last successful sync.
func (s *Store) SetLastSync(at time.Time) {
	s.mutate(Change{Op: OpSync}, func(st *campus.State) bool {
		st.Sync.LastSync = &at
		return true
	})
}

// AddSyncError appends msg to the sync error log.
func (s *Store) AddSyncError(msg string) {
	s.mutate(Change{Op: OpSync}, func(st *campus.State) bool {
		st.Sync.Errors = append(st.Sync.Errors, msg)
		if n := len(st.Sync.Errors); n > maxSyncErrors {
			st.Sync.Errors = append([]string(nil), st.Sync.Errors[n-maxSyncErrors:]...)
		}
		return true
	})
}

// ClearSyncErrors empties the sync error log.
func (s *Store) ClearSyncErrors() {
	s.mutate(Change{Op: OpSync}, func(st *campus.State) bool {
		st.Sync.Errors = nil
		return true
	})
}

func gradeKey(g campus.Grade) string             { return g.ID }
func busKey(b campus.BusLocation) string         { return b.ID }
func bookKey(b campus.LibraryBook) string        { return b.ID }
func locationKey(l campus.CampusLocation) string { return l.ID }
func thesisKey(t campus.ThesisDefense) string    { return t.ID }

func indexOf[T any](items []T, id string, key func(T) string) int {
	for i := range items {
		if key(items[i]) == id {
			return i
		}
	}
	return -1
}

func replaceByID[T any](items []T, v T, key func(T) string) bool {
	i := indexOf(items, key(v), key)
	if i < 0 {
		return false
	}
	items[i] = v
	return true
}
