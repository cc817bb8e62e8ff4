package optimistic

import (
	"sync"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/state"
)

// mirror is one entity family's cached query result.
type mirror[T any] struct {
	order []string
	byID  map[string]T
	stale bool
}

func (m *mirror[T]) fill(items []T, key func(T) string) {
	m.order = m.order[:0]
	m.byID = make(map[string]T, len(items))
	for _, it := range items {
		id := key(it)
		m.order = append(m.order, id)
		m.byID[id] = it
	}
	m.stale = false
}

func (m *mirror[T]) put(id string, v T) {
	if m.byID == nil {
		return
	}
	if _, ok := m.byID[id]; !ok {
		m.order = append(m.order, id)
	}
	m.byID[id] = v
}

func (m *mirror[T]) list() []T {
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out
}

// Cache is the presentation read mirror for grades and books. It starts
// stale and re-derives from the store on the first read after invalidation.
type Cache struct {
	store *state.Store

	mu     sync.Mutex
	grades mirror[campus.Grade]
	books  mirror[campus.LibraryBook]
}

// NewCache returns a stale cache over store.
func NewCache(store *state.Store) *Cache {
	c := &Cache{store: store}
	c.grades.stale = true
	c.books.stale = true
	return c
}

// Grades returns the cached grade list, refreshing it first when stale.
func (c *Cache) Grades() []campus.Grade {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grades.stale {
		c.grades.fill(c.store.Snapshot().Grades, func(g campus.Grade) string { return g.ID })
	}
	return c.grades.list()
}

// Books returns the cached book list, refreshing it first when stale.
func (c *Cache) Books() []campus.LibraryBook {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.books.stale {
		c.books.fill(c.store.Snapshot().Books, func(b campus.LibraryBook) string { return b.ID })
	}
	out := c.books.list()
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

// Stale reports whether the family's next read will re-derive from the store.
func (c *Cache) Stale(kind campus.Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case campus.KindGrade:
		return c.grades.stale
	case campus.KindBook:
		return c.books.stale
	}
	return false
}

// Invalidate marks the family stale.
func (c *Cache) Invalidate(kind campus.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case campus.KindGrade:
		c.grades.stale = true
	case campus.KindBook:
		c.books.stale = true
	}
}

func (c *Cache) putGrade(g campus.Grade) {
	c.mu.Lock()
	c.grades.put(g.ID, g)
	c.mu.Unlock()
}

func (c *Cache) putBook(b campus.LibraryBook) {
	c.mu.Lock()
	c.books.put(b.ID, b.Clone())
	c.mu.Unlock()
}
