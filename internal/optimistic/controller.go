package optimistic

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/five82/quad/internal/backend"
	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/metrics"
	"github.com/five82/quad/internal/push"
	"github.com/five82/quad/internal/state"
)

var (
	// ErrRolledBack wraps every remote failure reported through Result.Err.
	ErrRolledBack = errors.New("mutation rolled back")

	ErrScoreOutOfRange   = errors.New("score out of range")
	ErrAlreadyCheckedOut = errors.New("book already checked out")
	ErrNotCheckedOut     = errors.New("book not checked out")
	ErrNotRenewable      = errors.New("book cannot be renewed")

	// ErrEntityMismatch is reported when the backend confirms with a copy of
	// a different entity. The mutation is rolled back.
	ErrEntityMismatch = errors.New("backend returned a different entity")
)

// Publisher receives notifications for confirmed grade changes and thesis
// transitions. *push.Channel satisfies it.
type Publisher interface {
	Publish(t push.MessageType, data any)
}

// Options configure a Controller. All fields are optional.
type Options struct {
	Metrics   *metrics.Recorder
	Publisher Publisher
	// OnSettle runs on the settling goroutine after the store and cache are
	// updated. It must not start another mutation synchronously.
	OnSettle func(Result)
	Now      func() time.Time
}

// Controller applies user writes to the store immediately and reconciles
// them with the backend in the background.
type Controller struct {
	store   *state.Store
	backend backend.Backend
	cache   *Cache
	opts    Options

	// applyMu serializes bookkeeping decisions together with the store write
	// they produce, so writes for one entity land in decision order.
	applyMu sync.Mutex
	seq     uint64
	grades  *family[campus.Grade]
	books   *family[campus.LibraryBook]

	mu      sync.Mutex
	pending map[string]int

	wg sync.WaitGroup
}

// New returns a controller writing into store and cache and confirming
// against be.
func New(store *state.Store, be backend.Backend, cache *Cache, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if cache == nil {
		cache = NewCache(store)
	}
	return &Controller{
		store:   store,
		backend: be,
		cache:   cache,
		opts:    opts,
		grades: &family[campus.Grade]{
			kind:    campus.KindGrade,
			key:     func(g campus.Grade) string { return g.ID },
			get:     store.Grade,
			replace: store.ReplaceGrade,
			mirror:  cache.putGrade,
			entries: make(map[string]*entry[campus.Grade]),
		},
		books: &family[campus.LibraryBook]{
			kind:    campus.KindBook,
			key:     func(b campus.LibraryBook) string { return b.ID },
			get:     store.Book,
			replace: store.ReplaceBook,
			mirror:  cache.putBook,
			entries: make(map[string]*entry[campus.LibraryBook]),
		},
		pending: make(map[string]int),
	}
}

// Cache returns the presentation cache the controller keeps in step.
func (c *Controller) Cache() *Cache { return c.cache }

// Pending reports whether a mutation for the grade or book id is in flight.
func (c *Controller) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[id] > 0
}

// Wait blocks until every issued mutation has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// UpdateGrade sets the score and letter of grade id.
func (c *Controller) UpdateGrade(ctx context.Context, id string, score float64, letter string) (*Task, error) {
	if score < 0 || score > campus.MaxScore {
		return nil, fmt.Errorf("%w: %.1f", ErrScoreOutOfRange, score)
	}
	prev, ok := c.store.Grade(id)
	if !ok {
		return nil, fmt.Errorf("grade %q: %w", id, state.ErrNotFound)
	}
	guess := prev
	guess.Score = score
	guess.Letter = letter
	guess.LastUpdated = c.opts.Now()

	return start(ctx, c, c.grades, backend.OpUpdateGrade, id, prev, guess, 0,
		func(ctx context.Context) (campus.Grade, error) {
			return c.backend.UpdateGrade(ctx, guess)
		}), nil
}

// CheckoutBook lends book id for campus.LoanPeriod.
func (c *Controller) CheckoutBook(ctx context.Context, id string) (*Task, error) {
	prev, ok := c.store.Book(id)
	if !ok {
		return nil, fmt.Errorf("book %q: %w", id, state.ErrNotFound)
	}
	if prev.CheckedOut {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCheckedOut, prev.Title)
	}
	now := c.opts.Now()
	due := now.Add(campus.LoanPeriod)
	guess := prev.Clone()
	guess.CheckedOut = true
	guess.DueDate = &due
	guess.FineAmount = 0
	guess.LastUpdated = now

	return start(ctx, c, c.books, backend.OpCheckout, id, prev, guess, 0,
		func(ctx context.Context) (campus.LibraryBook, error) {
			return c.backend.CheckoutBook(ctx, prev.Clone())
		}), nil
}

// ReturnBook ends the loan of book id. The fine owed at call time is
// captured before the due date is cleared and reported in Result.Fine.
func (c *Controller) ReturnBook(ctx context.Context, id string) (*Task, error) {
	fine := c.store.CalculateFine(id)
	prev, ok := c.store.Book(id)
	if !ok {
		return nil, fmt.Errorf("book %q: %w", id, state.ErrNotFound)
	}
	if !prev.CheckedOut {
		return nil, fmt.Errorf("%w: %s", ErrNotCheckedOut, prev.Title)
	}
	guess := prev.Clone()
	guess.CheckedOut = false
	guess.DueDate = nil
	guess.RenewalCount = 0
	guess.FineAmount = 0
	guess.LastUpdated = c.opts.Now()

	return start(ctx, c, c.books, backend.OpReturn, id, prev, guess, fine,
		func(ctx context.Context) (campus.LibraryBook, error) {
			return c.backend.ReturnBook(ctx, prev.Clone())
		}), nil
}

// RenewBook extends the loan of book id by campus.LoanPeriod.
func (c *Controller) RenewBook(ctx context.Context, id string) (*Task, error) {
	prev, ok := c.store.Book(id)
	if !ok {
		return nil, fmt.Errorf("book %q: %w", id, state.ErrNotFound)
	}
	if !prev.CheckedOut || prev.RenewalCount >= prev.MaxRenewals {
		return nil, fmt.Errorf("%w: %s (%d/%d renewals)", ErrNotRenewable, prev.Title, prev.RenewalCount, prev.MaxRenewals)
	}
	now := c.opts.Now()
	guess := prev.Clone()
	base := now
	if prev.DueDate != nil {
		base = *prev.DueDate
	}
	due := base.Add(campus.LoanPeriod)
	guess.DueDate = &due
	guess.RenewalCount++
	guess.LastUpdated = now

	return start(ctx, c, c.books, backend.OpRenew, id, prev, guess, 0,
		func(ctx context.Context) (campus.LibraryBook, error) {
			return c.backend.RenewBook(ctx, prev.Clone())
		}), nil
}

// AdvanceThesis moves thesis id one step through the defense workflow and
// publishes the new record. There is no remote confirmation for theses.
func (c *Controller) AdvanceThesis(id string) (campus.ThesisDefense, error) {
	t, err := c.store.AdvanceThesis(id)
	if err != nil {
		return campus.ThesisDefense{}, err
	}
	glog.Infof("thesis %s advanced to %s", id, t.Status)
	if c.opts.Publisher != nil {
		c.opts.Publisher.Publish(push.ThesisUpdate, t)
	}
	return t, nil
}

func (c *Controller) track(id string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] += delta
	if c.pending[id] <= 0 {
		delete(c.pending, id)
	}
}

// start applies guess, then confirms or rolls back in a goroutine. The remote
// call runs on a context that ignores the caller's cancellation.
func start[T any](
	ctx context.Context,
	c *Controller,
	f *family[T],
	op backend.Op,
	id string,
	prev, guess T,
	fine int,
	call func(context.Context) (T, error),
) *Task {
	task := newTask(op, f.kind, id)
	began := time.Now()

	c.applyMu.Lock()
	c.seq++
	seq := c.seq
	f.begin(id, seq, prev, guess)
	c.track(id, 1)
	f.replace(guess)
	f.mirror(guess)
	task.setPhase(PhaseApplied)
	c.applyMu.Unlock()

	c.opts.Metrics.MutationStarted()
	glog.V(1).Infof("mutation %s: %s %s applied optimistically", task.id, op, id)

	remoteCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		server, err := call(remoteCtx)
		if err == nil {
			if got := f.key(server); got != id {
				err = fmt.Errorf("%w: got %q for %q", ErrEntityMismatch, got, id)
			}
		}

		c.applyMu.Lock()
		out := f.settle(id, seq, server, err == nil)
		c.track(id, -1)
		c.applyMu.Unlock()

		c.cache.Invalidate(f.kind)

		res := Result{Entity: out.value, Fine: fine}
		outcome := metrics.OutcomeConfirmed
		if err != nil {
			res.Phase = PhaseRolledBack
			res.Err = fmt.Errorf("%w: %w", ErrRolledBack, err)
			res.Entity = prev
			outcome = metrics.OutcomeRolledBack
			glog.Warningf("mutation %s: %s %s rolled back: %v", task.id, op, id, err)
			if out.conflict {
				c.opts.Metrics.RollbackConflict(string(op))
				glog.Warningf("mutation %s: rollback of %s %s overwrote a concurrent change", task.id, f.kind, id)
			}
		} else {
			res.Phase = PhaseConfirmed
			res.Entity = server
			res.Superseded = !out.written && out.newer
			if res.Superseded {
				outcome = metrics.OutcomeSuperseded
			}
			glog.V(1).Infof("mutation %s: %s %s confirmed", task.id, op, id)
		}
		c.opts.Metrics.MutationSettled(string(op), outcome, time.Since(began))

		task.finish(res)

		if err == nil && f.kind == campus.KindGrade && c.opts.Publisher != nil {
			c.opts.Publisher.Publish(push.GradeUpdate, res.Entity)
		}
		if c.opts.OnSettle != nil {
			c.opts.OnSettle(task.result)
		}
	}()
	return task
}

// entry is the controller's bookkeeping for one entity with mutations in
// flight. base is the last authoritative value; pending holds the optimistic
// guess of every unsettled mutation keyed by sequence number.
type entry[T any] struct {
	base    T
	baseSeq uint64
	pending map[uint64]T
	shown   T
}

type family[T any] struct {
	kind    campus.Kind
	key     func(T) string
	get     func(string) (T, bool)
	replace func(T) bool
	mirror  func(T)
	entries map[string]*entry[T]
}

type settlement[T any] struct {
	value    T
	written  bool
	newer    bool
	conflict bool
}

// begin records guess as the newest visible value for id.
func (f *family[T]) begin(id string, seq uint64, prev, guess T) {
	e, ok := f.entries[id]
	if !ok {
		e = &entry[T]{base: prev, pending: make(map[uint64]T)}
		f.entries[id] = e
	}
	e.pending[seq] = guess
	e.shown = guess
}

// settle retires mutation seq and writes the value that should now be
// visible: the newest of the unsettled guesses and the authoritative base.
// A confirmed result becomes the base unless a later mutation already
// confirmed.
func (f *family[T]) settle(id string, seq uint64, server T, ok bool) settlement[T] {
	e := f.entries[id]
	delete(e.pending, seq)
	if ok && seq > e.baseSeq {
		e.base, e.baseSeq = server, seq
	}

	visible, top := e.base, e.baseSeq
	for s, g := range e.pending {
		if s > top {
			visible, top = g, s
		}
	}
	out := settlement[T]{value: visible, newer: top > seq}

	if !reflect.DeepEqual(visible, e.shown) {
		if cur, found := f.get(id); found && !reflect.DeepEqual(cur, e.shown) {
			out.conflict = true
		}
		if !f.replace(visible) {
			glog.Warningf("%s %s left the store before its mutation settled", f.kind, id)
		}
		f.mirror(visible)
		e.shown = visible
		out.written = true
	}
	if len(e.pending) == 0 {
		delete(f.entries, id)
	}
	return out
}
