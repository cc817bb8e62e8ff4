package optimistic

import (
	"context"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/five82/quad/internal/backend"
	"github.com/five82/quad/internal/campus"
)

// Phase is the lifecycle position of one mutation.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseApplied
	PhaseConfirmed
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseApplied:
		return "applied"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Settled reports whether p is terminal.
func (p Phase) Settled() bool {
	return p == PhaseConfirmed || p == PhaseRolledBack
}

// Result describes a settled mutation.
type Result struct {
	TaskID   string
	Op       backend.Op
	Kind     campus.Kind
	EntityID string
	Phase    Phase

	// Entity is the settled value: the server copy after a confirmation or
	// the restored snapshot after a rollback. It is a campus.Grade or a
	// campus.LibraryBook depending on Kind.
	Entity any

	// Superseded is set when the confirmation arrived while a newer guess for
	// the same entity was still in flight, so the store kept the newer guess.
	Superseded bool

	// Fine is the fine owed at the moment a return was issued.
	Fine int

	Err error
}

// Task is the future for one in-flight mutation.
type Task struct {
	id       string
	op       backend.Op
	kind     campus.Kind
	entityID string

	phase  atomic.Int32
	done   chan struct{}
	result Result
}

func newTask(op backend.Op, kind campus.Kind, entityID string) *Task {
	return &Task{
		id:       ulid.Make().String(),
		op:       op,
		kind:     kind,
		entityID: entityID,
		done:     make(chan struct{}),
	}
}

func (t *Task) ID() string            { return t.id }
func (t *Task) Op() backend.Op        { return t.op }
func (t *Task) Kind() campus.Kind     { return t.kind }
func (t *Task) EntityID() string      { return t.entityID }
func (t *Task) Phase() Phase          { return Phase(t.phase.Load()) }
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the mutation settles or ctx is done. Giving up on the
// wait does not cancel the remote call. The returned error is Result.Err.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, t.result.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Task) setPhase(p Phase) {
	t.phase.Store(int32(p))
}

func (t *Task) finish(r Result) {
	r.TaskID = t.id
	r.Op = t.op
	r.Kind = t.kind
	r.EntityID = t.entityID
	t.result = r
	t.setPhase(r.Phase)
	close(t.done)
}
