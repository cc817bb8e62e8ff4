// Package persist stores the portal state as a single JSON blob under a fixed
// key and restores it at startup.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/state"
)

// Key is the namespace key the state blob is saved under.
const Key = "quad.portal.state"

// ErrNoState is returned by Load when nothing usable has been saved.
var ErrNoState = errors.New("no saved state")

// Storage is a durable key-value blob store.
type Storage interface {
	Get(key string) ([]byte, error) // returns ErrNoState when the key is absent
	Put(key string, blob []byte) error
	Delete(key string) error
	Close() error
}

// Load reads and decodes the saved state. Missing, undecodable or invalid
// blobs all yield ErrNoState so the caller starts from defaults.
func Load(s Storage) (campus.State, error) {
	blob, err := s.Get(Key)
	if err != nil {
		return campus.State{}, err
	}
	var st campus.State
	if err := json.Unmarshal(blob, &st); err != nil {
		glog.Warningf("discarding saved state: %v", err)
		return campus.State{}, fmt.Errorf("%w: decode: %v", ErrNoState, err)
	}
	if err := st.Validate(); err != nil {
		glog.Warningf("discarding saved state: %v", err)
		return campus.State{}, fmt.Errorf("%w: %v", ErrNoState, err)
	}
	return st, nil
}

// Save encodes st and writes it under Key.
func Save(s Storage, st campus.State) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.Put(Key, blob); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Restore returns the saved state, or fallback when none can be used.
func Restore(s Storage, fallback func() (campus.State, error)) (campus.State, bool, error) {
	st, err := Load(s)
	if err == nil {
		return st, true, nil
	}
	if !errors.Is(err, ErrNoState) {
		glog.Warningf("state storage unavailable, using defaults: %v", err)
	}
	st, err = fallback()
	return st, false, err
}

// Autosaver writes the store to storage after every mutation. Bursts of
// mutations are coalesced: at most one save runs at a time and a save that
// finishes while more changes arrived is followed by exactly one more.
type Autosaver struct {
	store   *state.Store
	storage Storage
	delay   time.Duration

	mu      sync.Mutex
	dirty   bool
	running bool
	idle    *sync.Cond
	unsub   func()
	lastErr error
}

// NewAutosaver subscribes to store. delay optionally batches writes that
// arrive close together; zero saves immediately.
func NewAutosaver(store *state.Store, storage Storage, delay time.Duration) *Autosaver {
	a := &Autosaver{store: store, storage: storage, delay: delay}
	a.idle = sync.NewCond(&a.mu)
	a.unsub = store.Subscribe(func(state.Change) { a.schedule() })
	return a
}

func (a *Autosaver) schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirty = true
	if a.running {
		return
	}
	a.running = true
	go a.loop()
}

func (a *Autosaver) loop() {
	for {
		if a.delay > 0 {
			time.Sleep(a.delay)
		}
		a.mu.Lock()
		if !a.dirty {
			a.running = false
			a.idle.Broadcast()
			a.mu.Unlock()
			return
		}
		a.dirty = false
		a.mu.Unlock()

		err := Save(a.storage, a.store.Snapshot())
		if err != nil {
			glog.Errorf("autosave: %v", err)
		} else {
			glog.V(2).Infof("autosave: state written")
		}
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()
	}
}

// Flush blocks until no save is pending and returns the last save error.
func (a *Autosaver) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for a.running {
		a.idle.Wait()
	}
	return a.lastErr
}

// Close stops listening for changes and flushes any pending save.
func (a *Autosaver) Close() error {
	a.unsub()
	return a.Flush()
}
