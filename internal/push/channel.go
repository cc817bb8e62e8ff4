package push

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/metrics"
	"github.com/five82/quad/internal/state"
)

// MessageType is the topic of a push message.
type MessageType string

const (
	BusUpdate       MessageType = "bus_update"
	OccupancyUpdate MessageType = "occupancy_update"
	GradeUpdate     MessageType = "grade_update"
	ThesisUpdate    MessageType = "thesis_update"
)

// Message is one server-to-client notification.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	DefaultInterval     = 5 * time.Second
	DefaultStartupDelay = time.Second

	// Largest per-tick changes. Occupancy steps are rounded, so the observable
	// bound is the rounded value.
	MaxPositionJitter     = 0.0005
	MaxSpeedStep          = 5.0
	MaxETAStep            = 1.0
	MaxBusOccupancyStep   = 2.5
	MaxPlaceOccupancyStep = 5.0
)

// Options configure a Channel.
type Options struct {
	Interval     time.Duration // zero uses DefaultInterval
	StartupDelay time.Duration // zero uses DefaultStartupDelay; negative disables the delay
	Seed         uint64        // zero seeds from the clock
	Metrics      *metrics.Recorder
	Now          func() time.Time
}

type listener struct {
	id uint64
	fn func(Message)
}

// Channel simulates a real-time feed: every tick it nudges bus positions and
// place occupancy in the store, then publishes what changed.
type Channel struct {
	store *state.Store
	opts  Options

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	lmu       sync.Mutex
	listeners map[MessageType][]listener
	nextID    uint64
}

// New builds a disconnected channel writing into store.
func New(store *state.Store, opts Options) *Channel {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StartupDelay == 0 {
		opts.StartupDelay = DefaultStartupDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Channel{
		store:     store,
		opts:      opts,
		rng:       rand.New(rand.NewPCG(seed, seed>>1|1)),
		listeners: make(map[MessageType][]listener),
	}
}

// Connect starts the periodic task. Calling it while connected does nothing.
// The first tick happens one interval after the startup delay.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running() {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	go c.run(runCtx, done)
	glog.V(1).Infof("push: connecting (delay %v, interval %v)", c.opts.StartupDelay, c.opts.Interval)
}

// Disconnect stops the periodic task and waits for it to exit.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	glog.V(1).Infof("push: disconnected")
}

// Connected reports whether the periodic task is running.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running()
}

func (c *Channel) running() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if c.opts.StartupDelay > 0 {
		handshake := time.NewTimer(c.opts.StartupDelay)
		select {
		case <-ctx.Done():
			handshake.Stop()
			return
		case <-handshake.C:
		}
	}
	glog.Infof("push: connected")

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// On registers fn for messages of type t. Listeners of one type run in
// registration order. The returned func removes exactly this listener.
func (c *Channel) On(t MessageType, fn func(Message)) (unsubscribe func()) {
	c.lmu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[t] = append(c.listeners[t], listener{id: id, fn: fn})
	c.lmu.Unlock()

	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		ls := c.listeners[t]
		for i, l := range ls {
			if l.id == id {
				c.listeners[t] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers a message of type t to its listeners.
func (c *Channel) Publish(t MessageType, data any) {
	msg := Message{
		ID:        ulid.Make().String(),
		Type:      t,
		Data:      data,
		Timestamp: c.opts.Now(),
	}
	c.lmu.Lock()
	ls := append([]listener(nil), c.listeners[t]...)
	c.lmu.Unlock()

	c.opts.Metrics.PushMessage(string(t))
	for _, l := range ls {
		l.fn(msg)
	}
}

// Tick applies one round of deltas to the store and publishes the results.
func (c *Channel) Tick() {
	snap := c.store.Snapshot()

	buses := make([]campus.BusLocation, 0, len(snap.Buses))
	for _, b := range snap.Buses {
		if !c.store.UpdateBus(b.ID, c.nudgeBus) {
			continue
		}
		if updated, ok := c.store.Bus(b.ID); ok {
			buses = append(buses, updated)
		}
	}

	places := make([]campus.CampusLocation, 0, len(snap.Locations))
	for _, l := range snap.Locations {
		if !l.Tracked() {
			continue
		}
		if !c.store.UpdateLocation(l.ID, c.nudgeLocation) {
			continue
		}
		if updated, ok := c.store.Location(l.ID); ok {
			places = append(places, updated)
		}
	}

	c.opts.Metrics.PushTick()
	glog.V(2).Infof("push: tick moved %d buses, %d places", len(buses), len(places))

	if len(buses) > 0 {
		c.Publish(BusUpdate, buses)
	}
	if len(places) > 0 {
		c.Publish(OccupancyUpdate, places)
	}
}

// spread returns a uniform value in [-limit, limit).
func (c *Channel) spread(limit float64) float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return (c.rng.Float64() - 0.5) * 2 * limit
}

func (c *Channel) unit() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64()
}

// nudgeBus runs under the store lock; the store clamps afterwards.
func (c *Channel) nudgeBus(b *campus.BusLocation) {
	b.Latitude += c.spread(MaxPositionJitter)
	b.Longitude += c.spread(MaxPositionJitter)
	b.Speed += c.spread(MaxSpeedStep)
	b.ETA -= c.unit() * MaxETAStep
	b.Occupancy += int(math.Round(c.spread(MaxBusOccupancyStep)))
}

func (c *Channel) nudgeLocation(l *campus.CampusLocation) {
	if !l.Tracked() {
		return
	}
	next := *l.Occupancy + int(math.Round(c.spread(MaxPlaceOccupancyStep)))
	l.Occupancy = &next
}
