package push

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/state"
)

func newSeededStore(t *testing.T) *state.Store {
	t.Helper()
	seed, err := state.Seed(time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return state.New(seed)
}

func TestTick_KeepsBusesWithinBounds(t *testing.T) {
	store := newSeededStore(t)
	ch := New(store, Options{Seed: 42})

	for i := 0; i < 1000; i++ {
		ch.Tick()
		for _, b := range store.Snapshot().Buses {
			require.GreaterOrEqual(t, b.Occupancy, 0, "trial %d bus %s", i, b.ID)
			require.LessOrEqual(t, b.Occupancy, b.Capacity, "trial %d bus %s", i, b.ID)
			require.GreaterOrEqual(t, b.Speed, 0.0)
			require.LessOrEqual(t, b.Speed, campus.MaxSpeed)
			require.GreaterOrEqual(t, b.ETA, campus.MinETA)
		}
		for _, l := range store.Snapshot().Locations {
			if !l.Tracked() {
				continue
			}
			require.GreaterOrEqual(t, *l.Occupancy, 0)
			require.LessOrEqual(t, *l.Occupancy, *l.Capacity)
		}
	}
}

func TestTick_DeltasStayWithinPerTickBounds(t *testing.T) {
	store := newSeededStore(t)
	ch := New(store, Options{Seed: 9})

	busStep := int(math.Round(MaxBusOccupancyStep))
	placeStep := int(math.Round(MaxPlaceOccupancyStep))

	prev := store.Snapshot()
	for i := 0; i < 200; i++ {
		ch.Tick()
		next := store.Snapshot()
		for j, b := range next.Buses {
			p := prev.Buses[j]
			assert.LessOrEqual(t, abs(b.Occupancy-p.Occupancy), busStep)
			assert.LessOrEqual(t, math.Abs(b.Latitude-p.Latitude), MaxPositionJitter+1e-12)
			assert.LessOrEqual(t, math.Abs(b.Longitude-p.Longitude), MaxPositionJitter+1e-12)
			assert.LessOrEqual(t, math.Abs(b.Speed-p.Speed), MaxSpeedStep+1e-9)
			assert.LessOrEqual(t, p.ETA-b.ETA, MaxETAStep+1e-9)
			assert.LessOrEqual(t, b.ETA, p.ETA)
		}
		for j, l := range next.Locations {
			if !l.Tracked() {
				assert.Equal(t, prev.Locations[j], l, "untracked location must not change")
				continue
			}
			assert.LessOrEqual(t, abs(*l.Occupancy-*prev.Locations[j].Occupancy), placeStep)
		}
		prev = next
	}
}

func TestTick_PublishesTypedMessages(t *testing.T) {
	store := newSeededStore(t)
	ch := New(store, Options{Seed: 1})

	var buses []campus.BusLocation
	var places []campus.CampusLocation
	ch.On(BusUpdate, func(m Message) {
		assert.Equal(t, BusUpdate, m.Type)
		assert.NotEmpty(t, m.ID)
		buses = m.Data.([]campus.BusLocation)
	})
	ch.On(OccupancyUpdate, func(m Message) { places = m.Data.([]campus.CampusLocation) })

	ch.Tick()
	assert.Len(t, buses, len(store.Snapshot().Buses))
	assert.Len(t, places, 3, "only locations with capacity and occupancy are updated")
	// published data matches what the store holds
	got, _ := store.Bus(buses[0].ID)
	assert.Equal(t, got, buses[0])
}

func TestOn_OrderAndUnsubscribe(t *testing.T) {
	ch := New(state.New(campus.State{}), Options{Seed: 1})

	var order []string
	unsubFirst := ch.On(GradeUpdate, func(Message) { order = append(order, "first") })
	ch.On(GradeUpdate, func(Message) { order = append(order, "second") })
	ch.On(ThesisUpdate, func(Message) { order = append(order, "thesis") })

	ch.Publish(GradeUpdate, nil)
	unsubFirst()
	ch.Publish(GradeUpdate, nil)

	assert.Equal(t, []string{"first", "second", "second"}, order)
}

func TestConnect_IsIdempotentAndRestartable(t *testing.T) {
	store := newSeededStore(t)
	ch := New(store, Options{Seed: 3, Interval: 5 * time.Millisecond, StartupDelay: -1})

	var ticks atomic.Int32
	ch.On(BusUpdate, func(Message) { ticks.Add(1) })

	ch.Connect(context.Background())
	ch.mu.Lock()
	firstDone := ch.done
	ch.mu.Unlock()
	ch.Connect(context.Background())
	assert.True(t, ch.Connected())
	ch.mu.Lock()
	assert.Equal(t, firstDone, ch.done, "second Connect must not start another task")
	ch.mu.Unlock()

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	ch.Disconnect()
	assert.False(t, ch.Connected())
	stopped := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load(), "no ticks after Disconnect")

	ch.Disconnect()
	ch.Connect(context.Background())
	require.Eventually(t, func() bool { return ticks.Load() > stopped }, time.Second, time.Millisecond)
	ch.Disconnect()
}

func TestConnect_WaitsForStartupDelay(t *testing.T) {
	store := newSeededStore(t)
	ch := New(store, Options{Seed: 3, Interval: time.Millisecond, StartupDelay: 200 * time.Millisecond})

	var ticks atomic.Int32
	ch.On(BusUpdate, func(Message) { ticks.Add(1) })

	ch.Connect(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, ticks.Load(), "ticked during handshake delay")
	ch.Disconnect()
}

func TestConnect_StopsWithContext(t *testing.T) {
	ch := New(newSeededStore(t), Options{Seed: 3, Interval: time.Millisecond, StartupDelay: -1})
	ctx, cancel := context.WithCancel(context.Background())
	ch.Connect(ctx)
	cancel()
	require.Eventually(t, func() bool { return !ch.Connected() }, time.Second, time.Millisecond)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
