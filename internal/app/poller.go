package app

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/five82/quad/internal/state"
)

const (
	defaultSyncInterval = 15 * time.Second
	maxBackoff          = 30 * time.Second
)

// flusher is the part of persist.Autosaver the heartbeat needs.
type flusher interface {
	Flush() error
}

// runHeartbeat marks the store as syncing at a fixed cadence, waits for the
// autosaver to drain and records the outcome in the store's sync state. Failed
// syncs back off exponentially. It returns when ctx is cancelled.
func runHeartbeat(ctx context.Context, store *state.Store, saver flusher, interval time.Duration, now func() time.Time) error {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	if now == nil {
		now = time.Now
	}

	failures := 0
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := syncOnce(store, saver, now); err != nil {
			failures++
			glog.Warningf("sync failed (%d in a row): %v", failures, err)
		} else {
			failures = 0
		}
		timer.Reset(calculateBackoff(failures, interval))
	}
}

// syncOnce runs a single heartbeat.
func syncOnce(store *state.Store, saver flusher, now func() time.Time) error {
	store.SetSyncing(true)
	err := saver.Flush()
	store.SetSyncing(false)
	if err != nil {
		err = fmt.Errorf("save state: %w", err)
		store.AddSyncError(err.Error())
		return err
	}
	store.SetLastSync(now())
	glog.V(2).Infof("sync: state saved")
	return nil
}

// calculateBackoff doubles base for every consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
