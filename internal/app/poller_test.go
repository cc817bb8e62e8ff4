package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/five82/quad/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	// Verify that backoff never exceeds maxBackoff regardless of input
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type fakeFlusher struct {
	err   error
	calls int
}

func (f *fakeFlusher) Flush() error {
	f.calls++
	return f.err
}

func heartbeatStore(t *testing.T) *state.Store {
	t.Helper()
	st, err := state.Seed(time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return state.New(st)
}

func TestSyncOnce_RecordsLastSync(t *testing.T) {
	store := heartbeatStore(t)
	at := time.Date(2025, 3, 20, 12, 5, 0, 0, time.UTC)

	if err := syncOnce(store, &fakeFlusher{}, func() time.Time { return at }); err != nil {
		t.Fatalf("syncOnce returned %v", err)
	}
	sync := store.Snapshot().Sync
	if sync.IsSyncing {
		t.Fatalf("IsSyncing still set after sync")
	}
	if sync.LastSync == nil || !sync.LastSync.Equal(at) {
		t.Fatalf("LastSync = %v, want %v", sync.LastSync, at)
	}
}

func TestSyncOnce_FailureAddsSyncError(t *testing.T) {
	store := heartbeatStore(t)

	err := syncOnce(store, &fakeFlusher{err: errors.New("disk full")}, time.Now)
	if err == nil {
		t.Fatalf("syncOnce returned nil, want error")
	}
	sync := store.Snapshot().Sync
	if sync.IsSyncing {
		t.Fatalf("IsSyncing still set after failed sync")
	}
	if len(sync.Errors) == 0 || !strings.Contains(sync.Errors[len(sync.Errors)-1], "disk full") {
		t.Fatalf("SyncErrors = %v, want the flush error", sync.Errors)
	}
	if sync.LastSync != nil {
		t.Fatalf("LastSync = %v after failed first sync, want nil", sync.LastSync)
	}
}

func TestRunHeartbeat_StopsOnCancel(t *testing.T) {
	store := heartbeatStore(t)
	saver := &fakeFlusher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runHeartbeat(ctx, store, saver, 5*time.Millisecond, nil) }()

	deadline := time.After(time.Second)
	for store.Snapshot().Sync.LastSync == nil {
		select {
		case <-deadline:
			t.Fatalf("heartbeat never synced")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runHeartbeat returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runHeartbeat did not stop after cancel")
	}
}
