package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/quad/internal/config"
	"github.com/five82/quad/internal/optimistic"
	"github.com/five82/quad/internal/persist"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	cfg.Simulator.Seed = 7
	cfg.Simulator.LatencyScale = 0
	cfg.Push.Interval = 10 * time.Millisecond
	cfg.Push.StartupDelay = 0
	cfg.Push.Seed = 7
	cfg.Storage = config.Storage{Driver: "file", Path: filepath.Join(t.TempDir(), "state")}
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := New(cfg, Options{PrefsPath: filepath.Join(t.TempDir(), "prefs.toml")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_RejectsMissingCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Mode = config.ModeHTTP

	_, err := New(cfg, Options{})
	require.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestNew_StartsFromSeedAndPersistsOnClose(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	snap := a.Store.Snapshot()
	require.NotEmpty(t, snap.Grades)
	assert.False(t, snap.Sync.IsSyncing)

	task, err := a.Controller.UpdateGrade(context.Background(), snap.Grades[0].ID, 100, "A")
	require.NoError(t, err)
	_, _ = task.Wait(context.Background())
	require.NoError(t, a.Close())

	storage, err := persist.Open(cfg.Storage.Driver, cfg.Storage.Path)
	require.NoError(t, err)
	defer storage.Close()
	saved, err := persist.Load(storage)
	require.NoError(t, err)
	require.Len(t, saved.Grades, len(snap.Grades))
	assert.Equal(t, 100.0, saved.Grades[0].Score)
	assert.Equal(t, "A", saved.Grades[0].Letter)
}

func TestOnSettle_FansOutAndUnsubscribes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulator.SuccessRates = map[string]float64{"renew_book": 0}
	a := newTestApp(t, cfg)

	var first, second []optimistic.Result
	unsub := a.OnSettle(func(r optimistic.Result) { first = append(first, r) })
	a.OnSettle(func(r optimistic.Result) { second = append(second, r) })

	task, err := a.Controller.RenewBook(context.Background(), "book-sicp")
	require.NoError(t, err)
	res, err := task.Wait(context.Background())
	require.ErrorIs(t, err, optimistic.ErrRolledBack)
	a.Controller.Wait()

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, res.TaskID, first[0].TaskID)
	assert.NotEmpty(t, a.Store.Snapshot().Sync.Errors, "failed mutation should be logged as a sync error")

	unsub()
	task, err = a.Controller.UpdateGrade(context.Background(), "grade-cs301", 90, "A")
	require.NoError(t, err)
	_, _ = task.Wait(context.Background())
	a.Controller.Wait()
	assert.Len(t, first, 1)
	assert.Len(t, second, 2)
}

func TestSimulate_RunsHeadless(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	var out bytes.Buffer
	sum, err := a.Simulate(context.Background(), SimulateOptions{
		Duration: 300 * time.Millisecond,
		Every:    15 * time.Millisecond,
		Seed:     3,
		Out:      &out,
	})
	require.NoError(t, err)

	assert.Positive(t, sum.PushMessages)
	assert.Positive(t, sum.Started+sum.Refused)
	assert.Equal(t, sum.Started, sum.Confirmed+sum.RolledBack)
	assert.Contains(t, out.String(), "push bus_update")
	assert.False(t, a.Push.Connected(), "push channel should be disconnected after the run")
}

func TestReset_RemovesSavedState(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	require.NoError(t, a.Close())

	require.NoError(t, Reset(cfg))

	storage, err := persist.Open(cfg.Storage.Driver, cfg.Storage.Path)
	require.NoError(t, err)
	defer storage.Close()
	_, err = persist.Load(storage)
	require.ErrorIs(t, err, persist.ErrNoState)
}
