package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/five82/quad/internal/backend"
	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/config"
	"github.com/five82/quad/internal/metrics"
	"github.com/five82/quad/internal/optimistic"
	"github.com/five82/quad/internal/persist"
	"github.com/five82/quad/internal/prefs"
	"github.com/five82/quad/internal/push"
	"github.com/five82/quad/internal/state"
	"github.com/five82/quad/internal/ui"
)

// Options configure the quad application.
type Options struct {
	PrefsPath string        // empty uses default ~/.config/quad/prefs.toml
	SyncEvery time.Duration // zero uses default
	Now       func() time.Time
}

// App wires the store, persistence, backend, push channel and controller
// together. Build it with New, drive it with Run or Simulate, and release it
// with Close.
type App struct {
	Config     config.Config
	Prefs      prefs.Prefs
	Store      *state.Store
	Metrics    *metrics.Recorder
	Push       *push.Channel
	Controller *optimistic.Controller

	opts    Options
	storage persist.Storage
	saver   *persist.Autosaver

	hooksMu sync.Mutex
	hooks   map[int]func(optimistic.Result)
	nextID  int

	closeOnce sync.Once
}

// New validates cfg and builds every component. Nothing runs until Run or
// Simulate is called.
func New(cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SyncEvery <= 0 {
		opts.SyncEvery = defaultSyncInterval
	}

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return nil, fmt.Errorf("load prefs: %w", err)
	}

	storage, err := persist.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		glog.Warningf("storage %s at %s unavailable, state will not survive restart: %v",
			cfg.Storage.Driver, cfg.Storage.Path, err)
		storage = persist.NewMemoryStorage()
	}

	initial, restored, err := persist.Restore(storage, func() (campus.State, error) {
		return state.Seed(opts.Now())
	})
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("seed state: %w", err)
	}
	initial.Sync.IsSyncing = false
	if restored {
		glog.Infof("restored saved state from %s storage", cfg.Storage.Driver)
	} else {
		glog.Infof("starting from seed state")
	}

	a := &App{
		Config:  cfg,
		Prefs:   userPrefs,
		Metrics: metrics.New(),
		opts:    opts,
		storage: storage,
		hooks:   make(map[int]func(optimistic.Result)),
	}

	a.Store = state.New(initial, state.WithClock(opts.Now))
	a.Store.Subscribe(func(c state.Change) {
		a.Metrics.StoreChange(string(c.Kind), string(c.Op))
	})
	a.saver = persist.NewAutosaver(a.Store, storage, 0)

	be, err := newBackend(cfg, opts.Now)
	if err != nil {
		_ = a.saver.Close()
		_ = storage.Close()
		return nil, err
	}

	startupDelay := cfg.Push.StartupDelay
	if startupDelay == 0 {
		startupDelay = -1
	}
	a.Push = push.New(a.Store, push.Options{
		Interval:     cfg.Push.Interval,
		StartupDelay: startupDelay,
		Seed:         cfg.Push.Seed,
		Metrics:      a.Metrics,
		Now:          opts.Now,
	})

	a.Controller = optimistic.New(a.Store, be, nil, optimistic.Options{
		Metrics:   a.Metrics,
		Publisher: a.Push,
		OnSettle:  a.settled,
		Now:       opts.Now,
	})
	return a, nil
}

func newBackend(cfg config.Config, now func() time.Time) (backend.Backend, error) {
	switch cfg.Backend.Mode {
	case config.ModeHTTP:
		client, err := backend.NewClient(cfg.Backend.URL, backend.Credentials{
			StudentID: cfg.Backend.StudentID,
			Secret:    cfg.Backend.TokenSecret,
		})
		if err != nil {
			return nil, fmt.Errorf("init backend client: %w", err)
		}
		return client, nil
	default:
		simOpts := []backend.SimulatorOption{
			backend.WithClock(now),
			backend.WithLatencyScale(cfg.Simulator.LatencyScale),
		}
		if cfg.Simulator.Seed != 0 {
			simOpts = append(simOpts, backend.WithSeed(cfg.Simulator.Seed))
		}
		for name, p := range cfg.Simulator.SuccessRates {
			simOpts = append(simOpts, backend.WithSuccessRate(backend.Op(name), p))
		}
		return backend.NewSimulator(simOpts...), nil
	}
}

// OnSettle registers fn to run after every settled mutation. The returned
// function removes it.
func (a *App) OnSettle(fn func(optimistic.Result)) (unsubscribe func()) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	id := a.nextID
	a.nextID++
	a.hooks[id] = fn
	return func() {
		a.hooksMu.Lock()
		defer a.hooksMu.Unlock()
		delete(a.hooks, id)
	}
}

func (a *App) settled(res optimistic.Result) {
	if res.Err != nil {
		a.Store.AddSyncError(fmt.Sprintf("%s %s: %v", res.Op, res.EntityID, res.Err))
	}
	a.hooksMu.Lock()
	hooks := make([]func(optimistic.Result), 0, len(a.hooks))
	for id := 0; id < a.nextID; id++ {
		if fn, ok := a.hooks[id]; ok {
			hooks = append(hooks, fn)
		}
	}
	a.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(res)
	}
}

// Run connects the push channel, starts the sync heartbeat and the optional
// metrics endpoint, and shows the dashboard until the user quits or ctx is
// cancelled.
func (a *App) Run(ctx context.Context, prefsPath string) error {
	return a.supervise(ctx, func(ctx context.Context) error {
		return ui.Run(ui.Options{
			Context:    ctx,
			Store:      a.Store,
			Controller: a.Controller,
			Push:       a.Push,
			Prefs:      a.Prefs,
			PrefsPath:  prefsPath,
			LogPath:    a.Config.InfoLogPath(),
			OnSettle:   a.OnSettle,
			Now:        a.opts.Now,
		})
	})
}

// supervise runs the background services alongside front. When front
// returns, everything else is stopped.
func (a *App) supervise(ctx context.Context, front func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	a.Push.Connect(gctx)

	g.Go(func() error {
		return runHeartbeat(gctx, a.Store, a.saver, a.opts.SyncEvery, a.opts.Now)
	})
	if a.Config.Metrics.Listen != "" {
		g.Go(func() error { return a.serveMetrics(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return front(gctx)
	})

	err := g.Wait()
	a.Push.Disconnect()
	return err
}

func (a *App) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	srv := &http.Server{
		Addr:              a.Config.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	glog.Infof("metrics listening on %s", a.Config.Metrics.Listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		// The dashboard keeps running without metrics.
		glog.Errorf("metrics server: %v", err)
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

// Close waits for in-flight mutations to settle, writes the final state and
// releases storage.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.Push.Disconnect()
		a.Controller.Wait()
		saveErr := a.saver.Close()
		closeErr := a.storage.Close()
		err = errors.Join(saveErr, closeErr)
	})
	return err
}

// Reset deletes the saved state so the next start uses the seed data.
func Reset(cfg config.Config) error {
	storage, err := persist.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = storage.Close() }()
	if err := storage.Delete(persist.Key); err != nil {
		return fmt.Errorf("delete saved state: %w", err)
	}
	glog.Infof("saved state removed from %s storage", cfg.Storage.Driver)
	return nil
}
