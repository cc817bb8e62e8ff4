// Package app is the composition root for quad.
//
// # Overview
//
// New turns a validated config.Config into a running system: it loads user
// preferences, opens durable storage (falling back to memory when the
// configured driver cannot be opened), restores the saved state or seeds a
// fresh one, and builds the store, autosaver, backend, push channel and
// optimistic controller. Nothing starts until Run or Simulate is called.
//
// # Components
//
//   - app.go: New, Run, Close, Reset and the settle hook fan-out
//   - poller.go: the sync heartbeat and its backoff
//   - simulate.go: headless mode that drives random mutations
//
// # Data Flow
//
//	┌──────────────┐   writes    ┌──────────────┐  change  ┌─────────────┐
//	│ push.Channel │ ──────────▶ │ state.Store  │ ───────▶ │ Autosaver   │
//	└──────────────┘             └──────────────┘          └──────┬──────┘
//	                                 ▲      │                     │ Flush
//	             optimistic writes   │      │ snapshots           ▼
//	┌──────────────┐                 │      ▼              ┌─────────────┐
//	│  Controller  │ ────────────────┘   ui.Model          │  heartbeat  │
//	└──────────────┘                                       └─────────────┘
//
// # Lifecycle
//
// Run and Simulate share one supervisor built on errgroup. The push channel
// connects first, then the heartbeat, the optional metrics endpoint and the
// front end (the dashboard or the mutation driver) run side by side. When the
// front end returns, the shared context is cancelled and the others wind
// down. Close must still be called: it waits for in-flight mutations, writes
// the final state and closes storage.
//
// # Heartbeat
//
// Every SyncEvery the heartbeat sets the store's syncing flag, waits for
// pending autosaves and records either LastSync or a sync error. Consecutive
// failures back off exponentially up to 30 seconds.
package app
