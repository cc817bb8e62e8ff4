// Package state provides the thread-safe shared store for the portal.
//
// # Overview
//
// The Store holds the canonical copy of every entity (grades, buses, library
// books, campus locations, thesis records) plus the sync-status block. Two
// independent producers write into it:
//
//	Push channel (ticker):          Mutation controller (user actions):
//	┌──────────────────┐            ┌──────────────────────┐
//	│ UpdateBus()      │            │ UpdateBook()  apply  │
//	│ UpdateLocation() │            │   ... remote call ...│
//	│      ↓           │            │ ReplaceBook() settle │
//	│ repeat every 5s  │            │                      │
//	└────────┬─────────┘            └──────────┬───────────┘
//	         └──────────→  Store  ←────────────┘
//	                        │  (mutex)
//	                        ↓
//	          Snapshot() / Subscribe() → UI, autosave
//
// # Actions
//
// Entities are only changed through named actions:
//
//   - Update<Kind>(id, fn): run fn against the stored entity under the write
//     lock, then refresh LastUpdated. Unknown ids are a silent no-op.
//   - Replace<Kind>(v): exact whole-entity overwrite, LastUpdated included.
//     Used to reconcile with a server result or roll back to a snapshot.
//   - AddGrade, AddThesis, RemoveGrade: append or filter out by id.
//   - AdvanceThesis: one-step status transition.
//   - SetSyncing, SetLastSync, AddSyncError, ClearSyncErrors.
//
// Each action is a single critical section, so a reader never sees a
// half-applied update. Buses and locations are clamped inside the same
// critical section.
//
// # Notifications
//
// Subscribe registers a callback that runs after every successful mutation,
// before the mutating call returns. Callbacks run outside the store lock and
// may call Snapshot or any other read method. A mutation that changes nothing
// (unknown id, rejected add) does not notify.
//
// # Defensive Copying
//
// Snapshot and the single-entity getters return deep copies. Pointer fields
// (due dates, capacities, schedule dates) and slices (panel members, sync
// errors) are never shared between the store and its callers.
//
// # Testing Considerations
//
// The zero Store is ready to use. New accepts WithClock so tests can pin the
// time used for LastUpdated and CalculateFine. Seed returns the default data
// set from the embedded seed.yaml.
package state
