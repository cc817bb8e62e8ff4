// Package optimistic applies user writes to the store at once and reconciles
// them with a slower, fallible backend in the background.
//
// # Lifecycle
//
// Every mutation (UpdateGrade, CheckoutBook, ReturnBook, RenewBook) moves
// through a fixed set of phases:
//
//	idle -> applied -> confirmed
//	               \-> rolled-back
//
// The entity is snapshotted and its optimistic value is written to the store
// and the Cache before the method returns, so the returned Task is already in
// PhaseApplied. The backend call then runs on its own goroutine with a context
// detached from the caller: once issued it always resolves. A confirmation
// replaces the guess with the server's copy; a failure restores the snapshot
// and reports an error wrapping ErrRolledBack. Either way the entity family
// is marked stale in the Cache.
//
// Precondition failures (unknown id, score out of range, book state that does
// not allow the action) are returned directly and leave the store untouched.
//
// # Overlapping mutations
//
// The dashboard refuses new actions on an entity while Pending reports true,
// but the controller does not rely on it. For each entity it keeps the last
// authoritative value and the guess of every unsettled mutation. After each settlement the store
// shows the newest of those; guesses are never merged. A late confirmation
// of an older mutation therefore does not hide a newer guess, and a failure
// falls back to the last confirmed value rather than the original snapshot.
//
// # Concurrent writers
//
// A rollback restores the whole snapshot. If the store no longer holds the
// value the controller wrote, something else changed the entity during the
// call; the rollback still wins, and the overwrite is logged and counted as a
// rollback conflict.
package optimistic
