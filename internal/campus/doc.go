// Package campus defines the portal's entity types.
//
// # Overview
//
// Every entity the portal shows lives here: grades, shuttle positions, library
// loans, campus locations and thesis defense records, plus the sync-status block.
// The same structs are used in three places:
//
//   - the in-memory store (internal/state)
//   - the persisted JSON blob (internal/persist)
//   - backend request and response bodies (internal/backend)
//
// so the JSON tags are the wire format and must stay stable.
//
// # Invariants
//
//   - Grade.Score is within [0, 100]
//   - BusLocation speed within [0, 60], eta at least 1, occupancy within [0, capacity]
//     (enforced by BusLocation.Clamp)
//   - LibraryBook.DueDate is non-nil exactly when CheckedOut is true
//   - ThesisDefense.Status is one of proposal, review, scheduled, completed
//
// State.Validate checks these for rehydrated blobs; a blob that fails is treated
// as absent by the caller.
//
// # Thesis Status
//
// Older payloads spelled two stages differently ("defense-scheduled" and
// "graduated"). Decoding accepts both and maps them onto the canonical set;
// encoding only ever produces canonical values.
//
// # Fines
//
// Fine is a pure function of the due date and the current time:
//
//	max(0, floor(days overdue)) * DailyFine
//
// It is never read from FineAmount, which only mirrors what the backend reported.
package campus
