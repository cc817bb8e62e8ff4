// Package backend provides the remote write endpoints used by optimistic
// mutations.
//
// # Overview
//
// Backend is a small capability set: update a grade, check out, return and
// renew a library book. Two implementations exist:
//
//   - Simulator: in-process, fixed latency, seeded random failures
//   - Client: HTTP client for the portal API
//
// The mutation controller only sees the interface, so swapping the simulator
// for the real API changes no core logic.
//
// # Simulator Contract
//
//	endpoint      latency  success  success payload
//	updateGrade   1.5s     0.90     grade with fresh LastUpdated
//	checkoutBook  1.0s     0.95     CheckedOut, DueDate = now + 14 days
//	returnBook    0.8s     1.00     not checked out, no due date, no renewals, no fine
//	renewBook     0.8s     0.95     DueDate + 14 days, RenewalCount + 1
//
// Failures wrap ErrRejected with a human-readable reason ("RFID verification
// failed"). WithSuccessRate and WithLatencyScale let tests force outcomes and
// drop latency; WithSeed makes a run reproducible.
//
// # HTTP API
//
//   - PUT  /api/grades/{id}
//   - POST /api/library/books/{id}/checkout
//   - POST /api/library/books/{id}/return
//   - POST /api/library/books/{id}/renew
//
// Requests and responses are the campus JSON types. Every request carries an
// HS256 bearer token whose subject is the student id; tokens are cached until
// shortly before they expire.
//
// # Error Handling
//
//   - 409 and 422 responses: ErrRejected with the API's error message
//   - other 4xx/5xx: "api <path> returned status <code>"
//   - network failures: "execute request: ..."
//   - malformed bodies: "decode response: ..."
//
// The controller rolls back on any of these; only ErrRejected is reported to
// the user as an expected refusal.
package backend
