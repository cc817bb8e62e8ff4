// Package push simulates the campus real-time feed.
//
// A Channel owns one background task. After Connect it waits out a short
// handshake delay, then every interval it moves each bus a little (position,
// speed, ETA, occupancy) and shifts occupancy at every location that reports
// both a capacity and a current count. The store clamps the results, so a
// bus never exceeds its capacity or MaxSpeed and an ETA never drops below
// MinETA.
//
// Listeners register per MessageType with On and run synchronously on the
// publishing goroutine in registration order. They must not block.
//
// Connect is idempotent and Disconnect waits for the task to exit, so a
// stopped channel can be connected again.
package push
