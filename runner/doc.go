// Package runner executes tasks as runs.
//
// A Run is one end-to-end execution of a Target (normally a *task.Task). The
// runner owns the run pipeline: a single goroutine that admits every event
// the run emits, stamps it with its sequence number and identifiers, folds
// it into the live call graph, persists it to the event log and fans it out
// to subscribers. Because admission is single-threaded, every consumer of a
// run observes the same total event order.
//
// # Responsibilities (abridged)
//   - Run lifecycle management: start, cancellation, completion
//   - Event admission: sequence numbers, ids, run stamping
//   - Live call graph maintenance and consistency enforcement
//   - Event persistence and fan-out with replay for late subscribers
//   - Pipeline instrumentation (runs, events, steps, tokens)
//
// See runner.go for the operational implementation details.
package runner
