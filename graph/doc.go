// Package graph reconstructs the execution tree of a run from its flat event
// stream.
//
// The builder is driven one event at a time and is the single source of truth
// for what happened and in what tree shape. It tolerates out-of-order
// parent/child discovery by creating placeholder nodes of kind unknown and
// upgrading them in place, never replacing identity. Re-processing an event
// already applied (same event id) is a no-op, so a stored log can be replayed
// into an identical tree as many times as needed.
//
// Aggregates (token usage, per-step model identity, retries) accumulate
// additively; an impossible sequence (a node changing kind, a second parent)
// surfaces as a ConsistencyError rather than being silently coerced.
package graph
