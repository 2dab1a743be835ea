// Package core provides the foundational domain types and execution contexts
// used by braid. It defines the core abstractions for:
//
//   - Nodes (identity + tree position of one logical execution)
//   - Events (immutable, ordered records of everything that happens in a run)
//   - Messages (role-based content exchanged with models and tools)
//   - Scope propagation (current node / task carried on context.Context)
//   - Pluggable memory (append-only message store with checkpoint reads)
//
// The package intentionally keeps implementation concerns (persistence, the
// task loop, concrete model providers) out of scope, exposing small interfaces
// so backends can be swapped without touching the engine.
package core
