// Package engine implements the top-level orchestration layer for braid.
//
// The Engine is the central entry point that ties the runtime together: it
// keeps a registry of named tasks, starts runs through its runner and wires
// the shared services (event log, metrics, logging) every run uses.
//
// # Core Responsibilities
//
// Task Management:
//   - Thread-safe task registry with name-based lookup
//   - Dynamic registration and replacement
//
// Run Orchestration:
//   - Asynchronous execution with a streaming run handle
//   - Synchronous convenience wrapper for request-response use
//   - Cancellation of active runs by id
//
// Service Wiring:
//   - Event log for durable run streams and replay
//   - Metrics registry for pipeline instrumentation
//   - Structured logging shared by every component
//
// # Architecture
//
// The engine sits above the runner, which owns the per-run event pipeline;
// tasks drive the actual loops underneath:
//
//	┌─────────────────────────────────────────────────────┐
//	│                  Client Layer                       │
//	├─────────────────────────────────────────────────────┤
//	│                Engine Interface                     │
//	│  ┌──────────┐ ┌──────────┐ ┌──────────────────┐    │
//	│  │  Start   │ │   Run    │ │    Register      │    │
//	│  └──────────┘ └──────────┘ └──────────────────┘    │
//	├─────────────────────────────────────────────────────┤
//	│                 Runner Pipeline                     │
//	│   sequence numbers · graph · log · fan-out          │
//	├─────────────────────────────────────────────────────┤
//	│                   Task Loops                        │
//	│   model calls · tool dispatch · nested tasks        │
//	└─────────────────────────────────────────────────────┘
//
// # Usage
//
//	eng := engine.New(engine.WithLogger(logger))
//	eng.Register(task.New("assistant", myModel))
//
//	run, err := eng.Start(ctx, "assistant", core.NewUserMessage("hello"))
//	if err != nil {
//	    return err
//	}
//	for ev := range run.Events() {
//	    // stream progress
//	}
//	out, err := run.Wait(ctx)
//
// For request-response use, Run collects the result without exposing the
// stream. Finished runs are replayed from the event log via eng.Log().
package engine
