// Package logging provides a minimal logging interface and adapters for braid.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the runner and tasks use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with contextual helpers (component, run) and
//     domain helpers for tool, model and task logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(engine.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
