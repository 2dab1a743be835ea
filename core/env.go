package core

import "github.com/braidworks/braid/logging"

// Env bundles the run-scoped collaborators shared by every level of a run's
// tree: the root task, nested tasks and tools all receive the same Env.
// Cancellation and position do not live here; they ride on context.Context.
type Env struct {
	// RunID identifies the run every emitted event belongs to.
	RunID string

	// Limiter enforces the run's model-call budget. Never nil.
	Limiter *ModelLimiter

	*loggerAdapter
}

// NewEnv constructs an Env. A nil limiter means no model-call budget; a nil
// logger is replaced with a NoOpLogger.
func NewEnv(runID string, limiter *ModelLimiter, logger logging.Logger) *Env {
	if limiter == nil {
		limiter = NewModelLimiter(0)
	}
	return &Env{
		RunID:         runID,
		Limiter:       limiter,
		loggerAdapter: newLoggerAdapter(logger),
	}
}
