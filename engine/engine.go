package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/logging"
	"github.com/braidworks/braid/runner"
	"github.com/braidworks/braid/telemetry"
)

// Options configures an Engine instance using the functional options pattern.
//
// All dependencies have in-memory defaults so a bare New() is immediately
// usable for development and testing; production deployments typically
// provide a persistent event log and a real logger.
type Options struct {
	// MaxModelCalls limits the number of model calls per run. 0 or less
	// means no budget.
	MaxModelCalls int

	// Log persists run event streams for replay.
	// Defaults to an in-memory log if not provided.
	Log eventlog.Log

	// Metrics receives runtime instrumentation.
	// Defaults to a fresh private registry if not provided.
	Metrics *telemetry.Metrics

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Engine is the top-level entry point of the runtime. It keeps a registry of
// named tasks and hands executions to its runner, which owns the per-run
// event pipeline.
//
// Core responsibilities:
//   - Task registry: thread-safe registration and lookup of named targets
//   - Run management: async start, sync convenience wrapper, cancellation
//   - Service wiring: event log, metrics and logging shared by every run
//
// The Engine is safe for concurrent use. Registration during active runs is
// safe but replacing a task mid-run affects only runs started afterwards.
type Engine struct {
	runner  *runner.Runner
	log     eventlog.Log
	metrics *telemetry.Metrics
	logger  logging.Logger

	mu    sync.RWMutex
	tasks map[string]runner.Target
}

// New creates an Engine with sensible defaults and optional configuration.
//
// Example:
//
//	eng := engine.New(
//	    engine.WithLogger(logger),
//	    engine.WithLog(persistentLog),
//	)
//	eng.Register(myTask)
//	out, err := eng.Run(ctx, "assistant", core.NewUserMessage("hello"))
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		MaxModelCalls: 100,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Log == nil {
		opts.Log = eventlog.NewInMemory()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.New()
	}

	r := runner.New(func(o *runner.Options) {
		o.MaxModelCalls = opts.MaxModelCalls
		o.Log = opts.Log
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	})

	return &Engine{
		runner:  r,
		log:     opts.Log,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		tasks:   make(map[string]runner.Target),
	}
}

// WithLogger overrides the engine's logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithLog overrides the engine's event log.
func WithLog(log eventlog.Log) func(o *Options) {
	return func(o *Options) { o.Log = log }
}

// WithMetrics overrides the engine's metrics.
func WithMetrics(m *telemetry.Metrics) func(o *Options) {
	return func(o *Options) { o.Metrics = m }
}

// WithMaxModelCalls sets the per-run model call budget.
func WithMaxModelCalls(n int) func(o *Options) {
	return func(o *Options) { o.MaxModelCalls = n }
}

// Register adds a target to the engine's registry under its name, replacing
// any previous registration without warning. The engine does not take
// ownership; the caller keeps the target valid for the engine's lifetime.
func (e *Engine) Register(t runner.Target) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks[t.Name()] = t
}

// Task retrieves a registered target by name.
func (e *Engine) Task(name string) (runner.Target, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tasks[name]
	return t, ok
}

// Tasks returns the names of all registered targets, sorted.
func (e *Engine) Tasks() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tasks))
	for name := range e.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the named task asynchronously and returns the run handle.
// Consume the handle's event stream for real-time progress and Wait for the
// final result.
func (e *Engine) Start(ctx context.Context, taskName string, input core.Message) (*runner.Run, error) {
	t, ok := e.Task(taskName)
	if !ok {
		return nil, fmt.Errorf("engine: task %q not found", taskName)
	}
	return e.runner.Start(ctx, t, input)
}

// Run executes the named task synchronously and returns its final output.
// Events are still admitted, persisted and counted; they are simply not
// surfaced to the caller.
func (e *Engine) Run(ctx context.Context, taskName string, input core.Message) (core.Message, error) {
	run, err := e.Start(ctx, taskName, input)
	if err != nil {
		return core.Message{}, err
	}
	for range run.Events() {
		// Drain so the run never accumulates an unread backlog.
	}
	return run.Wait(ctx)
}

// ActiveRun returns the handle of a currently executing run.
func (e *Engine) ActiveRun(runID string) (*runner.Run, bool) {
	return e.runner.Get(runID)
}

// ActiveRuns returns the handles of all currently executing runs.
func (e *Engine) ActiveRuns() []*runner.Run {
	return e.runner.Active()
}

// Cancel requests cooperative cancellation of an active run.
func (e *Engine) Cancel(runID string) error {
	return e.runner.Cancel(runID)
}

// Log returns the engine's event log, e.g. for replaying finished runs.
func (e *Engine) Log() eventlog.Log { return e.log }

// Metrics returns the engine's metrics instance.
func (e *Engine) Metrics() *telemetry.Metrics { return e.metrics }

// Close releases the engine's resources, closing the event log. Active runs
// are not interrupted; cancel them first if required.
func (e *Engine) Close() error {
	return e.log.Close()
}
