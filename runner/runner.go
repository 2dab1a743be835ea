package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/graph"
	"github.com/braidworks/braid/interceptor"
	"github.com/braidworks/braid/internal/idgen"
	"github.com/braidworks/braid/logging"
	"github.com/braidworks/braid/stream"
	"github.com/braidworks/braid/telemetry"
)

// ErrNotFound is returned when the referenced run is not active.
var ErrNotFound = errors.New("runner: run not found")

// Target is anything the runner can execute as the root of a run.
// *task.Task satisfies it.
type Target interface {
	Name() string
	Execute(ctx context.Context, env *core.Env, input core.Message) (<-chan core.Event, <-chan interceptor.TaskResult)
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxModelCalls limits the number of model calls per run. 0 or less
	// means no budget.
	MaxModelCalls int
	// Log persists admitted events for replay. Nil disables persistence.
	Log eventlog.Log
	// Metrics receives pipeline instrumentation. Nil disables collection.
	Metrics *telemetry.Metrics
	// Logger receives runner diagnostics.
	Logger logging.Logger
}

// Runner executes targets as runs. It owns the per-run pipeline that stamps
// sequence numbers and ids onto events, folds them into the live call graph,
// persists them and fans them out to subscribers. Public methods are safe
// for concurrent use.
type Runner struct {
	maxModelCalls int
	log           eventlog.Log
	metrics       *telemetry.Metrics
	logger        logging.Logger

	mu     sync.RWMutex
	active map[string]*Run
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxModelCalls: 100,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		maxModelCalls: opts.MaxModelCalls,
		log:           opts.Log,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		active:        make(map[string]*Run),
	}
}

// Start launches target as a new run and returns its handle. The run
// executes until the target finishes, the context is canceled or Cancel is
// called; its events are consumed through the handle.
func (r *Runner) Start(ctx context.Context, target Target, input core.Message) (*Run, error) {
	if target == nil {
		return nil, fmt.Errorf("runner: nil target")
	}

	runID := idgen.NewRunID()
	runCtx, cancel := context.WithCancel(ctx)
	env := core.NewEnv(runID, core.NewModelLimiter(r.maxModelCalls), r.logger)

	run := &Run{
		id:     runID,
		name:   target.Name(),
		cancel: cancel,
		graph:  graph.New(),
		done:   make(chan struct{}),
	}
	primary := stream.NewSideChannel[core.Event]()
	run.subs = append(run.subs, primary)
	run.primary = primary.Out()

	events, result := target.Execute(runCtx, env, input)

	r.mu.Lock()
	r.active[runID] = run
	r.mu.Unlock()

	r.metrics.RunStarted()
	r.logger.Info("run started", "run_id", runID, "task", target.Name())

	go r.pipeline(runCtx, run, events, result)

	return run, nil
}

// Get returns the handle of an active run. Finished runs live in the event
// log, not here.
func (r *Runner) Get(runID string) (*Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.active[runID]
	return run, ok
}

// Active returns the handles of all currently executing runs.
func (r *Runner) Active() []*Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Run, 0, len(r.active))
	for _, run := range r.active {
		out = append(out, run)
	}
	return out
}

// Cancel cancels an active run by id.
func (r *Runner) Cancel(runID string) error {
	run, ok := r.Get(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	run.Cancel()
	return nil
}

func (r *Runner) remove(runID string) {
	r.mu.Lock()
	delete(r.active, runID)
	r.mu.Unlock()
}

// pipeline is the single goroutine through which every event of a run
// passes. Running alone it can assign sequence numbers without locking and
// guarantees subscribers observe the exact admitted order.
func (r *Runner) pipeline(ctx context.Context, run *Run, events <-chan core.Event, result <-chan interceptor.TaskResult) {
	// Terminal events must still reach the log when the run context is
	// already canceled.
	logCtx := context.WithoutCancel(ctx)

	var (
		seq        int64
		consistErr error
		stepStart  = map[string]time.Time{}
		names      = map[string]string{}
	)

	for ev := range events {
		if consistErr != nil {
			continue // drain so the producer can finish
		}

		seq++
		ev.Seq = seq
		if ev.ID == "" {
			ev.ID = idgen.NewEventID()
		}
		if ev.RunID == "" {
			ev.RunID = run.id
		}

		if err := run.admit(ev); err != nil {
			consistErr = fmt.Errorf("runner: event %d corrupts the run graph: %w", ev.Seq, err)
			r.logger.Error("run graph corrupted", "run_id", run.id, "event_id", ev.ID, "error", err)
			run.cancel()
			continue
		}

		if r.log != nil {
			if err := r.log.Append(logCtx, ev); err != nil {
				r.logger.Warn("event log append failed", "run_id", run.id, "event_id", ev.ID, "error", err)
			}
		}

		r.metrics.EventAdmitted(ev.Kind())
		switch p := ev.Payload.(type) {
		case core.TaskBegin:
			names[ev.NodeID] = p.Name
		case core.StepBegin:
			stepStart[ev.NodeID] = ev.Timestamp
		case core.StepEnd:
			if t0, ok := stepStart[ev.NodeID]; ok {
				r.metrics.ObserveStep(names[ev.NodeID], ev.Timestamp.Sub(t0))
				delete(stepStart, ev.NodeID)
			}
		case core.StepCall:
			r.metrics.AddUsage(p.Model, p.Usage)
		}
	}

	// The result is delivered after the event stream closes.
	res := <-result

	run.finish(res, consistErr)
	r.remove(run.id)

	outcome := "completed"
	switch {
	case consistErr != nil:
		outcome = "failed"
	case errors.Is(res.Err, context.Canceled):
		outcome = "canceled"
	case res.Err != nil:
		outcome = "failed"
	}
	r.metrics.RunFinished(outcome)
	r.logger.Info("run finished", "run_id", run.id, "outcome", outcome, "events", seq)
}

// Run is the handle of one execution. It stays valid after the run finishes;
// only the runner's registry forgets finished runs.
type Run struct {
	id     string
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	graph    *graph.Graph
	history  []core.Event
	subs     []*stream.SideChannel[core.Event]
	finished bool
	output   core.Message
	err      error

	primary <-chan core.Event
}

// ID returns the run's unique identifier.
func (run *Run) ID() string { return run.id }

// Name returns the name of the target the run executes.
func (run *Run) Name() string { return run.name }

// Events returns the run's primary event stream. It carries every admitted
// event in order and closes when the run finishes. The stream buffers
// without bound, so a slow consumer delays delivery, never the run.
func (run *Run) Events() <-chan core.Event { return run.primary }

// Subscribe returns an additional event stream that first replays every
// already admitted event, then follows the live stream. On a finished run
// the replayed stream closes after the last event.
func (run *Run) Subscribe() <-chan core.Event {
	s := stream.NewSideChannel[core.Event]()
	run.mu.Lock()
	for _, ev := range run.history {
		s.Push(ev)
	}
	if run.finished {
		run.mu.Unlock()
		s.Close()
		return s.Out()
	}
	run.subs = append(run.subs, s)
	run.mu.Unlock()
	return s.Out()
}

// Graph returns a snapshot of the run's call graph root. The snapshot is
// fully detached; it does not change as the run progresses.
func (run *Run) Graph() (graph.Node, bool) {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.graph.Root()
}

// Cancel requests cooperative cancellation of the run.
func (run *Run) Cancel() { run.cancel() }

// Done returns a channel closed once the run has finished and its result is
// available.
func (run *Run) Done() <-chan struct{} { return run.done }

// Wait blocks until the run finishes or ctx is canceled, then returns the
// run's final output message and error. Canceling ctx abandons the wait,
// not the run.
func (run *Run) Wait(ctx context.Context) (core.Message, error) {
	select {
	case <-ctx.Done():
		return core.Message{}, ctx.Err()
	case <-run.done:
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.output, run.err
}

// admit folds one positioned event into the graph, records it and fans it
// out. A graph consistency failure rejects the event.
func (run *Run) admit(ev core.Event) error {
	run.mu.Lock()
	defer run.mu.Unlock()
	if err := run.graph.ProcessEvent(ev); err != nil {
		return err
	}
	run.history = append(run.history, ev)
	for _, s := range run.subs {
		s.Push(ev)
	}
	return nil
}

// finish records the run's outcome and closes every subscriber stream. A
// consistency error overrides the task's own result.
func (run *Run) finish(res interceptor.TaskResult, consistErr error) {
	run.mu.Lock()
	run.output = res.Output
	run.err = res.Err
	if consistErr != nil {
		run.err = consistErr
	}
	run.finished = true
	subs := run.subs
	run.subs = nil
	run.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	close(run.done)
}
