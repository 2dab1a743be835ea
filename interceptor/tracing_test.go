package interceptor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/braidworks/braid/core"
)

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureLogger) record(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *captureLogger) Debug(msg string, args ...any) { c.record(msg) }
func (c *captureLogger) Info(msg string, args ...any)  { c.record(msg) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.record(msg) }
func (c *captureLogger) Error(msg string, args ...any) { c.record(msg) }

func (c *captureLogger) has(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func TestTracing_ForwardsAndLogs(t *testing.T) {
	base := func(ctx context.Context, call *Call) (<-chan core.Event, <-chan StepResult) {
		events := make(chan core.Event, 2)
		events <- core.NewEvent(core.ContentDelta{Text: "a"})
		events <- core.NewEvent(core.ContentDelta{Text: "b"})
		close(events)
		result := make(chan StepResult, 1)
		result <- StepResult{FinishReason: "stop"}
		return events, result
	}

	logger := &captureLogger{}
	call := &Call{
		Task: core.TaskInfo{Name: "traced", Kind: "task"},
		Step: 3,
		Env:  core.NewEnv("run-1", nil, logger),
	}

	h := ComposeStep([]StepInterceptor{Tracing()}, base)
	evs, res := drain(h(context.Background(), call))

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(evs))
	}
	if !logger.has("step.traced") {
		t.Fatalf("trace line missing, logged: %v", logger.msgs)
	}
}

func TestTracing_LogsOnStepError(t *testing.T) {
	failing := func(ctx context.Context, call *Call) (<-chan core.Event, <-chan StepResult) {
		events := make(chan core.Event)
		close(events)
		result := make(chan StepResult, 1)
		result <- StepResult{Err: errors.New("model down")}
		return events, result
	}

	logger := &captureLogger{}
	call := &Call{
		Task: core.TaskInfo{Name: "traced", Kind: "task"},
		Step: 1,
		Env:  core.NewEnv("run-2", nil, logger),
	}

	h := ComposeStep([]StepInterceptor{Tracing()}, failing)
	_, res := drain(h(context.Background(), call))

	if res.Err == nil {
		t.Fatal("expected the inner error to pass through")
	}
	if !logger.has("step.traced") {
		t.Fatalf("trace line missing, logged: %v", logger.msgs)
	}
}
