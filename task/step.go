package task

import (
	"context"
	"fmt"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/interceptor"
	"github.com/braidworks/braid/model"
	"github.com/braidworks/braid/stream"
)

// step is the innermost StepHandler of the composed chain: one model call
// followed by the dispatch of any tool calls it requested. Tool lifecycle
// events are pushed onto a side channel from the tool goroutines and merged
// into the step's stream in arrival order, so a slow tool never delays a
// faster sibling's progress events.
func (t *Task) step(ctx context.Context, call *interceptor.Call) (<-chan core.Event, <-chan interceptor.StepResult) {
	primary := make(chan core.Event, 16)
	side := stream.NewSideChannel[core.Event]()
	merged := stream.Merge(primary, side)

	out := make(chan core.Event, 16)
	result := make(chan interceptor.StepResult, 1)
	inner := make(chan interceptor.StepResult, 1)

	go func() {
		defer close(primary)
		inner <- t.runStep(ctx, call, primary, side)
	}()

	// Relay the merged stream, then deliver the result: closing primary lets
	// the merger flush and close the side channel, and the result goes out
	// only after the last event did.
	go func() {
		for ev := range merged {
			out <- ev
		}
		close(out)
		result <- <-inner
	}()

	return out, result
}

// runStep performs the model phase and the tool phase of one step. It sends
// model-derived events on primary; tool events travel through the side
// channel owned by the dispatcher.
func (t *Task) runStep(ctx context.Context, call *interceptor.Call, primary chan<- core.Event, side *stream.SideChannel[core.Event]) interceptor.StepResult {
	env := call.Env

	if err := env.Limiter.Increment(); err != nil {
		return interceptor.StepResult{Err: fmt.Errorf("model call budget: %w", err)}
	}

	respCh, errCh := call.Model.Generate(ctx, call.Request)

	var (
		final      model.Response
		gotFinal   bool
		sawPartial bool
	)

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if text := resp.Message.Text(); text != "" {
					sawPartial = true
					primary <- core.NewEvent(core.ContentDelta{Text: text})
				}
				continue
			}
			final = resp
			gotFinal = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return interceptor.StepResult{Err: err}
			}
		}
	}

	if !gotFinal {
		return interceptor.StepResult{Err: fmt.Errorf("model %q produced no final response", call.Model.Info().Name)}
	}

	var usage core.Usage
	if final.Usage != nil {
		usage = *final.Usage
	}
	primary <- core.NewEvent(core.StepCall{Step: call.Step, Model: call.Model.Info().Name, Usage: usage})

	// Without streaming the full text arrives only in the final message;
	// surface it as a single delta so consumers see content either way.
	if !sawPartial {
		if text := final.Message.Text(); text != "" {
			primary <- core.NewEvent(core.ContentDelta{Text: text})
		}
	}

	messages := []core.Message{final.Message}

	if calls := final.Message.FunctionCalls(); len(calls) > 0 {
		messages = append(messages, t.dispatch(ctx, env, calls, side)...)
	}

	return interceptor.StepResult{
		FinishReason: final.FinishReason,
		Messages:     messages,
		Usage:        usage,
	}
}
