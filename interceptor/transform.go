package interceptor

import (
	"context"

	"github.com/braidworks/braid/core"
)

// Transform returns a step interceptor that pipes the step's event stream
// through fn. For every event coming back from the inner layers fn returns
// the events to emit in its place: one element passes it along (modified or
// not), several expand it, none drops it. The step result is forwarded
// untouched.
//
// This is the attachment point for external stream processors such as
// progressive structured-output parsers: the engine stays ignorant of what
// fn derives, it just merges the derived events into the run like any
// others. Events fn introduces are stamped with the current node's position
// on the way out, so a transform only fills metadata it wants to control.
func Transform(name string, fn func(ev core.Event) []core.Event) StepInterceptor {
	return NewStepFunc(name, func(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult) {
		events := make(chan core.Event)
		result := make(chan StepResult, 1)

		go func() {
			defer close(events)

			innerEvents, innerResult := next(ctx, call)
			for ev := range innerEvents {
				for _, out := range fn(ev) {
					events <- out
				}
			}
			result <- <-innerResult
		}()

		return events, result
	})
}
