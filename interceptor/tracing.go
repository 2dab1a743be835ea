package interceptor

import (
	"context"
	"time"

	"github.com/braidworks/braid/core"
)

// Tracing returns a step interceptor that logs each step's duration, event
// count and outcome through the run's logger. It forwards the step verbatim.
func Tracing() StepInterceptor {
	return NewStepFunc("tracing", func(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult) {
		events := make(chan core.Event)
		result := make(chan StepResult, 1)

		go func() {
			defer close(events)

			start := time.Now()
			innerEvents, innerResult := next(ctx, call)

			count := 0
			for ev := range innerEvents {
				count++
				events <- ev
			}
			res := <-innerResult

			if call.Env != nil {
				call.Env.LogInfo("step.traced",
					"task", call.Task.Name,
					"step", call.Step,
					"attempt", call.Attempt,
					"events", count,
					"duration_ms", time.Since(start).Milliseconds(),
					"error", res.Err != nil,
				)
			}

			result <- res
		}()

		return events, result
	})
}
