package interceptor

import (
	"context"
	"errors"
	"time"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/model"
)

// RetryOptions tunes the Retry interceptor.
type RetryOptions struct {
	// Retryable classifies errors. The default retries every failure except
	// cancellation and deadline expiry.
	Retryable func(err error) bool

	// Backoff returns the pause before retry n (1-based). Default is none.
	Backoff func(retry int) time.Duration
}

// Retry returns a step interceptor that re-invokes a failed step up to
// maxRetries additional times. An attempt that has yielded a content-bearing
// event is never retried, whatever happens afterwards: restarted text would
// reach the consumer garbled, and a dispatched sub-task may already have had
// side effects. Every retry is announced with a task.step.retry event
// carrying the failed attempt number and the reason.
func Retry(maxRetries int, optFns ...func(o *RetryOptions)) StepInterceptor {
	opts := RetryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &retrier{
		name:      "retry",
		retryable: opts.Retryable,
		backoff:   opts.Backoff,
		rearm: func(failed int, _ *Call) bool {
			return failed <= maxRetries
		},
	}
}

// Fallback returns a step interceptor that answers a failed step by swapping
// in alternate models one after another, under the same content boundary as
// Retry. The models are tried in the order given; when they are exhausted the
// last failure propagates.
func Fallback(alternates ...model.Model) StepInterceptor {
	return &retrier{
		name: "fallback",
		rearm: func(failed int, call *Call) bool {
			if failed > len(alternates) {
				return false
			}
			next := alternates[failed-1]
			if call.Env != nil {
				call.Env.LogWarn("step.fallback",
					"task", call.Task.Name,
					"step", call.Step,
					"failed_attempt", failed,
					"model", next.Info().Name,
				)
			}
			call.Model = next
			return true
		},
	}
}

// retrier is the shared attempt loop behind Retry and Fallback. rearm decides
// after failure number n whether another attempt starts, mutating the call
// for it; retryable classifies errors; backoff paces retries.
type retrier struct {
	name      string
	rearm     func(failed int, call *Call) bool
	retryable func(err error) bool
	backoff   func(retry int) time.Duration
}

// Name implements StepInterceptor.
func (r *retrier) Name() string { return r.name }

// InterceptStep implements StepInterceptor.
func (r *retrier) InterceptStep(ctx context.Context, call *Call, next StepHandler) (<-chan core.Event, <-chan StepResult) {
	events := make(chan core.Event)
	result := make(chan StepResult, 1)

	go func() {
		defer close(events)

		for attempt := 1; ; attempt++ {
			call.Attempt = attempt
			attemptEvents, attemptResult := next(ctx, call)

			yielded := false
			for ev := range attemptEvents {
				if ev.ContentBearing() {
					yielded = true
				}
				events <- ev
			}
			res := <-attemptResult

			if res.Err == nil || yielded || !r.canRetry(res.Err) || ctx.Err() != nil {
				result <- res
				return
			}
			if !r.rearm(attempt, call) {
				result <- res
				return
			}

			events <- core.NewEvent(core.StepRetry{Attempt: attempt, Reason: res.Err.Error()})

			if r.backoff != nil {
				select {
				case <-time.After(r.backoff(attempt)):
				case <-ctx.Done():
					result <- res
					return
				}
			}
		}
	}()

	return events, result
}

func (r *retrier) canRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r.retryable != nil {
		return r.retryable(err)
	}
	return true
}
