package memory

import (
	"context"
	"unicode/utf8"

	"github.com/braidworks/braid/core"
)

// Trimming decorators bound the window returned by Read without touching the
// underlying log: Store and Appended pass through, so the full history stays
// intact for auditing and the step-end events.
//
// Both decorators preserve call/response pairing. A window never starts with
// a message carrying function responses, because the function call it answers
// would fall outside the window; the call message and its responses are always
// kept or dropped together.

// WithMaxMessages decorates inner so Read returns at most n trailing messages.
// n <= 0 disables trimming.
func WithMaxMessages(inner core.Memory, n int) core.Memory {
	return &maxMessages{inner: inner, n: n}
}

type maxMessages struct {
	inner core.Memory
	n     int
}

func (m *maxMessages) Read(ctx context.Context) ([]core.Message, error) {
	msgs, err := m.inner.Read(ctx)
	if err != nil {
		return nil, err
	}
	if m.n <= 0 || len(msgs) <= m.n {
		return msgs, nil
	}
	return alignWindow(msgs, len(msgs)-m.n), nil
}

func (m *maxMessages) Store(ctx context.Context, msg core.Message) error { return m.inner.Store(ctx, msg) }

func (m *maxMessages) Appended(ctx context.Context) ([]core.Message, error) {
	return m.inner.Appended(ctx)
}

// Estimator approximates the token cost of one message. The engine carries no
// tokenizer of its own; callers supply one matched to their model, or rely on
// the built-in length heuristic.
type Estimator func(msg core.Message) int

// WithTokenBudget decorates inner so Read returns the longest trailing window
// whose estimated token total stays within budget. A nil estimate falls back
// to EstimateByLength. budget <= 0 disables trimming.
func WithTokenBudget(inner core.Memory, budget int, estimate Estimator) core.Memory {
	if estimate == nil {
		estimate = EstimateByLength
	}
	return &tokenBudget{inner: inner, budget: budget, estimate: estimate}
}

type tokenBudget struct {
	inner    core.Memory
	budget   int
	estimate Estimator
}

func (m *tokenBudget) Read(ctx context.Context) ([]core.Message, error) {
	msgs, err := m.inner.Read(ctx)
	if err != nil {
		return nil, err
	}
	if m.budget <= 0 {
		return msgs, nil
	}
	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		total += m.estimate(msgs[i])
		if total > m.budget {
			break
		}
		start = i
	}
	if start == 0 {
		return msgs, nil
	}
	return alignWindow(msgs, start), nil
}

func (m *tokenBudget) Store(ctx context.Context, msg core.Message) error {
	return m.inner.Store(ctx, msg)
}

func (m *tokenBudget) Appended(ctx context.Context) ([]core.Message, error) {
	return m.inner.Appended(ctx)
}

// EstimateByLength is a crude character-count heuristic: one token per four
// runes of text plus a small per-part overhead. Good enough for bounding
// windows; not a substitute for a real tokenizer.
func EstimateByLength(msg core.Message) int {
	tokens := 0
	for _, p := range msg.Parts {
		tokens += 4
		if tp, ok := p.(core.TextPart); ok {
			tokens += utf8.RuneCountInString(tp.Text) / 4
		}
	}
	return tokens
}

// alignWindow returns msgs[start:] with start advanced past any message that
// carries function responses, so the window never opens with a response whose
// call was trimmed away.
func alignWindow(msgs []core.Message, start int) []core.Message {
	for start < len(msgs) && len(msgs[start].FunctionResponses()) > 0 {
		start++
	}
	out := make([]core.Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out
}
