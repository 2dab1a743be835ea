package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/braidworks/braid/core"
)

// Well-known finish reasons. Providers map their vendor-specific values onto
// these; anything else is passed through verbatim.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by a step.
type Request struct {
	Instructions string           `json:"instructions"` // Instructions for the model
	Messages     []core.Message   `json:"messages"`     // Conversation history, oldest first
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a streaming model. Partial
// chunks carry text fragments; the final chunk carries the finish reason, the
// complete message (including any function calls) and the token usage the
// provider reported.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *core.Usage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by steps to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses and tool calls are keyed by the text of the latest request
// message that carries any; tool-call scripts are one-shot, so a loop that
// feeds tool results back falls through to the canned completion for the
// same prompt on its next call.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	toolCalls map[string][]core.FunctionCall
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		responses: make(map[string]string),
		toolCalls: make(map[string][]core.FunctionCall),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddToolCalls registers function calls the mock requests the next time it
// sees prompt. The script is consumed on use.
func (m *MockModel) AddToolCalls(prompt string, calls ...core.FunctionCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls[prompt] = append(m.toolCalls[prompt], calls...)
}

// lastText returns the text of the latest message that has any. Tool result
// messages carry no text, so a follow-up call after tool execution keys on
// the original prompt.
func lastText(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if text := msgs[i].Text(); text != "" {
			return text
		}
	}
	return ""
}

// Generate implements Model; emits optional streaming char chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		inputText := lastText(req.Messages)

		m.mu.Lock()
		calls, scripted := m.toolCalls[inputText]
		if scripted {
			delete(m.toolCalls, inputText)
		}
		full := m.responses[inputText]
		m.mu.Unlock()

		if scripted {
			parts := make([]core.Part, 0, len(calls))
			for _, fc := range calls {
				parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
			}
			respCh <- Response{
				Message:      core.Message{Role: core.RoleAssistant, Parts: parts},
				FinishReason: FinishToolCalls,
				Usage:        &core.Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2},
			}
			return
		}

		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Message: core.NewAssistantMessage(string(r)),
				}:
				}
			}
		}
		respCh <- Response{
			Message:      core.NewAssistantMessage(full),
			FinishReason: FinishStop,
			Usage:        &core.Usage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2},
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
