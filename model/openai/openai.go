// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (including streaming + function/tool calling). It
// adapts braid's normalized Request/Response structures into the SDK's
// message format and back.
package openai

import (
	"context"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete function call parts once the stream
// ends. Internal helper (unexported).
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI model using the official client. The client reads
// OPENAI_API_KEY from the environment.
func New(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI model from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
// It adapts OpenAI Chat Completions (with function/tool calling) into model.Response chunks.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := m.buildParams(req)
		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildMessages converts the normalized conversation into OpenAI chat
// messages. Tool results already sit directly after the assistant message
// that requested them, so the conversion is a straight in-order walk.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Text()))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Text()))
		case core.RoleTool:
			for _, fr := range msg.FunctionResponses() {
				messages = append(messages, openai.ToolMessage(toolResultText(fr), fr.ID))
			}
		case core.RoleAssistant:
			text := msg.Text()
			toolCalls := buildToolCalls(msg)
			if len(toolCalls) == 0 {
				if text != "" {
					messages = append(messages, openai.AssistantMessage(text))
				}
				continue
			}
			ap := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			}
			if text != "" {
				ap.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: ap})
		default:
			if text := msg.Text(); text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}
	return messages
}

// buildToolCalls extracts function call parts as OpenAI formatted tool calls.
func buildToolCalls(msg core.Message) []openai.ChatCompletionMessageToolCallParam {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, fc := range msg.FunctionCalls() {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.Name,
				Arguments: fc.Arguments,
			},
		})
	}
	return toolCalls
}

// toolResultText renders a function response as the string content OpenAI
// expects in a tool message. Failed calls surface the error text so the
// model can react to it.
func toolResultText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fr.Error
	}
	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if req.Stream {
		// Usage arrives as a trailing chunk with no choices.
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// handleStreaming forwards text deltas as partial responses while
// accumulating the complete message, then emits the final response once the
// stream ends (the usage chunk trails the finish reason, so emitting earlier
// would drop token counts).
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	var (
		textBuilder  strings.Builder
		respID       string
		finishReason string
		usage        *core.Usage
	)
	toolAgg := map[int64]*aggCall{}
	for stream.Next() {
		ck := stream.Current()
		if respID == "" {
			respID = ck.ID
		}
		if ck.Usage.TotalTokens > 0 {
			usage = &core.Usage{
				InputTokens:  int(ck.Usage.PromptTokens),
				OutputTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:  int(ck.Usage.TotalTokens),
			}
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				out <- model.Response{
					ID:      respID,
					Partial: true,
					Message: core.NewAssistantMessage(ch.Delta.Content),
				}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					ac.args += tc.Function.Arguments
				}
			}
			if ch.FinishReason != "" {
				finishReason = ch.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
		return
	}
	if finishReason == "" {
		finishReason = model.FinishStop
	}
	out <- model.Response{
		ID:           respID,
		Partial:      false,
		Message:      assembleMessage(textBuilder.String(), toolAgg),
		FinishReason: finishReason,
		Usage:        usage,
	}
}

// assembleMessage builds the final assistant message from accumulated text
// and tool call aggregates, ordered by stream index.
func assembleMessage(text string, toolAgg map[int64]*aggCall) core.Message {
	idxs := make([]int64, 0, len(toolAgg))
	for idx := range toolAgg {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	parts := make([]core.Part, 0, len(toolAgg)+1)
	if text != "" {
		parts = append(parts, core.TextPart{Text: text})
	}
	for _, idx := range idxs {
		ac := toolAgg[idx]
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        ac.id,
			Name:      ac.name,
			Arguments: ac.args,
		}})
	}
	return core.Message{Role: core.RoleAssistant, Parts: parts}
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}
	ch0 := resp.Choices[0]
	parts := make([]core.Part, 0, len(ch0.Message.ToolCalls)+1)
	if ch0.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: ch0.Message.Content})
	}
	for _, tc := range ch0.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}
	var usage *core.Usage
	if resp.Usage.TotalTokens > 0 {
		usage = &core.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		}
	}
	out <- model.Response{
		ID:           resp.ID,
		Partial:      false,
		Message:      core.Message{Role: core.RoleAssistant, Parts: parts},
		FinishReason: ch0.FinishReason,
		Usage:        usage,
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
