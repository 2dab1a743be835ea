// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	json "github.com/goccy/go-json"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// New creates a new Anthropic model using the official client. Without an
// explicit APIKey option the client reads ANTHROPIC_API_KEY from the
// environment.
func New(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a new Anthropic model from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements model.Model for the Anthropic Messages API.
// Only the non-streaming path is supported; requests with Stream set fail
// fast rather than silently degrading.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		if req.Stream {
			// TODO: accumulate anthropic.MessageStreamEvent deltas into partial responses
			errCh <- fmt.Errorf("streaming not yet implemented for Anthropic model")
			return
		}

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if systemBlocks := buildSystemBlocks(req); len(systemBlocks) > 0 {
			params.System = systemBlocks
		}

		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text != "" {
					parts = append(parts, core.TextPart{Text: textBlock.Text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := ""
				if toolBlock.Input != nil {
					if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(argsBytes)
					}
				}
				parts = append(parts, core.FunctionCallPart{
					FunctionCall: core.FunctionCall{
						ID:        toolBlock.ID,
						Name:      toolBlock.Name,
						Arguments: args,
					},
				})
			}
		}

		var usage *core.Usage
		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			usage = &core.Usage{
				InputTokens:  int(resp.Usage.InputTokens),
				OutputTokens: int(resp.Usage.OutputTokens),
				TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			}
		}

		out <- model.Response{
			ID:           resp.ID,
			Partial:      false,
			Message:      core.Message{Role: core.RoleAssistant, Parts: parts},
			FinishReason: mapStopReason(string(resp.StopReason)),
			Usage:        usage,
		}
	}()

	return out, errCh
}

// mapStopReason translates Anthropic stop reasons onto the normalized finish
// reason vocabulary. Unknown reasons pass through verbatim.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "":
		return model.FinishStop
	case "max_tokens":
		return model.FinishLength
	case "tool_use":
		return model.FinishToolCalls
	default:
		return reason
	}
}

// buildMessages converts the normalized conversation to Anthropic messages.
// Tool results become tool_result blocks inside user messages (the Messages
// API rejects them in assistant turns); consecutive tool messages coalesce
// into a single user turn so role alternation is preserved.
func buildMessages(msgs []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case core.RoleSystem:
			// Hoisted into the top-level system prompt.
			continue
		case core.RoleTool:
			for _, fr := range msg.FunctionResponses() {
				pendingResults = append(pendingResults, toolResultBlock(fr))
			}
		case core.RoleAssistant:
			flushResults()
			if content := buildAssistantContent(msg.Parts); len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default:
			flushResults()
			if content := buildTextContent(msg.Parts); len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		}
	}
	flushResults()

	return messages
}

// buildSystemBlocks collects the request instructions plus any system-role
// messages into the top-level system prompt.
func buildSystemBlocks(req model.Request) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.Instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.Instructions})
	}
	for _, msg := range req.Messages {
		if msg.Role != core.RoleSystem {
			continue
		}
		if text := msg.Text(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return blocks
}

func toolResultBlock(fr core.FunctionResponse) anthropic.ContentBlockParamUnion {
	if fr.Error != "" {
		return anthropic.NewToolResultBlock(fr.ID, fr.Error, true)
	}
	var content string
	switch v := fr.Response.(type) {
	case nil:
	case string:
		content = v
	default:
		if b, err := json.Marshal(v); err == nil {
			content = string(b)
		} else {
			content = fmt.Sprintf("%v", v)
		}
	}
	return anthropic.NewToolResultBlock(fr.ID, content, false)
}

// buildTextContent renders text parts as text blocks.
func buildTextContent(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			content = append(content, anthropic.NewTextBlock(tp.Text))
		}
	}
	return content
}

// buildAssistantContent renders text and tool_use blocks for assistant turns.
func buildAssistantContent(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			var input interface{}
			if part.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
					input = part.FunctionCall.Arguments // fallback to string
				}
			}
			content = append(content, anthropic.NewToolUseBlock(
				part.FunctionCall.ID,
				input,
				part.FunctionCall.Name,
			))
		}
	}
	return content
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := params["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []interface{}:
					// JSON-decoded schemas arrive as []interface{}.
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
