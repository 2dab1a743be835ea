package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/model"
)

func TestBuildMessagesPrependsInstructions(t *testing.T) {
	req := model.Request{
		Instructions: "you are a calculator",
		Messages:     []core.Message{core.NewUserMessage("2+2?")},
	}

	out := buildMessages(req)

	require.Len(t, out, 2)
	require.NotNil(t, out[0].OfSystem)
	require.NotNil(t, out[1].OfUser)
}

func TestBuildMessagesToolRoundTrip(t *testing.T) {
	req := model.Request{
		Messages: []core.Message{
			core.NewUserMessage("2+2?"),
			{Role: core.RoleAssistant, Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "call-1", Name: "add", Arguments: `{"a":2,"b":2}`}},
			}},
			core.NewToolMessage("call-1", "add", "4", nil),
		},
	}

	out := buildMessages(req)

	require.Len(t, out, 3)
	require.NotNil(t, out[1].OfAssistant)
	require.Len(t, out[1].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call-1", out[1].OfAssistant.ToolCalls[0].ID)
	require.NotNil(t, out[2].OfTool)
	assert.Equal(t, "call-1", out[2].OfTool.ToolCallID)
}

func TestBuildMessagesSkipsEmptyAssistant(t *testing.T) {
	req := model.Request{
		Messages: []core.Message{
			core.NewUserMessage("hi"),
			{Role: core.RoleAssistant, Parts: nil},
		},
	}

	out := buildMessages(req)

	require.Len(t, out, 1)
}

func TestToolResultText(t *testing.T) {
	assert.Equal(t, "4", toolResultText(core.FunctionResponse{Response: "4"}))
	assert.Equal(t, "boom", toolResultText(core.FunctionResponse{Response: "4", Error: "boom"}))
	assert.Equal(t, "", toolResultText(core.FunctionResponse{}))
	assert.JSONEq(t, `{"sum":4}`, toolResultText(core.FunctionResponse{Response: map[string]any{"sum": 4}}))
}

func TestAssembleMessageOrdersCallsByIndex(t *testing.T) {
	agg := map[int64]*aggCall{
		1: {id: "call-b", name: "mul", args: `{"a":3}`},
		0: {id: "call-a", name: "add", args: `{"a":2}`},
	}

	msg := assembleMessage("thinking", agg)

	calls := msg.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call-a", calls[0].ID)
	assert.Equal(t, "call-b", calls[1].ID)
	assert.Equal(t, "thinking", msg.Text())
}

func TestBuildParamsIncludesTools(t *testing.T) {
	m := NewFromClient(nil, func(o *Options) { o.Model = openai.ChatModelGPT4o })
	req := model.Request{
		Messages: []core.Message{core.NewUserMessage("2+2?")},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "add",
				Description: "adds two numbers",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"a": map[string]any{"type": "number"}},
				},
			},
		}},
	}

	params := m.buildParams(req)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "add", params.Tools[0].Function.Name)
	assert.Equal(t, openai.ChatModelGPT4o, params.Model)
}

func TestInfo(t *testing.T) {
	m := NewFromClient(nil, func(o *Options) { o.Model = "gpt-test" })

	info := m.Info()

	assert.Equal(t, "gpt-test", info.Name)
	assert.Equal(t, "openai", info.Provider)
	assert.True(t, info.SupportsTools)
}
