package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/internal/util"
	"github.com/stretchr/testify/assert"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	if req == nil { // reflection may produce []any
		ifaceReq, _ := schema["required"].([]any)
		for _, v := range ifaceReq {
			req = append(req, v.(string))
		}
	}
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestValidateParameters_RequiredStringSlice(t *testing.T) {
	// Schemas built by CreateSchema carry required as []string.
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "string"},
		},
		"required": []string{"x"},
	}

	err := util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)

	err = util.ValidateParameters(map[string]any{"x": "ok"}, schema)
	assert.NoError(t, err)
}

// -------------------- FunctionTool Tests --------------------

// testToolContext builds a ToolContext rooted in a throwaway run. The returned
// channel receives everything the tool emits.
func testToolContext(callID string) (*core.ToolContext, <-chan core.Event) {
	env := core.NewEnv("run-1", nil, nil)
	task := core.NewNode("task", nil)
	node := core.NewNode("tool", task)

	emitted := make(chan core.Event, 16)
	emit := func(ev core.Event) bool {
		emitted <- ev
		return true
	}

	return core.NewToolContext(context.Background(), env, node, callID, emit), emitted
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	tc, _ := testToolContext("fc1")
	result, err := sumTool.Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	tc, _ := testToolContext("fc2")
	_, err := tTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	tc, _ := testToolContext("fc3")
	_, err := execTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestFunctionTool_ToolErrorPassThrough(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("rate_limited", "slow down", "RATE_LIMITED")
	rlTool := NewFunctionTool("rate_limited", "Always limited", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})
	tc, _ := testToolContext("fc4")
	_, err := rlTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Same(t, custom, toolErr) // custom codes must not be re-wrapped
	assert.Equal(t, "RATE_LIMITED", toolErr.Code)
}

func TestFunctionTool_ProgressReachesEmitter(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	reporting := NewFunctionTool("report", "Reports progress", params, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		tc.Progress(map[string]any{"pct": 50})
		return "done", nil
	})

	tc, emitted := testToolContext("fc5")
	result, err := reporting.Call(tc, map[string]any{})
	assert.NoError(t, err)
	assert.Equal(t, "done", result)

	ev := <-emitted
	progress, ok := ev.Payload.(core.SubtaskProgress)
	assert.True(t, ok)
	assert.Equal(t, 50, progress.Data["pct"])
	assert.Equal(t, tc.Node().ID(), ev.NodeID) // stamped with the tool's node
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type sumArgs struct {
		A float64 `json:"a" description:"First addend"`
		B float64 `json:"b" description:"Second addend"`
	}

	sumTool := NewFunctionToolFromStruct("sum", "Add numbers", sumArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	assert.Equal(t, "sum", sumTool.Name())
	assert.Equal(t, "Add numbers", sumTool.Description())

	tc, _ := testToolContext("fc6")

	// Derived schema enforces both fields.
	_, err := sumTool.Call(tc, map[string]any{"a": 1.0})
	assert.Error(t, err)

	result, err := sumTool.Call(tc, map[string]any{"a": 1.0, "b": 2.5})
	assert.NoError(t, err)
	assert.Equal(t, 3.5, result)
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	uncoded := &ToolError{Tool: "demo", Message: "plain"}
	assert.Equal(t, "tool error in demo: plain", uncoded.Error())
}
