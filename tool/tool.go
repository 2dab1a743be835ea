// Package tool defines the tool abstraction invoked by the task loop.
//
// A tool receives validated JSON arguments and a ToolContext that lets it
// report progress and emit custom events while the owning step is still
// streaming. Anything that satisfies the Tool interface can be dispatched,
// including a nested task wrapped as a tool.
package tool

import (
	"fmt"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/internal/util"
)

// Tool is the interface implemented by callable tools. The tool context
// carries the invocation's cancellation signal, node position, and emitter.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a short, human-readable summary of what the tool does.
	Description() string

	// Parameters returns the JSON schema describing the tool's arguments.
	Parameters() map[string]any

	// Call executes the tool with the given arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError reports arguments that do not match a tool's schema.
type ValidationError = util.ValidationError

// ToolError represents a structured error raised by a tool. The task loop
// converts it into an error-bearing function response instead of failing
// the run, so the model can react to it.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
