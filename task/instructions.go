package task

import (
	"context"

	"github.com/braidworks/braid/internal/util"
)

// InstructionsProvider supplies the system prompt for a step. The engine does
// not render prompts itself; it consults the provider once per step and hands
// the result to the model untouched. Providers receive the step's context, so
// they can read the current node or task scope when the prompt depends on
// position in the tree.
type InstructionsProvider interface {
	Instructions(ctx context.Context) (string, error)
}

// InstructionsFunc adapts an ordinary function to the InstructionsProvider
// interface.
type InstructionsFunc func(ctx context.Context) (string, error)

// Instructions implements InstructionsProvider.
func (f InstructionsFunc) Instructions(ctx context.Context) (string, error) { return f(ctx) }

// staticInstructions is the provider behind a plain Options.Instructions
// string.
type staticInstructions string

// Instructions implements InstructionsProvider.
func (s staticInstructions) Instructions(context.Context) (string, error) { return string(s), nil }

// TemplateInstructions renders tmpl against the values resolved at step time.
// Templates use text/template syntax with the helpers from the runtime's
// template support ({{.name}}, default, upper, lower, join); a nil values
// function renders against an empty map.
//
// Example:
//
//	Instructions: task.TemplateInstructions(
//	    "You are {{.persona | default \"a helpful assistant\"}}.",
//	    func(ctx context.Context) map[string]any {
//	        return map[string]any{"persona": "a pirate"}
//	    },
//	)
func TemplateInstructions(tmpl string, values func(ctx context.Context) map[string]any) InstructionsProvider {
	return InstructionsFunc(func(ctx context.Context) (string, error) {
		var data map[string]any
		if values != nil {
			data = values(ctx)
		}
		return util.RenderTemplate(tmpl, data)
	})
}
