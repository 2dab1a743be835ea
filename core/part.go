package core

// Part represents a polymorphic segment of role-based message content.
// Concrete part types implement the unexported isPart marker enabling a
// closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         `json:"text"`               // Plain UTF-8 text
	Metadata map[string]any `json:"metadata,omitempty"` // Optional producer-provided metadata
}

func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g. a JSON object map).
type DataPart struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (DataPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Stable id matching the eventual response
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall   `json:"functionCall"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string `json:"name"`               // Function name
	Response any    `json:"response,omitempty"` // Successful result (any shape)
	Error    string `json:"error,omitempty"`    // Populated on failure
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse `json:"functionResponse"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

func (FunctionResponsePart) isPart() {}
