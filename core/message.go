package core

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Conversation roles understood by the engine and the model adapters.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Message holds a conversation role and its ordered content parts. Messages
// are the unit stored in Memory and exchanged with models.
type Message struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewUserMessage builds a user message with a single text part.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantMessage builds an assistant message with a single text part.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}}
}

// NewToolMessage builds a tool-role message carrying one function response.
// A non-nil err is copied into the response's Error field.
func NewToolMessage(id, name string, result any, err error) Message {
	fr := FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	return Message{Role: RoleTool, Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
}

// Text returns the concatenation of all text parts, in order.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// FunctionCalls returns the FunctionCall parts in their original order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the FunctionResponse parts in their original order.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// Part discriminator values used on the wire.
const (
	partTypeText             = "text"
	partTypeData             = "data"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

func marshalPart(p Part) ([]byte, error) {
	var (
		b   []byte
		typ string
		err error
	)
	switch v := p.(type) {
	case TextPart:
		typ = partTypeText
		b, err = json.Marshal(v)
	case DataPart:
		typ = partTypeData
		b, err = json.Marshal(v)
	case FunctionCallPart:
		typ = partTypeFunctionCall
		b, err = json.Marshal(v)
	case FunctionResponsePart:
		typ = partTypeFunctionResponse
		b, err = json.Marshal(v)
	default:
		return nil, fmt.Errorf("core: cannot marshal part of type %T", p)
	}
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(b, "type", typ)
}

func unmarshalPart(data []byte) (Part, error) {
	switch typ := gjson.GetBytes(data, "type").Str; typ {
	case partTypeText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case partTypeData:
		var p DataPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case partTypeFunctionCall:
		var p FunctionCallPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case partTypeFunctionResponse:
		var p FunctionResponsePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("core: unknown part type %q", typ)
	}
}

// MarshalJSON encodes the message with a type discriminator on every part so
// the closed Part union survives a round trip.
func (m Message) MarshalJSON() ([]byte, error) {
	parts := make([]json.RawMessage, 0, len(m.Parts))
	for _, p := range m.Parts {
		b, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, b)
	}
	return json.Marshal(struct {
		Role  string            `json:"role,omitempty"`
		Parts []json.RawMessage `json:"parts"`
	}{Role: m.Role, Parts: parts})
}

// UnmarshalJSON decodes a message produced by MarshalJSON, dispatching each
// part on its type discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string            `json:"role"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts := make([]Part, 0, len(raw.Parts))
	for _, rp := range raw.Parts {
		p, err := unmarshalPart(rp)
		if err != nil {
			return err
		}
		parts = append(parts, p)
	}
	m.Role = raw.Role
	m.Parts = parts
	return nil
}
