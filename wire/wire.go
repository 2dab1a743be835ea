// Package wire serializes events to and from JSON for storage and transport.
// The envelope fields are encoded as-is; the payload travels under a
// "payload" key next to a "type" discriminator carrying the event kind, so
// the closed payload union survives the event log, the server streams and
// external consumers.
package wire

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/braidworks/braid/core"
)

// Marshal encodes ev as a self-describing JSON document.
func Marshal(ev core.Event) ([]byte, error) {
	if ev.Payload == nil {
		return nil, fmt.Errorf("wire: event has no payload")
	}

	env, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, err
	}

	env, err = sjson.SetBytes(env, "type", string(ev.Kind()))
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(env, "payload", body)
}

// Kind peeks at the type discriminator of an encoded event without decoding
// the rest. It returns "" when the document carries none.
func Kind(data []byte) core.EventKind {
	return core.EventKind(gjson.GetBytes(data, "type").Str)
}

// Unmarshal decodes a document produced by Marshal.
func Unmarshal(data []byte) (core.Event, error) {
	var ev core.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.Event{}, fmt.Errorf("wire: decode envelope: %w", err)
	}

	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return core.Event{}, fmt.Errorf("wire: missing event type")
	}
	body := gjson.GetBytes(data, "payload")
	if !body.Exists() {
		return core.Event{}, fmt.Errorf("wire: missing payload")
	}

	payload, err := unmarshalPayload(core.EventKind(typ.Str), []byte(body.Raw))
	if err != nil {
		return core.Event{}, err
	}
	ev.Payload = payload
	return ev, nil
}

func decode[P core.Payload](data []byte) (core.Payload, error) {
	var p P
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: decode payload: %w", err)
	}
	return p, nil
}

func unmarshalPayload(kind core.EventKind, data []byte) (core.Payload, error) {
	switch kind {
	case core.KindTaskBegin:
		return decode[core.TaskBegin](data)
	case core.KindStepBegin:
		return decode[core.StepBegin](data)
	case core.KindStepCall:
		return decode[core.StepCall](data)
	case core.KindStepEnd:
		return decode[core.StepEnd](data)
	case core.KindStepRetry:
		return decode[core.StepRetry](data)
	case core.KindTaskEnd:
		return decode[core.TaskEnd](data)
	case core.KindTaskError:
		return decode[core.TaskError](data)
	case core.KindSubtaskBegin:
		return decode[core.SubtaskBegin](data)
	case core.KindSubtaskEnd:
		return decode[core.SubtaskEnd](data)
	case core.KindSubtaskError:
		return decode[core.SubtaskError](data)
	case core.KindSubtaskProgress:
		return decode[core.SubtaskProgress](data)
	case core.KindContentDelta:
		return decode[core.ContentDelta](data)
	case core.KindCustom:
		return decode[core.Custom](data)
	default:
		return nil, fmt.Errorf("wire: unknown event type %q", kind)
	}
}
