// Package toolcall decodes voice-agent tool invocations and encodes the
// replies the agent expects back.
//
// Agents send arguments in one of two envelopes. The flat envelope carries
// the arguments as top-level keys. The tool-call envelope nests them under
// message.toolCalls[0].function.arguments and carries a call id that has to be
// echoed in the reply.
package toolcall

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape identifies which envelope a request arrived in.
type Shape int

const (
	// ShapeFlat is a body whose top-level keys are the arguments.
	ShapeFlat Shape = iota
	// ShapeToolCall is the nested message.toolCalls envelope.
	ShapeToolCall
)

func (s Shape) String() string {
	if s == ShapeToolCall {
		return "tool_call"
	}
	return "flat"
}

// Args are the caller-supplied fields the scheduler cares about.
type Args struct {
	Date string
	Time string
	Name string
}

// Envelope is the result of decoding a request body.
type Envelope struct {
	Shape Shape
	// CallID is the correlation token; empty for flat envelopes.
	CallID   string
	ToolName string
	Args     Args
	// Malformed is set when a tool-call envelope was present but its
	// arguments could not be decoded. Args is empty in that case.
	Malformed bool
}

// HasCallID reports whether replies must use the correlated results envelope.
func (e Envelope) HasCallID() bool {
	return e.CallID != ""
}

// Parse decodes a raw request body. It fails only when the body is not a
// JSON object at all; every structural problem inside the object degrades to
// an envelope with no arguments.
func Parse(body []byte) (Envelope, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, fmt.Errorf("toolcall: decode body: %w", err)
	}
	if raw == nil {
		return Envelope{}, fmt.Errorf("toolcall: body is not a JSON object")
	}
	return Extract(raw), nil
}

// Extract picks the argument source out of an already-decoded body. It never
// fails.
func Extract(raw map[string]any) Envelope {
	call, ok := firstToolCall(raw)
	if !ok {
		return Envelope{Shape: ShapeFlat, Args: argsFrom(raw)}
	}

	env := Envelope{Shape: ShapeToolCall, CallID: stringValue(call["id"])}
	fn, _ := call["function"].(map[string]any)
	env.ToolName = stringValue(fn["name"])

	switch arguments := fn["arguments"].(type) {
	case map[string]any:
		env.Args = argsFrom(arguments)
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(arguments), &decoded); err != nil {
			env.Malformed = true
			return env
		}
		env.Args = argsFrom(decoded)
	default:
		env.Malformed = true
	}
	return env
}

// firstToolCall returns message.toolCalls[0], falling back to the
// message.toolCallList alias.
func firstToolCall(raw map[string]any) (map[string]any, bool) {
	msg, ok := raw["message"].(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range []string{"toolCalls", "toolCallList"} {
		calls, ok := msg[key].([]any)
		if !ok || len(calls) == 0 {
			continue
		}
		call, ok := calls[0].(map[string]any)
		if !ok {
			// A non-object entry still signals the nested shape.
			return map[string]any{}, true
		}
		return call, true
	}
	return nil, false
}

func argsFrom(source map[string]any) Args {
	date := stringValue(source["day"])
	if date == "" {
		date = stringValue(source["date"])
	}
	return Args{
		Date: date,
		Time: stringValue(source["time"]),
		Name: stringValue(source["name"]),
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strings.TrimSpace(fmt.Sprint(val))
	default:
		return ""
	}
}
