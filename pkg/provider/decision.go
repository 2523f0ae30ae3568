package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
	"github.com/rcliao/teeny-mcp/pkg/message"
)

// toolCall is a backend function call reduced to name and decoded input.
type toolCall struct {
	name  string
	input map[string]any
}

// decide reduces the text and function-call parts of one response to a
// Decision. Parts are given in backend order; the first call wins.
func decide(log *slog.Logger, backend string, texts []string, calls []toolCall, raw any) *Decision {
	if len(calls) > 0 {
		call := calls[0]
		if len(calls) > 1 {
			log.Debug("dropping extra tool calls", "backend", backend, "kept", call.name, "dropped", len(calls)-1)
		}
		return &Decision{
			Messages: []message.Message{
				message.NewAssistant(describeToolUse(call.name, call.input), message.KindToolUse, raw),
			},
			ShouldUseTool: true,
			ToolName:      call.name,
			ToolInput:     call.input,
		}
	}
	return &Decision{
		Messages: []message.Message{
			message.NewAssistant(strings.Join(texts, "\n"), message.KindText, raw),
		},
	}
}

// decodeArguments parses a JSON object of tool arguments. Empty input and
// JSON null both decode to an empty map.
func decodeArguments(backend string, raw []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &chaterr.ProtocolError{Backend: backend, Reason: "decode tool arguments", Err: err}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func describeToolUse(name string, input map[string]any) string {
	return fmt.Sprintf("Using tool %s with inputs %s...", name, renderInput(input))
}

// renderInput formats tool input as compact JSON with sorted keys.
func renderInput(input map[string]any) string {
	if len(input) == 0 {
		return "{}"
	}
	b, err := json.Marshal(input)
	if err != nil {
		return fmt.Sprint(input)
	}
	return string(b)
}

// ReadToolResult renders one user message per content part of result, in
// order, tagged with the part's own content kind.
func ReadToolResult(toolName string, toolInput map[string]any, result message.ToolResult) []message.Message {
	msgs := make([]message.Message, 0, len(result.Content))
	for _, part := range result.Content {
		content := fmt.Sprintf("Tool %s with inputs %s returned:\n%s", toolName, renderInput(toolInput), part.Text)
		msgs = append(msgs, message.NewUser(content, message.Kind(part.Kind), part))
	}
	return msgs
}

// toolResultReader gives every backend the shared ReadToolResult method.
type toolResultReader struct{}

func (toolResultReader) ReadToolResult(toolName string, toolInput map[string]any, result message.ToolResult) []message.Message {
	return ReadToolResult(toolName, toolInput, result)
}
