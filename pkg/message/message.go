// Package message defines the canonical conversation turn shared by every
// provider backend.
package message

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind tags the content of a message. Tool results keep the content kind
// reported by the tool server, so values outside the constants below occur.
type Kind string

const (
	KindText       Kind = "text"
	KindToolUse    Kind = "tool_use"
	KindToolResult Kind = "tool_result"
)

// Message is a single conversational turn. It is immutable: fields are only
// set by NewUser and NewAssistant.
type Message struct {
	role    Role
	content string
	kind    Kind
	raw     any
}

// NewUser creates a user-origin message. raw is an optional backend payload
// kept for diagnostics.
func NewUser(content string, kind Kind, raw any) Message {
	return Message{role: RoleUser, content: content, kind: kind, raw: raw}
}

// NewAssistant creates an assistant-origin message.
func NewAssistant(content string, kind Kind, raw any) Message {
	return Message{role: RoleAssistant, content: content, kind: kind, raw: raw}
}

func (m Message) Role() Role      { return m.role }
func (m Message) Content() string { return m.content }
func (m Message) Kind() Kind      { return m.kind }
func (m Message) Raw() any        { return m.raw }

// String renders the message for display. Anything that is not an
// assistant message is labelled "tool".
func (m Message) String() string {
	label := "tool"
	if m.role == RoleAssistant {
		label = string(RoleAssistant)
	}
	return label + ": " + m.content
}

// ContentPart is one item of a tool result.
type ContentPart struct {
	Kind string
	Text string
}

// ToolResult is the raw payload returned by a tool invocation.
type ToolResult struct {
	Content []ContentPart
}
