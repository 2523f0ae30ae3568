// Package chaterr holds the error taxonomy shared by the chat client:
// session setup, channel, backend protocol and tool failures.
package chaterr

import (
	"errors"
	"fmt"
)

// ConnectionError reports that the tool server could not be spawned or the
// MCP handshake failed. It is fatal for the session.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %q: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports a failure talking to a backend or to the tool
// server once the session is up. Backend is "openai", "gemini",
// "anthropic" or "mcp".
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a backend response the adapter cannot interpret.
type ProtocolError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: protocol: %s: %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: protocol: %s", e.Backend, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ToolInvocationError reports a missing tool or a tool that failed on the
// server side. Message is the text shown to the user.
type ToolInvocationError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolInvocationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("tool %s: %s", e.Tool, msg)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// LoopLimitExceededError is returned when a turn needs more model calls
// than the configured maximum.
type LoopLimitExceededError struct {
	Limit int
}

func (e *LoopLimitExceededError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d iterations", e.Limit)
}

// IsFatal reports whether err ends the chat session rather than just the
// current turn.
func IsFatal(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
