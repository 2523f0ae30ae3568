// Package provider adapts LLM backends to the canonical message and
// decision types used by the orchestration loop.
package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/rcliao/teeny-mcp/pkg/message"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

// ErrEmptyConversation is returned by Send when there is nothing to send.
var ErrEmptyConversation = errors.New("conversation is empty")

// Decision is the normalized outcome of one model call.
//
// When ShouldUseTool is false, Messages holds exactly one assistant text
// message. When it is true, Messages holds exactly one assistant tool_use
// message describing the pending call. ToolName is empty and ToolInput is
// nil when the backend omitted them; an empty mapping is a non-nil empty map.
type Decision struct {
	Messages      []message.Message
	ShouldUseTool bool
	ToolName      string
	ToolInput     map[string]any
}

// Provider is the interface all LLM backends implement.
type Provider interface {
	// Name identifies the backend in logs and errors.
	Name() string
	// Send performs one blocking model call over the conversation.
	Send(ctx context.Context, conversation []message.Message, tools []toolreg.ToolDescriptor) (*Decision, error)
	// ReadToolResult turns a tool result into user-role messages, one per
	// content part, without any network access.
	ReadToolResult(toolName string, toolInput map[string]any, result message.ToolResult) []message.Message
}

// Option configures a provider.
type Option func(*options)

type options struct {
	baseURL   string
	maxTokens int
	log       *slog.Logger
}

// WithBaseURL sets a custom API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithMaxTokens caps the length of each model reply.
func WithMaxTokens(n int) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithLogger sets the logger used for request and response diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

const defaultMaxTokens = 1024

func buildOptions(opts []Option) options {
	o := options{maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxTokens <= 0 {
		o.maxTokens = defaultMaxTokens
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}
