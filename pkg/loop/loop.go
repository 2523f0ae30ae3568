// Package loop implements the conversation-to-tool-call orchestration loop.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
	"github.com/rcliao/teeny-mcp/pkg/message"
	"github.com/rcliao/teeny-mcp/pkg/provider"
	"github.com/rcliao/teeny-mcp/pkg/session"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

// EndOfTurn is returned by Run when the model has answered without a tool.
const EndOfTurn = "<<<"

// transcriptWidth is the column limit for printed tool results.
const transcriptWidth = 90

// Transport dispatches a tool call to the tool server.
type Transport interface {
	CallTool(ctx context.Context, name string, args map[string]any) (message.ToolResult, error)
}

// ToolSet is the registry view the loop needs.
type ToolSet interface {
	Tools() []toolreg.ToolDescriptor
	Lookup(name string) (toolreg.ToolDescriptor, bool)
}

// Config for the agent loop.
type Config struct {
	// MaxIterations caps adapter calls per turn. Zero or less disables the cap.
	MaxIterations int
	// Transcript receives the rendered messages of each turn. Nil discards.
	Transcript io.Writer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 20,
	}
}

// AgentLoop drives one conversation through model and tool round trips.
// It is not safe for concurrent use.
type AgentLoop struct {
	provider  provider.Provider
	tools     ToolSet
	transport Transport
	conv      *session.Conversation
	cfg       Config
	log       *slog.Logger
}

// New creates an agent loop. A nil conversation starts a fresh one.
func New(p provider.Provider, tools ToolSet, tr Transport, conv *session.Conversation, cfg Config, log *slog.Logger) *AgentLoop {
	if conv == nil {
		conv = session.NewConversation()
	}
	if cfg.Transcript == nil {
		cfg.Transcript = io.Discard
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AgentLoop{
		provider:  p,
		tools:     tools,
		transport: tr,
		conv:      conv,
		cfg:       cfg,
		log:       log,
	}
}

// Conversation returns the conversation the loop appends to.
func (al *AgentLoop) Conversation() *session.Conversation {
	return al.conv
}

// Run processes one user query through the tool loop and returns EndOfTurn
// once the model answers in plain text. On failure the messages appended so
// far stay in the conversation.
func (al *AgentLoop) Run(ctx context.Context, query string) (string, error) {
	al.conv.Append(message.NewUser(query, message.KindText, nil))
	tools := al.tools.Tools()

	for i := 0; al.cfg.MaxIterations <= 0 || i < al.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		al.log.Debug("calling model", "backend", al.provider.Name(), "iteration", i+1, "messages", al.conv.Len())

		d, err := al.provider.Send(ctx, al.conv.Messages(), tools)
		if err != nil {
			var pe *chaterr.ProtocolError
			if errors.As(err, &pe) {
				al.log.Error("unreadable model response", "backend", pe.Backend, "err", err)
			}
			return "", err
		}
		al.conv.Append(d.Messages...)
		for _, m := range d.Messages {
			fmt.Fprintln(al.cfg.Transcript, m.String())
		}

		if !d.ShouldUseTool {
			return EndOfTurn, nil
		}
		if d.ToolName == "" || d.ToolInput == nil {
			al.log.Debug("tool decision without name or input, asking again", "backend", al.provider.Name())
			continue
		}
		if _, ok := al.tools.Lookup(d.ToolName); !ok {
			return "", &chaterr.ToolInvocationError{Tool: d.ToolName, Message: "unknown tool"}
		}

		results, err := al.callTool(ctx, d.ToolName, d.ToolInput)
		if err != nil {
			return "", err
		}
		al.conv.Append(results...)
		for _, m := range results {
			fmt.Fprintln(al.cfg.Transcript, shorten(m.String(), transcriptWidth))
		}
	}
	return "", &chaterr.LoopLimitExceededError{Limit: al.cfg.MaxIterations}
}

// callTool runs a dispatched call to completion. The tool server has no
// cancellation, so the caller's cancellation is not forwarded.
func (al *AgentLoop) callTool(ctx context.Context, name string, input map[string]any) ([]message.Message, error) {
	al.log.Info("calling tool", "tool", name, "input", input)
	result, err := al.transport.CallTool(context.WithoutCancel(ctx), name, input)
	if err != nil {
		return nil, err
	}
	al.log.Debug("tool returned", "tool", name, "parts", len(result.Content))
	return al.provider.ReadToolResult(name, input, result), nil
}

// shorten collapses whitespace and, if the text is wider than width, cuts it
// at a word boundary and appends "...".
func shorten(s string, width int) string {
	words := strings.Fields(s)
	joined := strings.Join(words, " ")
	if len(joined) <= width {
		return joined
	}
	const placeholder = "..."
	var b strings.Builder
	for _, w := range words {
		n := len(w)
		if b.Len() > 0 {
			n++
		}
		if b.Len()+n+len(placeholder) > width {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String() + placeholder
}
