package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
	"github.com/rcliao/teeny-mcp/pkg/message"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

// Anthropic implements Provider for Claude models.
type Anthropic struct {
	toolResultReader
	client anthropic.Client
	model  anthropic.Model
	opts   options
	apiKey string
}

// NewAnthropic creates an Anthropic provider.
// model defaults to claude-sonnet-4-20250514 if empty. SDK retries are
// disabled so the first failure reaches the caller.
func NewAnthropic(apiKey, model string, opts ...Option) *Anthropic {
	m := anthropic.ModelClaude4Sonnet20250514
	if model != "" {
		m = anthropic.Model(model)
	}
	o := buildOptions(opts)
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(reqOpts...),
		model:  m,
		opts:   o,
		apiKey: apiKey,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

// Send maps each message to a single text block in its role and walks the
// returned content blocks in order.
func (a *Anthropic) Send(ctx context.Context, conversation []message.Message, tools []toolreg.ToolDescriptor) (*Decision, error) {
	if len(conversation) == 0 {
		return nil, ErrEmptyConversation
	}
	if a.apiKey == "" {
		return nil, &chaterr.TransportError{Backend: a.Name(), Err: fmt.Errorf("ANTHROPIC_API_KEY not set")}
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(a.opts.maxTokens),
		Messages:  toAnthropicMessages(conversation),
		Tools:     toAnthropicTools(tools),
	}
	a.opts.log.Debug("sending request", "backend", a.Name(), "messages", len(params.Messages), "tools", len(params.Tools))

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &chaterr.TransportError{Backend: a.Name(), Err: err}
	}
	a.opts.log.Debug("model response", "backend", a.Name(), "blocks", len(resp.Content),
		"stop_reason", resp.StopReason, "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	return a.interpret(resp.Content, resp)
}

func (a *Anthropic) interpret(blocks []anthropic.ContentBlockUnion, raw any) (*Decision, error) {
	var (
		texts []string
		calls []toolCall
	)
	for _, block := range blocks {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			args, err := decodeArguments(a.Name(), block.Input)
			if err != nil {
				return nil, err
			}
			a.opts.log.Debug("tool_use block", "backend", a.Name(), "id", block.ID, "name", block.Name)
			calls = append(calls, toolCall{name: block.Name, input: args})
		default:
			a.opts.log.Debug("skipping content block", "backend", a.Name(), "type", block.Type)
		}
	}
	return decide(a.opts.log, a.Name(), texts, calls, raw), nil
}

func toAnthropicMessages(conversation []message.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(conversation))
	for _, m := range conversation {
		block := anthropic.NewTextBlock(m.Content())
		if m.Role() == message.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func toAnthropicTools(tools []toolreg.ToolDescriptor) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Properties: t.InputSchema["properties"],
			Required:   requiredFields(t.InputSchema),
		}
		if schema.Properties == nil {
			schema.Properties = map[string]any{}
		}
		for k, v := range t.InputSchema {
			switch k {
			case "type", "properties", "required":
				continue
			}
			if schema.ExtraFields == nil {
				schema.ExtraFields = map[string]any{}
			}
			schema.ExtraFields[k] = v
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

// requiredFields reads the "required" list of a JSON schema, which may
// arrive as []string or as []any after a JSON round trip.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
