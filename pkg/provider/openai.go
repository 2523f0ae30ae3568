package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
	"github.com/rcliao/teeny-mcp/pkg/message"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

const openaiDefaultModel = "gpt-4o"

// OpenAI implements Provider for OpenAI-compatible chat completion APIs.
// Works with OpenAI, Groq, Together, Ollama, and any OpenAI-compatible endpoint.
type OpenAI struct {
	toolResultReader
	client *openai.Client
	model  string
	opts   options
	apiKey string
}

// NewOpenAI creates an OpenAI-compatible provider.
// model defaults to gpt-4o if empty.
func NewOpenAI(apiKey, model string, opts ...Option) *OpenAI {
	if model == "" {
		model = openaiDefaultModel
	}
	o := buildOptions(opts)
	cc := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cc.BaseURL = o.baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cc),
		model:  model,
		opts:   o,
		apiKey: apiKey,
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Send maps each message to a {role, content} pair and each tool to a
// function definition carrying the input schema as parameters.
func (o *OpenAI) Send(ctx context.Context, conversation []message.Message, tools []toolreg.ToolDescriptor) (*Decision, error) {
	if len(conversation) == 0 {
		return nil, ErrEmptyConversation
	}
	// Local compatible endpoints usually run without a key.
	if o.apiKey == "" && o.opts.baseURL == "" {
		return nil, &chaterr.TransportError{Backend: o.Name(), Err: fmt.Errorf("API key not set (OPENAI_API_KEY)")}
	}

	req := openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.opts.maxTokens,
		Messages:  toOpenAIMessages(conversation),
		Tools:     toOpenAITools(tools),
	}
	o.opts.log.Debug("sending request", "backend", o.Name(), "messages", len(req.Messages), "tools", len(req.Tools))

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, &chaterr.TransportError{Backend: o.Name(), Err: err}
	}
	o.opts.log.Debug("model response", "backend", o.Name(), "choices", len(resp.Choices),
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return nil, &chaterr.ProtocolError{Backend: o.Name(), Reason: "response has no choices"}
	}
	completion := resp.Choices[0].Message

	var calls []toolCall
	for _, tc := range completion.ToolCalls {
		args, err := decodeArguments(o.Name(), []byte(tc.Function.Arguments))
		if err != nil {
			return nil, err
		}
		calls = append(calls, toolCall{name: tc.Function.Name, input: args})
	}
	var texts []string
	if completion.Content != "" {
		texts = append(texts, completion.Content)
	}
	return decide(o.opts.log, o.Name(), texts, calls, completion), nil
}

func toOpenAIMessages(conversation []message.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, m := range conversation {
		role := openai.ChatMessageRoleUser
		if m.Role() == message.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content()})
	}
	return msgs
}

func toOpenAITools(tools []toolreg.ToolDescriptor) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  objectSchema(t.InputSchema),
			},
		})
	}
	return defs
}

// objectSchema substitutes an empty object schema for tools without one.
func objectSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return schema
}
