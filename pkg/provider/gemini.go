package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
	"github.com/rcliao/teeny-mcp/pkg/message"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

const geminiDefaultModel = "gemini-2.5-flash"

// Gemini implements Provider for Google Gemini models.
type Gemini struct {
	toolResultReader
	client *genai.Client
	model  string
	opts   options
}

// NewGemini creates a Gemini provider against the Gemini API backend.
// model defaults to gemini-2.5-flash if empty.
func NewGemini(ctx context.Context, apiKey, model string, opts ...Option) (*Gemini, error) {
	if model == "" {
		model = geminiDefaultModel
	}
	o := buildOptions(opts)
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{client: client, model: model, opts: o}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Send flattens the conversation into a single "<role>: <content>" prompt
// and declares each tool as a function with a converted schema.
func (g *Gemini) Send(ctx context.Context, conversation []message.Message, tools []toolreg.ToolDescriptor) (*Decision, error) {
	if len(conversation) == 0 {
		return nil, ErrEmptyConversation
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.opts.maxTokens),
	}
	if decls := toFunctionDeclarations(tools); len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	g.opts.log.Debug("sending request", "backend", g.Name(), "messages", len(conversation), "tools", len(tools))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(flattenConversation(conversation)), cfg)
	if err != nil {
		return nil, &chaterr.TransportError{Backend: g.Name(), Err: err}
	}
	return g.interpret(resp)
}

func (g *Gemini) interpret(resp *genai.GenerateContentResponse) (*Decision, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &chaterr.ProtocolError{Backend: g.Name(), Reason: "response has no candidates"}
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return nil, &chaterr.ProtocolError{Backend: g.Name(), Reason: fmt.Sprintf("candidate has no content (finish reason %q)", cand.FinishReason)}
	}

	var (
		texts []string
		calls []toolCall
	)
	for i, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		g.opts.log.Debug("processing part", "backend", g.Name(), "index", i)
		switch {
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, toolCall{name: part.FunctionCall.Name, input: args})
		case part.Thought:
			// Reasoning summaries are not part of the reply.
		case part.Text != "":
			texts = append(texts, part.Text)
		}
	}
	return decide(g.opts.log, g.Name(), texts, calls, cand.Content), nil
}

func flattenConversation(conversation []message.Message) string {
	lines := make([]string, 0, len(conversation))
	for _, m := range conversation {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role(), m.Content()))
	}
	return strings.Join(lines, "\n")
}

func toFunctionDeclarations(tools []toolreg.ToolDescriptor) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decl := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		// Gemini rejects object schemas without properties.
		if props, ok := t.InputSchema["properties"].(map[string]any); ok && len(props) > 0 {
			decl.Parameters = toGeminiSchema(t.InputSchema)
		}
		decls = append(decls, decl)
	}
	return decls
}

// toGeminiSchema converts a JSON-schema object into the restricted
// genai.Schema form. Unsupported keywords are dropped.
func toGeminiSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	if typ, ok := js["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(typ))
	}
	if desc, ok := js["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(pm)
			}
		}
	}
	if req := requiredFields(js); len(req) > 0 {
		s.Required = req
	}
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	if enum, ok := js["enum"].([]any); ok {
		for _, e := range enum {
			s.Enum = append(s.Enum, fmt.Sprint(e))
		}
	}
	return s
}
