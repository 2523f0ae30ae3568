package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/genai"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
	"github.com/rcliao/teeny-mcp/pkg/message"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

func testGemini() *Gemini {
	return &Gemini{model: geminiDefaultModel, opts: buildOptions(nil)}
}

func candidate(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestGemini_Name(t *testing.T) {
	if testGemini().Name() != "gemini" {
		t.Error("Name() should be gemini")
	}
}

func TestGemini_InterpretText(t *testing.T) {
	d, err := testGemini().interpret(candidate(
		&genai.Part{Text: "There are"},
		&genai.Part{Text: "3 tables."},
	))
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if d.ShouldUseTool || len(d.Messages) != 1 || d.Messages[0].Content() != "There are\n3 tables." {
		t.Fatalf("decision = %+v", d)
	}
}

func TestGemini_InterpretFunctionCallAnywhere(t *testing.T) {
	d, err := testGemini().interpret(candidate(
		&genai.Part{Text: "I will look at the schema."},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "get_database_schema"}},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "select_query", Args: map[string]any{"query": "SELECT 1"}}},
	))
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if !d.ShouldUseTool || d.ToolName != "get_database_schema" {
		t.Fatalf("decision = %+v", d)
	}
	if d.ToolInput == nil || len(d.ToolInput) != 0 {
		t.Fatalf("tool input = %#v, want empty map", d.ToolInput)
	}
	if len(d.Messages) != 1 || d.Messages[0].Kind() != message.KindToolUse {
		t.Fatalf("messages = %v", d.Messages)
	}
}

func TestGemini_InterpretZeroParts(t *testing.T) {
	d, err := testGemini().interpret(candidate())
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if d.ShouldUseTool || len(d.Messages) != 1 || d.Messages[0].Content() != "" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestGemini_InterpretSkipsThoughts(t *testing.T) {
	d, err := testGemini().interpret(candidate(
		&genai.Part{Text: "thinking...", Thought: true},
		&genai.Part{Text: "answer"},
	))
	if err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if d.Messages[0].Content() != "answer" {
		t.Fatalf("content = %q", d.Messages[0].Content())
	}
}

func TestGemini_InterpretMalformed(t *testing.T) {
	tests := []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
	}
	for i, resp := range tests {
		_, err := testGemini().interpret(resp)
		var pe *chaterr.ProtocolError
		if !errors.As(err, &pe) || pe.Backend != "gemini" {
			t.Errorf("case %d: expected gemini ProtocolError, got %v", i, err)
		}
	}
}

func TestFlattenConversation(t *testing.T) {
	got := flattenConversation([]message.Message{
		message.NewUser("What tables exist?", message.KindText, nil),
		message.NewAssistant("Using tool get_database_schema with inputs {}...", message.KindToolUse, nil),
	})
	want := "user: What tables exist?\nassistant: Using tool get_database_schema with inputs {}..."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestToFunctionDeclarations(t *testing.T) {
	decls := toFunctionDeclarations([]toolreg.ToolDescriptor{
		{Name: "get_current_datetime", Description: "now", InputSchema: map[string]any{"type": "object", "properties": map[string]any{}}},
		{Name: "select_query", Description: "query", InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "SQL"},
				"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"mode":  map[string]any{"type": "string", "enum": []any{"fast", "slow"}},
			},
			"required": []any{"query"},
		}},
	})
	if len(decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(decls))
	}
	if decls[0].Parameters != nil {
		t.Errorf("no-arg tool should have nil parameters, got %+v", decls[0].Parameters)
	}
	p := decls[1].Parameters
	if p == nil || p.Type != genai.TypeObject {
		t.Fatalf("parameters = %+v", p)
	}
	if p.Properties["query"].Type != genai.TypeString || p.Properties["query"].Description != "SQL" {
		t.Errorf("query = %+v", p.Properties["query"])
	}
	if p.Properties["tags"].Items == nil || p.Properties["tags"].Items.Type != genai.TypeString {
		t.Errorf("tags = %+v", p.Properties["tags"])
	}
	if len(p.Properties["mode"].Enum) != 2 {
		t.Errorf("mode = %+v", p.Properties["mode"])
	}
	if len(p.Required) != 1 || p.Required[0] != "query" {
		t.Errorf("required = %v", p.Required)
	}
}

func TestGemini_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"functionCall": {"name": "get_database_schema", "args": {}}}]},
				"finishReason": "STOP"
			}]
		}`))
	}))
	defer server.Close()

	g, err := NewGemini(context.Background(), "test-key", "gemini-test", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	d, err := g.Send(context.Background(), userTurn("What tables exist?"), nil)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !d.ShouldUseTool || d.ToolName != "get_database_schema" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestGemini_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key invalid","status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	g, err := NewGemini(context.Background(), "bad-key", "gemini-test", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	_, err = g.Send(context.Background(), userTurn("hi"), nil)
	var te *chaterr.TransportError
	if !errors.As(err, &te) || te.Backend != "gemini" {
		t.Fatalf("expected gemini TransportError, got %v", err)
	}
}
