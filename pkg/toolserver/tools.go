package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errNoDatabase = errors.New("database path not configured")

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func stringArgSchema(name, description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "string", "description": description},
		},
		"required": []any{name},
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_current_datetime",
		Description: "Get current date and time for my locale.",
		InputSchema: emptySchema(),
	}, s.currentDatetime)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "select_query",
		Description: "Make a request to a connected SQlite database.",
		InputSchema: stringArgSchema("query", "a SQL SELECT query compatible with SQlite3"),
	}, s.selectQuery)

	s.mcp.AddTool(&mcp.Tool{
		Name: "get_database_schema",
		Description: "Get the database schema to understand what tables and columns are available. " +
			"This is useful when in doubt of what to look for. It takes no arguments. " +
			"Run this before running the tool to query the database.",
		InputSchema: emptySchema(),
	}, s.databaseSchema)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_resource_files",
		Description: "Get a list of file names from the resource directory.",
		InputSchema: emptySchema(),
	}, s.listResourceFiles)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "read_resource_file",
		Description: "Read a file given a specific name from the resource directory.",
		InputSchema: stringArgSchema("name", "a valid file name"),
	}, s.readResourceFile)
}

func (s *Server) currentDatetime(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResult(s.cfg.Now().Format("2006-01-02 15:04:05")), nil
}

func (s *Server) selectQuery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return toolError(req, err), nil
	}
	s.log.Info("received query", "query", args.Query)

	rows, err := s.query(ctx, args.Query)
	if err != nil {
		s.log.Error("query failed", "query", args.Query, "err", err)
		return toolError(req, err), nil
	}
	s.log.Info("executed query", "results", len(rows))
	return textResult(rows...), nil
}

func (s *Server) databaseSchema(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Info("retrieving schema", "db", s.cfg.DBPath)
	if s.db == nil {
		return toolError(req, errNoDatabase), nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT sql FROM sqlite_master WHERE type='table' AND sql IS NOT NULL")
	if err != nil {
		return toolError(req, err), nil
	}
	defer rows.Close()

	statements := []string{}
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return toolError(req, err), nil
		}
		statements = append(statements, stmt)
	}
	if err := rows.Err(); err != nil {
		return toolError(req, err), nil
	}
	data, err := json.Marshal(statements)
	if err != nil {
		return toolError(req, err), nil
	}
	return textResult(string(data)), nil
}

func (s *Server) listResourceFiles(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.resourceFiles()
	if err != nil {
		return toolError(req, err), nil
	}
	return textResult(names...), nil
}

func (s *Server) readResourceFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return toolError(req, err), nil
	}
	path, err := s.resourcePath(args.Name)
	if err != nil {
		return toolError(req, err), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return toolError(req, err), nil
	}
	out, err := json.Marshal(map[string]string{
		"mimeType": mimeType(args.Name),
		"text":     string(data),
	})
	if err != nil {
		return toolError(req, err), nil
	}
	return textResult(string(out)), nil
}

// query runs a read-only statement and renders each row.
func (s *Server) query(ctx context.Context, q string) ([]string, error) {
	if s.db == nil {
		return nil, errNoDatabase
	}
	if !isReadOnlyStatement(q) {
		return nil, fmt.Errorf("only SELECT queries are allowed")
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			switch val := v.(type) {
			case []byte:
				if cols[i].DatabaseTypeName() != "BLOB" {
					values[i] = string(val)
				}
			case time.Time:
				values[i] = formatTime(val, cols[i].DatabaseTypeName())
			}
		}
		out = append(out, renderRow(values))
	}
	return out, rows.Err()
}

// isReadOnlyStatement checks the leading keyword after any comments. The
// database is opened read-only as well, so this only gives a clearer error.
func isReadOnlyStatement(q string) bool {
	fields := strings.Fields(skipLeadingComments(q))
	if len(fields) == 0 {
		return false
	}
	keyword := strings.TrimLeft(fields[0], "(")
	if i := strings.IndexAny(keyword, "(;"); i >= 0 {
		keyword = keyword[:i]
	}
	switch strings.ToUpper(keyword) {
	case "SELECT", "WITH", "VALUES", "EXPLAIN":
		return true
	}
	return false
}

func skipLeadingComments(q string) string {
	for {
		q = strings.TrimSpace(q)
		switch {
		case strings.HasPrefix(q, "--"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q[2:], "*/")
			if i < 0 {
				return ""
			}
			q = q[i+4:]
		default:
			return q
		}
	}
}

func decodeArgs(req *mcp.CallToolRequest, dst any) error {
	raw := req.Params.Arguments
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func textResult(texts ...string) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(texts))
	for _, t := range texts {
		content = append(content, &mcp.TextContent{Text: t})
	}
	return &mcp.CallToolResult{Content: content}
}

func toolError(req *mcp.CallToolRequest, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error executing tool %s: %v", req.Params.Name, err)}},
	}
}
