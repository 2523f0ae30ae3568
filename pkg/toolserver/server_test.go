package toolserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, score REAL)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER)`,
		`INSERT INTO users (id, name, score) VALUES (1, 'alice', 3.5), (2, 'bob', NULL), (3, 'o''brien', 2)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func newResourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("meeting at 10"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	return dir
}

func connect(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()
	srv, err := New(cfg, nil)
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx := context.Background()
	serverSession, err := srv.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
		_ = srv.Close()
	})
	return session
}

func call(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, []string) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	var texts []string
	for _, c := range res.Content {
		tc, ok := c.(*mcp.TextContent)
		require.True(t, ok, "content is %T", c)
		texts = append(texts, tc.Text)
	}
	return res, texts
}

func TestListTools(t *testing.T) {
	session := connect(t, Config{})

	var names []string
	for tool, err := range session.Tools(context.Background(), nil) {
		require.NoError(t, err)
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"get_current_datetime",
		"select_query",
		"get_database_schema",
		"list_resource_files",
		"read_resource_file",
	}, names)
}

func TestCurrentDatetime(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	session := connect(t, Config{Now: func() time.Time { return fixed }})

	_, texts := call(t, session, "get_current_datetime", map[string]any{})
	require.Equal(t, []string{"2025-03-14 09:26:53"}, texts)
}

func TestSelectQuery(t *testing.T) {
	session := connect(t, Config{DBPath: newTestDB(t)})

	res, texts := call(t, session, "select_query", map[string]any{"query": "SELECT id, name, score FROM users ORDER BY id"})
	require.False(t, res.IsError)
	require.Equal(t, []string{
		"(1, 'alice', 3.5)",
		"(2, 'bob', None)",
		`(3, "o'brien", 2.0)`,
	}, texts)

	_, texts = call(t, session, "select_query", map[string]any{"query": "select name from users where id = 1"})
	require.Equal(t, []string{"('alice',)"}, texts)
}

func TestSelectQueryDateColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dates.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE events (id INTEGER PRIMARY KEY, d DATE, ts DATETIME)`,
		`INSERT INTO events (id, d, ts) VALUES
			(1, '2024-03-01', '2024-03-01T10:15:30.250+02:00'),
			(2, '2024-03-02', '2024-03-02 08:00:00')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, db.Close())

	session := connect(t, Config{DBPath: path})
	res, texts := call(t, session, "select_query", map[string]any{"query": "SELECT d, ts FROM events ORDER BY id"})
	require.False(t, res.IsError)
	require.Equal(t, []string{
		"('2024-03-01', '2024-03-01 10:15:30.25+02:00')",
		"('2024-03-02', '2024-03-02 08:00:00')",
	}, texts)
}

func TestSelectQueryLeadingComment(t *testing.T) {
	session := connect(t, Config{DBPath: newTestDB(t)})

	res, texts := call(t, session, "select_query", map[string]any{"query": "-- who is first\nSELECT name FROM users WHERE id = 1"})
	require.False(t, res.IsError)
	require.Equal(t, []string{"('alice',)"}, texts)
}

func TestSelectQueryNoRows(t *testing.T) {
	session := connect(t, Config{DBPath: newTestDB(t)})

	res, texts := call(t, session, "select_query", map[string]any{"query": "SELECT * FROM orders"})
	require.False(t, res.IsError)
	require.Empty(t, texts)
}

func TestSelectQueryRejectsWrites(t *testing.T) {
	session := connect(t, Config{DBPath: newTestDB(t)})

	res, texts := call(t, session, "select_query", map[string]any{"query": "DELETE FROM users"})
	require.True(t, res.IsError)
	require.Contains(t, texts[0], "only SELECT queries are allowed")
}

func TestSelectQueryBadSQL(t *testing.T) {
	session := connect(t, Config{DBPath: newTestDB(t)})

	res, texts := call(t, session, "select_query", map[string]any{"query": "SELECT * FROM missing"})
	require.True(t, res.IsError)
	require.Contains(t, texts[0], "Error executing tool select_query")
	require.Contains(t, texts[0], "no such table")
}

func TestSelectQueryWithoutDatabase(t *testing.T) {
	session := connect(t, Config{})

	res, texts := call(t, session, "select_query", map[string]any{"query": "SELECT 1"})
	require.True(t, res.IsError)
	require.Contains(t, texts[0], "database path not configured")
}

func TestDatabaseSchema(t *testing.T) {
	session := connect(t, Config{DBPath: newTestDB(t)})

	_, texts := call(t, session, "get_database_schema", map[string]any{})
	require.Len(t, texts, 1)
	var statements []string
	require.NoError(t, json.Unmarshal([]byte(texts[0]), &statements))
	require.Equal(t, []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, score REAL)",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER)",
	}, statements)
}

func TestListResourceFiles(t *testing.T) {
	session := connect(t, Config{ResourceDir: newResourceDir(t)})

	_, texts := call(t, session, "list_resource_files", map[string]any{})
	require.Equal(t, []string{"a.txt", "notes.txt"}, texts)
}

func TestReadResourceFile(t *testing.T) {
	session := connect(t, Config{ResourceDir: newResourceDir(t)})

	res, texts := call(t, session, "read_resource_file", map[string]any{"name": "notes.txt"})
	require.False(t, res.IsError)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(texts[0]), &payload))
	require.Equal(t, map[string]string{"mimeType": "text/plain", "text": "meeting at 10"}, payload)
}

func TestReadResourceFileRejectsTraversal(t *testing.T) {
	session := connect(t, Config{ResourceDir: newResourceDir(t)})

	for _, name := range []string{"../secret.txt", "/etc/passwd", ""} {
		res, texts := call(t, session, "read_resource_file", map[string]any{"name": name})
		require.True(t, res.IsError, name)
		require.Contains(t, texts[0], "invalid resource name", name)
	}
}

func TestReadResourceFileMissing(t *testing.T) {
	session := connect(t, Config{ResourceDir: newResourceDir(t)})

	res, _ := call(t, session, "read_resource_file", map[string]any{"name": "nope.txt"})
	require.True(t, res.IsError)
}

func TestResourcesRegistered(t *testing.T) {
	dir := newResourceDir(t)
	session := connect(t, Config{ResourceDir: dir})
	ctx := context.Background()

	var resources []*mcp.Resource
	for res, err := range session.Resources(ctx, nil) {
		require.NoError(t, err)
		resources = append(resources, res)
	}
	require.Len(t, resources, 2)

	byName := map[string]*mcp.Resource{}
	for _, r := range resources {
		byName[r.Name] = r
	}
	notes, ok := byName["notes.txt"]
	require.True(t, ok)
	require.Equal(t, "notes.txt", notes.Title)
	require.Equal(t, "text/plain", notes.MIMEType)

	read, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: notes.URI})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	require.Equal(t, "meeting at 10", read.Contents[0].Text)
}

func TestNoResourcesWithoutDir(t *testing.T) {
	session := connect(t, Config{})
	require.Nil(t, session.InitializeResult().Capabilities.Resources)
}

func TestIsReadOnlyStatement(t *testing.T) {
	tests := []struct {
		q    string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from users", true},
		{"WITH t AS (SELECT 1) SELECT * FROM t", true},
		{"(SELECT 1)", true},
		{"-- count users\nSELECT count(*) FROM users", true},
		{"/* report */ SELECT 1", true},
		{"/* a */ -- b\n/* c */select 1", true},
		{"EXPLAIN QUERY PLAN SELECT * FROM users", true},
		{"VALUES (1, 2)", true},
		{"VALUES(1)", true},
		{"-- only a comment", false},
		{"/* unterminated SELECT 1", false},
		{"/* SELECT */ DELETE FROM users", false},
		{"INSERT INTO users VALUES (4)", false},
		{"DROP TABLE users", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isReadOnlyStatement(tt.q); got != tt.want {
			t.Errorf("isReadOnlyStatement(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	plus2 := time.FixedZone("", 2*60*60)
	tests := []struct {
		t        time.Time
		declType string
		want     string
	}{
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "DATE", "2024-03-01"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "date", "2024-03-01"},
		{time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), "DATE", "2024-03-01 09:30:00"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "DATETIME", "2024-03-01 00:00:00"},
		{time.Date(2024, 3, 1, 10, 15, 30, 250_000_000, plus2), "DATETIME", "2024-03-01 10:15:30.25+02:00"},
		{time.Date(2024, 3, 1, 10, 15, 30, 123456000, time.UTC), "TIMESTAMP", "2024-03-01 10:15:30.123456"},
	}
	for _, tt := range tests {
		if got := formatTime(tt.t, tt.declType); got != tt.want {
			t.Errorf("formatTime(%v, %q) = %q, want %q", tt.t, tt.declType, got, tt.want)
		}
	}
}

func TestRenderRow(t *testing.T) {
	tests := []struct {
		values []any
		want   string
	}{
		{[]any{int64(1), "alice", nil}, "(1, 'alice', None)"},
		{[]any{"only"}, "('only',)"},
		{[]any{}, "()"},
		{[]any{3.0, 0.25, 1e20}, "(3.0, 0.25, 1e+20)"},
		{[]any{"it's"}, `("it's",)`},
		{[]any{`say "it's"`}, `('say "it\'s"',)`},
		{[]any{[]byte("raw")}, "(b'raw',)"},
		{[]any{"a\nb"}, `('a\nb',)`},
		{[]any{time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)}, "('2024-03-01 10:15:30',)"},
	}
	for _, tt := range tests {
		if got := renderRow(tt.values); got != tt.want {
			t.Errorf("renderRow(%v) = %q, want %q", tt.values, got, tt.want)
		}
	}
}
