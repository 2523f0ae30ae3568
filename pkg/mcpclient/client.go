// Package mcpclient is the chat client's session with the tool server,
// built on the official MCP SDK.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rcliao/teeny-mcp/pkg/chaterr"
	"github.com/rcliao/teeny-mcp/pkg/message"
	"github.com/rcliao/teeny-mcp/pkg/toolreg"
)

const backend = "mcp"

var errClosed = errors.New("session closed")

// transportBuilder is overridden in tests to stub the transport factory.
var transportBuilder = buildTransport

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithServerStderr forwards the spawned server's stderr to w.
func WithServerStderr(w io.Writer) Option {
	return func(c *Client) { c.stderr = w }
}

// WithCommand runs name with args as the server. The arguments are passed
// as given, so paths may contain spaces.
func WithCommand(name string, args ...string) Option {
	return func(c *Client) { c.command = append([]string{name}, args...) }
}

// WithImplementation overrides the name and version sent in the handshake.
func WithImplementation(name, version string) Option {
	return func(c *Client) { c.implName, c.implVersion = name, version }
}

// Client is a lazily connected MCP client session.
type Client struct {
	spec        string
	command     []string
	log         *slog.Logger
	stderr      io.Writer
	implName    string
	implVersion string

	once       sync.Once
	connectErr error

	mu      sync.Mutex
	session *mcp.ClientSession
	closed  bool
}

// New creates a client for the server described by spec. The spec is a
// script path (.py runs with python, .js with node) or a command line.
// WithCommand takes precedence over spec, which then only labels errors.
func New(spec string, opts ...Option) *Client {
	c := &Client{
		spec:        spec,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		implName:    "teeny-mcp",
		implVersion: "dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.spec == "" && len(c.command) > 0 {
		c.spec = strings.Join(c.command, " ")
	}
	return c
}

// argv resolves the server command line.
func (c *Client) argv() ([]string, error) {
	if len(c.command) > 0 {
		return c.command, nil
	}
	name, args, err := parseServerSpec(c.spec)
	if err != nil {
		return nil, err
	}
	return append([]string{name}, args...), nil
}

// Connect spawns the server and performs the MCP handshake. It runs once;
// later calls return the first outcome.
func (c *Client) Connect(ctx context.Context) error {
	c.once.Do(func() {
		argv, err := c.argv()
		if err != nil {
			c.connectErr = &chaterr.ConnectionError{Target: c.spec, Err: fmt.Errorf("build transport: %w", err)}
			return
		}
		transport, err := transportBuilder(ctx, argv)
		if err != nil {
			c.connectErr = &chaterr.ConnectionError{Target: c.spec, Err: fmt.Errorf("build transport: %w", err)}
			return
		}
		if ct, ok := transport.(*mcp.CommandTransport); ok && c.stderr != nil {
			ct.Command.Stderr = c.stderr
		}
		impl := mcp.NewClient(&mcp.Implementation{Name: c.implName, Version: c.implVersion}, nil)
		session, err := impl.Connect(ctx, transport, nil)
		if err != nil {
			c.connectErr = &chaterr.ConnectionError{Target: c.spec, Err: err}
			return
		}
		c.mu.Lock()
		c.session = session
		c.mu.Unlock()
		c.log.Debug("mcp session established", "server", c.spec)
	})
	return c.connectErr
}

func (c *Client) activeSession(ctx context.Context) (*mcp.ClientSession, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session == nil {
		return nil, &chaterr.TransportError{Backend: backend, Err: errClosed}
	}
	return c.session, nil
}

// ListTools drains the server's tool listing.
func (c *Client) ListTools(ctx context.Context) ([]toolreg.ToolDescriptor, error) {
	session, err := c.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	var tools []toolreg.ToolDescriptor
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, &chaterr.TransportError{Backend: backend, Err: fmt.Errorf("list tools: %w", err)}
		}
		tools = append(tools, toToolDescriptor(tool))
	}
	return tools, nil
}

// ListResources drains the server's resource listing. A server without the
// resources capability has no resources.
func (c *Client) ListResources(ctx context.Context) ([]toolreg.ResourceDescriptor, error) {
	session, err := c.activeSession(ctx)
	if err != nil {
		return nil, err
	}
	if init := session.InitializeResult(); init == nil || init.Capabilities == nil || init.Capabilities.Resources == nil {
		c.log.Debug("server does not advertise resources", "server", c.spec)
		return []toolreg.ResourceDescriptor{}, nil
	}
	resources := []toolreg.ResourceDescriptor{}
	for res, err := range session.Resources(ctx, nil) {
		if err != nil {
			return nil, &chaterr.TransportError{Backend: backend, Err: fmt.Errorf("list resources: %w", err)}
		}
		resources = append(resources, toolreg.ResourceDescriptor{
			Name:        res.Name,
			Title:       res.Title,
			URI:         res.URI,
			Description: res.Description,
		})
	}
	return resources, nil
}

// CallTool invokes a tool. args is sent as given, so an empty map reaches
// the server as {}.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (message.ToolResult, error) {
	session, err := c.activeSession(ctx)
	if err != nil {
		return message.ToolResult{}, err
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return message.ToolResult{}, convertCallError(name, err)
	}

	result := message.ToolResult{Content: make([]message.ContentPart, 0, len(res.Content))}
	for _, content := range res.Content {
		result.Content = append(result.Content, toContentPart(content))
	}
	if res.IsError {
		texts := make([]string, 0, len(result.Content))
		for _, part := range result.Content {
			texts = append(texts, part.Text)
		}
		return message.ToolResult{}, &chaterr.ToolInvocationError{Tool: name, Message: strings.Join(texts, "\n")}
	}
	return result, nil
}

// Close ends the session and, for spawned servers, waits for the process.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.closed = true
	c.mu.Unlock()
	if session == nil {
		return nil
	}
	err := session.Close()
	c.log.Debug("mcp session closed", "server", c.spec, "err", err)
	return err
}

func convertCallError(name string, err error) error {
	switch {
	case errors.Is(err, mcp.ErrConnectionClosed), errors.Is(err, io.EOF),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &chaterr.TransportError{Backend: backend, Err: err}
	default:
		return &chaterr.ToolInvocationError{Tool: name, Message: err.Error(), Err: err}
	}
}

func toToolDescriptor(tool *mcp.Tool) toolreg.ToolDescriptor {
	if tool == nil {
		return toolreg.ToolDescriptor{}
	}
	return toolreg.ToolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schemaMap(tool.InputSchema),
	}
}

// schemaMap normalizes a tool input schema to a plain JSON object.
func schemaMap(schema any) map[string]any {
	switch s := schema.(type) {
	case nil:
		return nil
	case map[string]any:
		return s
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func toContentPart(content mcp.Content) message.ContentPart {
	switch c := content.(type) {
	case *mcp.TextContent:
		return message.ContentPart{Kind: "text", Text: c.Text}
	case *mcp.ImageContent:
		return message.ContentPart{Kind: "image", Text: fmt.Sprintf("%s (%d bytes)", c.MIMEType, len(c.Data))}
	case *mcp.AudioContent:
		return message.ContentPart{Kind: "audio", Text: fmt.Sprintf("%s (%d bytes)", c.MIMEType, len(c.Data))}
	case *mcp.ResourceLink:
		return message.ContentPart{Kind: "resource_link", Text: c.URI}
	case *mcp.EmbeddedResource:
		part := message.ContentPart{Kind: "resource"}
		if c.Resource != nil {
			part.Text = c.Resource.Text
			if part.Text == "" {
				part.Text = c.Resource.URI
			}
		}
		return part
	default:
		return message.ContentPart{Kind: "unknown", Text: fmt.Sprintf("%T", content)}
	}
}

func buildTransport(ctx context.Context, argv []string) (mcp.Transport, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("server command is empty")
	}
	// #nosec G204 -- the server command comes from local configuration
	command := exec.CommandContext(ctx, argv[0], argv[1:]...)
	return &mcp.CommandTransport{Command: command}, nil
}

// parseServerSpec turns a server spec into a command line.
func parseServerSpec(spec string) (string, []string, error) {
	parts := strings.Fields(spec)
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("server spec is empty")
	}
	if len(parts) == 1 {
		switch {
		case strings.HasSuffix(parts[0], ".py"):
			return "python", parts, nil
		case strings.HasSuffix(parts[0], ".js"):
			return "node", parts, nil
		}
	}
	return parts[0], parts[1:], nil
}
