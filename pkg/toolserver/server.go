// Package toolserver is the MCP tool server the chat client talks to: a
// read-only SQLite query executor plus a resource directory reader.
package toolserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Config for the tool server.
type Config struct {
	DBPath      string
	ResourceDir string
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Server exposes the database and resource tools over MCP.
type Server struct {
	cfg Config
	log *slog.Logger
	db  *sql.DB
	mcp *mcp.Server
}

// New builds the server and registers its tools and resources. The
// database is opened read-only and connected on first use.
func New(cfg Config, log *slog.Logger) (*Server, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		cfg: cfg,
		log: log,
		mcp: mcp.NewServer(&mcp.Implementation{Name: "sqlite-server", Version: "dev"}, nil),
	}
	if cfg.DBPath != "" {
		db, err := sql.Open("sqlite3", "file:"+cfg.DBPath+"?mode=ro")
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = db
	}
	s.registerTools()
	if err := s.registerResources(); err != nil {
		s.log.Warn("resource directory not readable", "dir", cfg.ResourceDir, "err", err)
	}
	return s, nil
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Serve runs the server over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("serving tools over stdio", "db", s.cfg.DBPath, "resources", s.cfg.ResourceDir)
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the database handle.
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// resourceFiles lists regular files in the resource directory by name.
func (s *Server) resourceFiles() ([]string, error) {
	if s.cfg.ResourceDir == "" {
		return nil, errors.New("resource directory not configured")
	}
	entries, err := os.ReadDir(s.cfg.ResourceDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// resourcePath resolves name inside the resource directory.
func (s *Server) resourcePath(name string) (string, error) {
	if s.cfg.ResourceDir == "" {
		return "", errors.New("resource directory not configured")
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid resource name %q", name)
	}
	return filepath.Join(s.cfg.ResourceDir, name), nil
}

func (s *Server) registerResources() error {
	if s.cfg.ResourceDir == "" {
		return nil
	}
	names, err := s.resourceFiles()
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(s.cfg.ResourceDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		uri := (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, name))}).String()
		s.mcp.AddResource(&mcp.Resource{
			URI:      uri,
			Name:     name,
			Title:    name,
			MIMEType: mimeType(name),
		}, s.readResource(name))
	}
	s.log.Info("registered resources", "count", len(names))
	return nil
}

func (s *Server) readResource(name string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		path, err := s.resourcePath(name)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: mimeType(name),
			Text:     string(data),
		}}}, nil
	}
}

func mimeType(name string) string {
	t := mime.TypeByExtension(filepath.Ext(name))
	if t == "" {
		return "text/plain"
	}
	if base, _, err := mime.ParseMediaType(t); err == nil {
		return base
	}
	return t
}
