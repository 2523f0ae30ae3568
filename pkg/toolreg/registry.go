// Package toolreg caches the tool and resource descriptors a tool server
// advertises at session start.
package toolreg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ToolDescriptor describes a tool exposed by the server. InputSchema is a
// JSON-schema object and is handed to providers unmodified.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ResourceDescriptor describes a resource exposed by the server.
type ResourceDescriptor struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	URI         string `json:"uri"`
	Description string `json:"description"`
}

// Lister is the subset of the transport the registry reads from.
type Lister interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	ListResources(ctx context.Context) ([]ResourceDescriptor, error)
}

// Registry holds a read-only snapshot of the server's descriptors.
// It is only refetched when Refresh is called.
type Registry struct {
	lister    Lister
	log       *slog.Logger
	mu        sync.RWMutex
	tools     []ToolDescriptor
	byName    map[string]int
	resources []ResourceDescriptor
	loaded    bool
}

// NewRegistry creates an empty registry backed by lister.
func NewRegistry(lister Lister, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		lister: lister,
		log:    log,
		byName: make(map[string]int),
	}
}

// Load fetches descriptors on first use. Later calls are no-ops.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Refresh(ctx)
}

// Refresh refetches tools and resources from the server.
func (r *Registry) Refresh(ctx context.Context) error {
	tools, err := r.lister.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	resources, err := r.lister.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}

	byName := make(map[string]int, len(tools))
	names := make([]string, 0, len(tools))
	for i, t := range tools {
		if _, dup := byName[t.Name]; dup {
			return fmt.Errorf("duplicate tool name: %s", t.Name)
		}
		byName[t.Name] = i
		names = append(names, t.Name)
	}
	resourceNames := make([]string, 0, len(resources))
	for _, res := range resources {
		resourceNames = append(resourceNames, res.Name)
	}

	r.mu.Lock()
	r.tools = tools
	r.byName = byName
	r.resources = resources
	r.loaded = true
	r.mu.Unlock()

	r.log.Info("connected to server", "tools", len(tools), "tool_names", names)
	r.log.Info("connected to server", "resources", len(resources), "resource_names", resourceNames)
	return nil
}

// Tools returns the tool descriptors in server order.
func (r *Registry) Tools() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, len(r.tools))
	copy(out, r.tools)
	return out
}

// Resources returns the resource descriptors in server order.
func (r *Registry) Resources() []ResourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceDescriptor, len(r.resources))
	copy(out, r.resources)
	return out
}

// Lookup returns the descriptor for a tool name.
func (r *Registry) Lookup(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return ToolDescriptor{}, false
	}
	return r.tools[i], true
}
