package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ag-ui/go-engine/pkg/core"
)

type registration struct {
	tool   *Tool
	schema *Schema
}

// Registry manages the collection of available tools.
// It provides thread-safe registration and lookup by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registration),
	}
}

// Register adds a new tool to the registry.
// It returns an error if the tool is invalid or if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("tool validation failed: %w", err)
	}
	schema, err := CompileSchema(tool.Parameters)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, tool.Name)
	}
	clone := *tool
	r.tools[tool.Name] = &registration{tool: &clone, schema: schema}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tools ...*Tool) {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			panic(err)
		}
	}
}

// Unregister removes a tool from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	delete(r.tools, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Tool, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	clone := *reg.tool
	return &clone, nil
}

func (r *Registry) lookup(name string) (*registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return reg, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the tools as advertised in a RunRequest, sorted by name.
func (r *Registry) Definitions() []core.Tool {
	names := r.Names()
	defs := make([]core.Tool, 0, len(names))
	for _, name := range names {
		if reg, err := r.lookup(name); err == nil {
			defs = append(defs, reg.tool.Definition())
		}
	}
	return defs
}
