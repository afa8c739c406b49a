package engine

import (
	"fmt"
	"sync"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/tools"
)

// ToolRegistry holds the tools available to the engine.
// Safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
	order []string
}

// NewToolRegistry creates a registry, registering the given tools.
func NewToolRegistry(ts ...core.Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]core.Tool)}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be non-empty and unique.
func (r *ToolRegistry) Register(t core.Tool) error {
	name := t.Name()
	if name == "" {
		return tools.ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", tools.ErrAlreadyExists, name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *ToolRegistry) MustRegister(ts ...core.Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the tool with the given name.
func (r *ToolRegistry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToolFilter selects tools for a run.
type ToolFilter func(core.Tool) bool

// FilterByNames keeps only the named tools.
func FilterByNames(names ...string) ToolFilter {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(t core.Tool) bool {
		return set[t.Name()]
	}
}

// Definitions returns the definitions of all tools passing filter (nil keeps all),
// in registration order.
func (r *ToolRegistry) Definitions(filter ToolFilter) []core.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]core.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		if filter != nil && !filter(t) {
			continue
		}
		defs = append(defs, tools.Definition(t))
	}
	return defs
}

