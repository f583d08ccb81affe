package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pharmadb/deepresearch/core"
)

// Registry holds the tools available to a pipeline run and routes invocations
// by name. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs a Registry, registering any provided tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.Register(tools...)
	return r
}

// Register adds tools to the registry, replacing same-named entries.
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
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

// Describe renders a catalog of tool names, descriptions and parameter
// schemas suitable for inclusion in an instruction prompt.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		t := r.tools[name]
		schema, _ := json.Marshal(t.Parameters())
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", t.Name(), t.Description(), schema)
	}
	return b.String()
}

// Execute resolves the named tool, deserializes JSON arguments and invokes it.
func (r *Registry) Execute(toolCtx *core.ToolContext, toolName string, args string) (interface{}, error) {
	t, ok := r.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argsMap := make(map[string]interface{})
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return t.Call(toolCtx, argsMap)
}

// ExecuteMap invokes the named tool with already-parsed arguments.
func (r *Registry) ExecuteMap(toolCtx *core.ToolContext, toolName string, args map[string]interface{}) (interface{}, error) {
	t, ok := r.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	return t.Call(toolCtx, args)
}
