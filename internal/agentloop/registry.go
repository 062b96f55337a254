package agentloop

import (
	"sort"
	"sync"

	"github.com/harborhq/harbor-helper/internal/llm"
)

// ToolRegistry holds every tool the orchestrator can dispatch to, keyed by
// its registered (safe) name. MCP tool bridges and resource/prompt bridges
// are registered here exactly as mcpmgr.BridgeTools returns them.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool under its own Name().
func (r *ToolRegistry) Register(tool Tool) {
	if tool == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// ReplaceAll swaps the registry's contents for tools, used when the MCP
// manager's connected-server set changes and the bridge list is rebuilt.
func (r *ToolRegistry) ReplaceAll(tools []Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]Tool, len(tools))
	for _, t := range tools {
		if t != nil {
			r.tools[t.Name()] = t
		}
	}
}

// Get returns the tool registered under name, if any.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, sorted.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filtered returns the tools whose name is in allowed, or every tool when
// allowed is nil (no allow-list configured for the session).
func (r *ToolRegistry) Filtered(allowed []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if allowed == nil {
		out := make([]Tool, 0, len(r.tools))
		for _, name := range r.sortedNamesLocked() {
			out = append(out, r.tools[name])
		}
		return out
	}

	out := make([]Tool, 0, len(allowed))
	for _, name := range allowed {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *ToolRegistry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolSpecs converts tools to the provider-neutral shape llm.CompletionRequest
// carries, for either native tool-calling providers or text-emulated
// system-prompt enumeration.
func ToolSpecs(tools []Tool) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return specs
}
