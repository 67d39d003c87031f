package registry

import (
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"

	"github.com/sheetforge/sheetforge/internal/runtime"
	"github.com/sheetforge/sheetforge/internal/security"
	"github.com/sheetforge/sheetforge/internal/store"
)

// Registry indexes the tool definitions exposed by the server so discovery
// and tests see one stable, sorted view regardless of registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]mcp.Tool
}

// New constructs an empty Registry ready for tool population.
func New() *Registry {
	return &Registry{tools: map[string]mcp.Tool{}}
}

// Register stores a tool definition for discovery.
func (r *Registry) Register(tool mcp.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tool definitions sorted by name.
func (r *Registry) Tools() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools
}

// ModelContextSize reports the advertised context window for a client model
// name. Logged at bootstrap so operators can judge how much room paged tool
// payloads leave the model.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// Deps bundles the shared collaborators handed to every tool handler.
type Deps struct {
	Store  *store.Store
	Policy *security.Policy
	Limits runtime.Limits
	Logger zerolog.Logger
}

// structured builds a tool result carrying both a typed payload and a concise
// text summary for clients that ignore structured content.
func structured(out any, summary string) *mcp.CallToolResult {
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res
}
