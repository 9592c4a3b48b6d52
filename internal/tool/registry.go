package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wolo-ai/wolo/internal/llm"
)

// MCPSeparator joins an MCP server name and tool name into one stable
// identifier.
const MCPSeparator = "__"

// MCPToolName builds the bridged name for an external tool. Server names
// containing the separator are rejected at registration time because the
// resulting name could not be split back unambiguously.
func MCPToolName(server, toolName string) (string, error) {
	if server == "" || toolName == "" {
		return "", fmt.Errorf("mcp tool name requires server and tool")
	}
	if strings.Contains(server, MCPSeparator) {
		return "", fmt.Errorf("mcp server name %q contains %q and cannot be addressed unambiguously", server, MCPSeparator)
	}
	return "mcp_" + server + MCPSeparator + toolName, nil
}

// SplitMCPToolName reverses MCPToolName.
func SplitMCPToolName(name string) (server, toolName string, ok bool) {
	rest, found := strings.CutPrefix(name, "mcp_")
	if !found {
		return "", "", false
	}
	server, toolName, found = strings.Cut(rest, MCPSeparator)
	if !found || server == "" || toolName == "" {
		return "", "", false
	}
	return server, toolName, true
}

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry, replacing any previous tool with
// the same ID.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.ID()] = tool
}

// Get retrieves a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// IDs returns all tool IDs in stable order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Schemas returns the tool schemas sent to the model. Tools named in
// exclude are filtered out, which is how mode config removes the
// question tool.
func (r *Registry) Schemas(exclude ...string) []llm.ToolSchema {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		if !excluded[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	schemas := make([]llm.ToolSchema, 0, len(ids))
	for _, id := range ids {
		t := r.tools[id]
		var params map[string]any
		if err := json.Unmarshal(t.Parameters(), &params); err != nil {
			params = map[string]any{"type": "object"}
		}
		schemas = append(schemas, llm.ToolSchema{
			Name:        id,
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return schemas
}

// FormatToolStart renders the one-line brief for a tool-start event.
func (r *Registry) FormatToolStart(toolName string, input map[string]any) string {
	if t, ok := r.Get(toolName); ok {
		if f, ok := t.(StartFormatter); ok {
			return f.FormatStart(input)
		}
	}
	return defaultStartBrief(toolName, input)
}

// FormatToolComplete renders the one-line brief for a tool-complete event.
func (r *Registry) FormatToolComplete(toolName, output, status string, durationMS int64, metadata map[string]any) string {
	if t, ok := r.Get(toolName); ok {
		if f, ok := t.(CompleteFormatter); ok {
			return f.FormatComplete(output, status, durationMS, metadata)
		}
	}
	return fmt.Sprintf("%s %s (%dms)", toolName, status, durationMS)
}

// ShowOutput reports whether the tool's raw output should be rendered.
func (r *Registry) ShowOutput(toolName string) bool {
	if t, ok := r.Get(toolName); ok {
		if h, ok := t.(OutputHider); ok {
			return !h.HideOutput()
		}
	}
	return true
}

func defaultStartBrief(toolName string, input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(toolName)
	for _, k := range keys {
		v := fmt.Sprintf("%v", input[k])
		if len(v) > 60 {
			v = v[:57] + "..."
		}
		fmt.Fprintf(&sb, " %s=%s", k, v)
	}
	return sb.String()
}

// DefaultRegistry creates a registry with all built-in tools.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry()
	r.Register(NewReadTool(workDir))
	r.Register(NewWriteTool(workDir))
	r.Register(NewEditTool(workDir))
	r.Register(NewBashTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewGrepTool(workDir))
	r.Register(NewListTool(workDir))
	r.Register(NewWebFetchTool())
	r.Register(NewTodoWriteTool())
	r.Register(NewTodoReadTool())
	r.Register(NewBatchTool(r))
	r.Register(NewTaskTool())
	r.Register(NewQuestionTool())
	return r
}
