package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/pkg/types"
)

const mcpConnectTimeout = 10 * time.Second

// MCPManager connects to the configured MCP servers over stdio and
// registers each remote tool under its bridged mcp_{server}__{tool} name.
type MCPManager struct {
	mu      sync.Mutex
	clients map[string]*client.Client
}

// NewMCPManager creates an empty manager.
func NewMCPManager() *MCPManager {
	return &MCPManager{clients: make(map[string]*client.Client)}
}

// Connect starts the configured servers and registers their tools.
// Individual server failures are logged and skipped; a broken external
// server must not take the core down.
func (m *MCPManager) Connect(ctx context.Context, cfg types.MCPConfig, registry *Registry) {
	if !cfg.Enabled {
		return
	}
	for name, server := range cfg.Servers {
		if err := m.connectServer(ctx, name, server, registry); err != nil {
			logging.Warn().Err(err).Str("server", name).Msg("mcp server unavailable")
		}
	}
}

func (m *MCPManager) connectServer(ctx context.Context, name string, cfg types.MCPServerConfig, registry *Registry) error {
	// Reject ambiguous names before spawning anything.
	if _, err := MCPToolName(name, "probe"); err != nil {
		return err
	}

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, mcpConnectTimeout)
	defer cancel()

	if err := mcpClient.Start(connectCtx); err != nil {
		mcpClient.Close()
		return fmt.Errorf("start: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "wolo", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(connectCtx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	listResp, err := mcpClient.ListTools(connectCtx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	registered := 0
	for _, remote := range listResp.Tools {
		bridged, err := MCPToolName(name, remote.Name)
		if err != nil {
			logging.Warn().Err(err).Str("tool", remote.Name).Msg("skipping mcp tool")
			continue
		}
		schema, err := json.Marshal(remote.InputSchema)
		if err != nil {
			schema = []byte(`{"type":"object"}`)
		}
		registry.Register(&mcpBridgedTool{
			id:          bridged,
			remoteName:  remote.Name,
			description: remote.Description,
			schema:      schema,
			client:      mcpClient,
		})
		registered++
	}

	m.mu.Lock()
	m.clients[name] = mcpClient
	m.mu.Unlock()

	logging.Info().Str("server", name).Int("tools", registered).Msg("mcp server connected")
	return nil
}

// Close shuts down every connected server.
func (m *MCPManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.clients {
		if err := c.Close(); err != nil {
			logging.Debug().Err(err).Str("server", name).Msg("mcp close failed")
		}
	}
	m.clients = make(map[string]*client.Client)
}

// mcpBridgedTool adapts one remote MCP tool to the Tool interface.
type mcpBridgedTool struct {
	id          string
	remoteName  string
	description string
	schema      json.RawMessage
	client      *client.Client
}

func (t *mcpBridgedTool) ID() string                  { return t.id }
func (t *mcpBridgedTool) Description() string         { return t.description }
func (t *mcpBridgedTool) Parameters() json.RawMessage { return t.schema }

func (t *mcpBridgedTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, &Error{ToolName: t.id, Message: "invalid input: " + err.Error()}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.remoteName
	req.Params.Arguments = args

	resp, err := t.client.CallTool(ctx, req)
	if err != nil {
		return nil, &Error{ToolName: t.id, Message: "mcp call failed: " + err.Error()}
	}

	output := collectMCPText(resp)
	if resp.IsError {
		if output == "" {
			output = "unknown error"
		}
		return nil, &Error{ToolName: t.id, Message: output}
	}
	return &Result{Output: output}, nil
}

func collectMCPText(resp *mcp.CallToolResult) string {
	var out string
	for _, content := range resp.Content {
		if text, ok := content.(mcp.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += text.Text
		}
	}
	return out
}
