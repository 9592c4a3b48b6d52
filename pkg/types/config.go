package types

// Config is the subset of ~/.wolo/config.yaml the core reads.
type Config struct {
	Endpoints       []EndpointConfig `json:"endpoints" yaml:"endpoints"`
	DefaultEndpoint string           `json:"default_endpoint,omitempty" yaml:"default_endpoint"`
	Compaction      CompactionConfig `json:"compaction,omitempty" yaml:"compaction"`
	PathSafety      PathSafetyConfig `json:"path_safety,omitempty" yaml:"path_safety"`
	MCP             MCPConfig        `json:"mcp,omitempty" yaml:"mcp"`
	EnableThink     bool             `json:"enable_think,omitempty" yaml:"enable_think"`
}

// EndpointConfig describes one OpenAI-compatible endpoint.
type EndpointConfig struct {
	Name          string  `json:"name" yaml:"name"`
	BaseURL       string  `json:"base_url" yaml:"base_url"`
	APIKey        string  `json:"api_key,omitempty" yaml:"api_key"`
	Model         string  `json:"model,omitempty" yaml:"model"`
	Temperature   float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens     int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	ContextWindow int     `json:"context_window,omitempty" yaml:"context_window"`
}

// CompactionConfig controls the compaction engine.
type CompactionConfig struct {
	Enabled           bool              `json:"enabled" yaml:"enabled"`
	TokenThreshold    int               `json:"token_threshold,omitempty" yaml:"token_threshold"`
	ToolPruningPolicy ToolPruningConfig `json:"tool_pruning_policy,omitempty" yaml:"tool_pruning_policy"`
}

// ToolPruningConfig controls the tool-output pruning policy.
type ToolPruningConfig struct {
	Enabled               bool     `json:"enabled" yaml:"enabled"`
	ProtectRecentTurns    int      `json:"protect_recent_turns,omitempty" yaml:"protect_recent_turns"`
	ProtectTokenThreshold int      `json:"protect_token_threshold,omitempty" yaml:"protect_token_threshold"`
	MinimumPruneTokens    int      `json:"minimum_prune_tokens,omitempty" yaml:"minimum_prune_tokens"`
	ProtectedTools        []string `json:"protected_tools,omitempty" yaml:"protected_tools"`
	ReplacementText       string   `json:"replacement_text,omitempty" yaml:"replacement_text"`
}

// PathSafetyConfig controls the path guard.
type PathSafetyConfig struct {
	AllowedWritePaths          []string `json:"allowed_write_paths,omitempty" yaml:"allowed_write_paths"`
	MaxConfirmationsPerSession int      `json:"max_confirmations_per_session,omitempty" yaml:"max_confirmations_per_session"`
	AuditDenied                bool     `json:"audit_denied" yaml:"audit_denied"`
	AuditLogFile               string   `json:"audit_log_file,omitempty" yaml:"audit_log_file"`
}

// MCPConfig declares external MCP tool servers.
type MCPConfig struct {
	Enabled bool                       `json:"enabled" yaml:"enabled"`
	Servers map[string]MCPServerConfig `json:"servers,omitempty" yaml:"servers"`
}

// MCPServerConfig describes one MCP server launched over stdio.
type MCPServerConfig struct {
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args"`
	Env     map[string]string `json:"env,omitempty" yaml:"env"`
}
