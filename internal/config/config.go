// Package config loads runtime configuration from ~/.wolo and the
// environment. Invalid values never abort startup: they fall back to
// defaults with a debug log line.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/wolo-ai/wolo/internal/logging"
	"github.com/wolo-ai/wolo/pkg/types"
)

// Defaults returns the built-in configuration used when nothing else is
// configured.
func Defaults() *types.Config {
	return &types.Config{
		Endpoints: []types.EndpointConfig{{
			Name:          "default",
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o",
			Temperature:   0.6,
			MaxTokens:     8192,
			ContextWindow: 128000,
		}},
		DefaultEndpoint: "default",
		Compaction: types.CompactionConfig{
			Enabled: true,
			ToolPruningPolicy: types.ToolPruningConfig{
				Enabled:               true,
				ProtectRecentTurns:    3,
				ProtectTokenThreshold: 4000,
				MinimumPruneTokens:    500,
				ProtectedTools:        []string{"todowrite", "todoread"},
			},
		},
		PathSafety: types.PathSafetyConfig{
			AuditDenied: true,
		},
	}
}

// Load reads config.yaml (or config.jsonc) from the config directory,
// merges it over the defaults, and applies WOLO_* environment
// overrides.
func Load() (*types.Config, error) {
	cfg := Defaults()

	yamlPath := filepath.Join(Dir(), "config.yaml")
	jsoncPath := filepath.Join(Dir(), "config.jsonc")

	if data, err := os.ReadFile(yamlPath); err == nil {
		var fileCfg types.Config
		if err := yaml.Unmarshal(interpolate(data), &fileCfg); err != nil {
			return nil, fmt.Errorf("%s: %w", yamlPath, err)
		}
		merge(cfg, &fileCfg)
	} else if data, err := os.ReadFile(jsoncPath); err == nil {
		var fileCfg types.Config
		if err := json.Unmarshal(interpolate(jsonc.ToJSON(data)), &fileCfg); err != nil {
			return nil, fmt.Errorf("%s: %w", jsoncPath, err)
		}
		merge(cfg, &fileCfg)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// ResolveEndpoint picks the endpoint by name, falling back to the
// configured default, then to the first entry.
func ResolveEndpoint(cfg *types.Config, name string) (types.EndpointConfig, error) {
	if len(cfg.Endpoints) == 0 {
		return types.EndpointConfig{}, fmt.Errorf("no endpoints configured")
	}
	if name == "" {
		name = cfg.DefaultEndpoint
	}
	if name != "" {
		for _, ep := range cfg.Endpoints {
			if ep.Name == name {
				return ep, nil
			}
		}
		return types.EndpointConfig{}, fmt.Errorf("endpoint %q not found", name)
	}
	return cfg.Endpoints[0], nil
}

// interpolate expands {env:VAR} placeholders in config file content.
var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// merge overlays the file config on the defaults. A file that declares
// endpoints replaces the default endpoint list entirely.
func merge(target, source *types.Config) {
	if len(source.Endpoints) > 0 {
		target.Endpoints = source.Endpoints
	}
	if source.DefaultEndpoint != "" {
		target.DefaultEndpoint = source.DefaultEndpoint
	}
	if source.Compaction.TokenThreshold > 0 {
		target.Compaction.TokenThreshold = source.Compaction.TokenThreshold
	}
	if p := source.Compaction.ToolPruningPolicy; p.Enabled {
		if p.ProtectRecentTurns > 0 {
			target.Compaction.ToolPruningPolicy.ProtectRecentTurns = p.ProtectRecentTurns
		}
		if p.ProtectTokenThreshold > 0 {
			target.Compaction.ToolPruningPolicy.ProtectTokenThreshold = p.ProtectTokenThreshold
		}
		if p.MinimumPruneTokens > 0 {
			target.Compaction.ToolPruningPolicy.MinimumPruneTokens = p.MinimumPruneTokens
		}
		if len(p.ProtectedTools) > 0 {
			target.Compaction.ToolPruningPolicy.ProtectedTools = p.ProtectedTools
		}
		if p.ReplacementText != "" {
			target.Compaction.ToolPruningPolicy.ReplacementText = p.ReplacementText
		}
	}
	if len(source.PathSafety.AllowedWritePaths) > 0 {
		target.PathSafety.AllowedWritePaths = source.PathSafety.AllowedWritePaths
	}
	if source.PathSafety.MaxConfirmationsPerSession > 0 {
		target.PathSafety.MaxConfirmationsPerSession = source.PathSafety.MaxConfirmationsPerSession
	}
	if source.PathSafety.AuditLogFile != "" {
		target.PathSafety.AuditLogFile = source.PathSafety.AuditLogFile
	}
	if source.MCP.Enabled {
		target.MCP = source.MCP
	}
	if source.EnableThink {
		target.EnableThink = true
	}
}

// applyEnvOverrides applies WOLO_* variables on top of the loaded
// config. They target the endpoint the run will actually use.
func applyEnvOverrides(cfg *types.Config) {
	ep := defaultEndpoint(cfg)

	if v := os.Getenv("WOLO_API_KEY"); v != "" {
		ep.APIKey = v
	}
	if v := os.Getenv("WOLO_MODEL"); v != "" {
		ep.Model = v
	}
	if v := os.Getenv("WOLO_API_BASE"); v != "" {
		ep.BaseURL = v
	}
	if v := os.Getenv("WOLO_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ep.Temperature = f
		} else {
			logging.Debug().Str("value", v).Msg("invalid WOLO_TEMPERATURE, keeping default")
		}
	}
	if v := os.Getenv("WOLO_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ep.MaxTokens = n
		} else {
			logging.Debug().Str("value", v).Msg("invalid WOLO_MAX_TOKENS, keeping default")
		}
	}
	if v := os.Getenv("WOLO_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ep.ContextWindow = n
		} else {
			logging.Debug().Str("value", v).Msg("invalid WOLO_CONTEXT_WINDOW, keeping default")
		}
	}
	if v := os.Getenv("WOLO_MCP_SERVERS"); v != "" {
		var servers map[string]types.MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err == nil && len(servers) > 0 {
			cfg.MCP.Enabled = true
			cfg.MCP.Servers = servers
		} else {
			logging.Debug().Str("value", v).Msg("invalid WOLO_MCP_SERVERS, ignoring")
		}
	}
	if v := os.Getenv("WOLO_ENABLE_THINK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnableThink = b
		} else {
			logging.Debug().Str("value", v).Msg("invalid WOLO_ENABLE_THINK, keeping default")
		}
	}
}

// defaultEndpoint returns a pointer to the endpoint the run will use,
// creating one when the list is empty.
func defaultEndpoint(cfg *types.Config) *types.EndpointConfig {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = []types.EndpointConfig{{Name: "default"}}
		cfg.DefaultEndpoint = "default"
	}
	name := cfg.DefaultEndpoint
	if name != "" {
		for i := range cfg.Endpoints {
			if cfg.Endpoints[i].Name == name {
				return &cfg.Endpoints[i]
			}
		}
	}
	return &cfg.Endpoints[0]
}

// Save writes the configuration as YAML.
func Save(cfg *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Example returns a commented starter config.
func Example() string {
	return `# wolo configuration
endpoints:
  - name: default
    base_url: https://api.openai.com/v1
    api_key: "{env:WOLO_API_KEY}"
    model: gpt-4o
    temperature: 0.6
    max_tokens: 8192
    context_window: 128000

default_endpoint: default

compaction:
  enabled: true
  tool_pruning_policy:
    enabled: true
    protect_recent_turns: 3
    protect_token_threshold: 4000
    minimum_prune_tokens: 500

path_safety:
  audit_denied: true
  allowed_write_paths: []

mcp:
  enabled: false
  servers: {}

enable_think: false
`
}

// Init writes the example config if none exists yet. Returns the path
// and whether a file was created.
func Init() (string, bool, error) {
	path := filepath.Join(Dir(), "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return path, false, err
	}
	if err := os.WriteFile(path, []byte(Example()), 0o600); err != nil {
		return path, false, err
	}
	return path, true, nil
}
