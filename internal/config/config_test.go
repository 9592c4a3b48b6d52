package config

import (
	"os"
	"path/filepath"
	"testing"
)

func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("WOLO_CONFIG_DIR", dir)
	return dir
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	useConfigDir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0].Name != "default" {
		t.Errorf("endpoints = %+v", cfg.Endpoints)
	}
	if !cfg.Compaction.Enabled || !cfg.Compaction.ToolPruningPolicy.Enabled {
		t.Error("compaction should default on")
	}
	if cfg.Compaction.ToolPruningPolicy.ProtectRecentTurns != 3 {
		t.Errorf("protect_recent_turns = %d", cfg.Compaction.ToolPruningPolicy.ProtectRecentTurns)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := useConfigDir(t)
	content := `
endpoints:
  - name: local
    base_url: http://localhost:8000/v1
    model: qwen3
    context_window: 32768
default_endpoint: local
enable_think: true
`
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	ep, err := ResolveEndpoint(cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if ep.Name != "local" || ep.Model != "qwen3" || ep.ContextWindow != 32768 {
		t.Errorf("endpoint = %+v", ep)
	}
	if !cfg.EnableThink {
		t.Error("enable_think not loaded")
	}
}

func TestLoad_JSONCFallback(t *testing.T) {
	dir := useConfigDir(t)
	content := `{
  // local dev endpoint
  "endpoints": [{"name": "dev", "base_url": "http://127.0.0.1:9000/v1", "model": "m"}],
  "default_endpoint": "dev"
}`
	os.WriteFile(filepath.Join(dir, "config.jsonc"), []byte(content), 0o600)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	ep, _ := ResolveEndpoint(cfg, "")
	if ep.Name != "dev" {
		t.Errorf("endpoint = %+v", ep)
	}
}

func TestLoad_EnvInterpolation(t *testing.T) {
	dir := useConfigDir(t)
	t.Setenv("TEST_WOLO_KEY", "sk-from-env")
	content := `
endpoints:
  - name: default
    base_url: http://localhost/v1
    api_key: "{env:TEST_WOLO_KEY}"
`
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Endpoints[0].APIKey != "sk-from-env" {
		t.Errorf("api_key = %q", cfg.Endpoints[0].APIKey)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	useConfigDir(t)
	t.Setenv("WOLO_API_KEY", "sk-env")
	t.Setenv("WOLO_MODEL", "env-model")
	t.Setenv("WOLO_API_BASE", "http://env:8080/v1")
	t.Setenv("WOLO_TEMPERATURE", "0.1")
	t.Setenv("WOLO_MAX_TOKENS", "1234")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	ep, _ := ResolveEndpoint(cfg, "")
	if ep.APIKey != "sk-env" || ep.Model != "env-model" || ep.BaseURL != "http://env:8080/v1" {
		t.Errorf("endpoint = %+v", ep)
	}
	if ep.Temperature != 0.1 || ep.MaxTokens != 1234 {
		t.Errorf("numeric overrides = %+v", ep)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	useConfigDir(t)
	t.Setenv("WOLO_TEMPERATURE", "hot")
	t.Setenv("WOLO_MAX_TOKENS", "-5")
	t.Setenv("WOLO_ENABLE_THINK", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	ep, _ := ResolveEndpoint(cfg, "")
	if ep.Temperature != 0.6 || ep.MaxTokens != 8192 {
		t.Errorf("invalid env must keep defaults: %+v", ep)
	}
	if cfg.EnableThink {
		t.Error("invalid WOLO_ENABLE_THINK must keep default false")
	}
}

func TestLoad_MCPServersFromEnv(t *testing.T) {
	useConfigDir(t)
	t.Setenv("WOLO_MCP_SERVERS", `{"fs": {"command": "mcp-fs", "args": ["--root", "/tmp"]}}`)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.MCP.Enabled {
		t.Error("MCP should be enabled by env servers")
	}
	if cfg.MCP.Servers["fs"].Command != "mcp-fs" {
		t.Errorf("servers = %+v", cfg.MCP.Servers)
	}
}

func TestResolveEndpoint_UnknownName(t *testing.T) {
	useConfigDir(t)
	cfg, _ := Load()
	if _, err := ResolveEndpoint(cfg, "nope"); err == nil {
		t.Error("unknown endpoint name must error")
	}
}

func TestInit_CreatesOnce(t *testing.T) {
	useConfigDir(t)

	path, created, err := Init()
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first init should create the file")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}

	_, created, err = Init()
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second init must not overwrite")
	}
}
